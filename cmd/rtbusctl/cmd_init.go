package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/basinlab/rtbus/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a config file",
	Long:  `Walk through an interactive wizard to create a new rtbus config file at the resolved config path.`,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()

	var port string
	var broadcastAddr string
	var metricsEnabled bool

	port = fmt.Sprintf("%d", cfg.Network.Port)
	broadcastAddr = cfg.Network.BroadcastAddr

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Device name").
				Description("How this device identifies itself on the bus").
				Value(&cfg.Device.Name).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("device name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("UDP port").
				Description("Shared port every peer on this network binds to").
				Value(&port).
				Validate(func(s string) error {
					if _, err := strconv.Atoi(s); err != nil {
						return fmt.Errorf("must be a number")
					}
					return nil
				}),
			huh.NewInput().
				Title("Broadcast address").
				Description("Destination for undirected publishes").
				Value(&broadcastAddr),
			huh.NewConfirm().
				Title("Enable Prometheus metrics?").
				Value(&metricsEnabled),
		),
	).WithTheme(customHuhTheme())

	if err := form.Run(); err != nil {
		return fmt.Errorf("form cancelled: %w", err)
	}

	portNum, _ := strconv.Atoi(port)
	cfg.Network.Port = portNum
	cfg.Network.BroadcastAddr = broadcastAddr
	cfg.Metrics.Enabled = metricsEnabled
	if metricsEnabled {
		cfg.Metrics.ListenAddr = "127.0.0.1:9100"
	}

	path := resolvedConfigPath()
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	cmd.Printf("Wrote %s\n", path)
	return nil
}
