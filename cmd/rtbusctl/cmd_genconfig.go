package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basinlab/rtbus/internal/config"
)

var genconfigDeviceName string

var genconfigCmd = &cobra.Command{
	Use:   "genconfig",
	Short: "Print a default config.toml to stdout",
	Long: `Print a default rtbus configuration to stdout. Useful for piping
straight into place or as a starting point for hand edits:

  rtbusctl genconfig --device camera-1 > /etc/rtbus/config.toml`,
	RunE: runGenconfig,
}

func init() {
	genconfigCmd.Flags().StringVar(&genconfigDeviceName, "device", "", "device name to embed in the generated config")
}

func runGenconfig(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	cfg.Device.Name = genconfigDeviceName

	text, err := config.MarshalTOML(cfg)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
