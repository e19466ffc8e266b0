package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/basinlab/rtbus"
)

var publishCmd = &cobra.Command{
	Use:   "publish <endpoint> <value>",
	Short: "Publish a value to an endpoint",
	Long: `Publish a structured value to an endpoint on the bus. value is parsed
as YAML, so both scalars ("21.5", "true") and inline structures
('{celsius: 21.5}') work.

This briefly opens its own peer under the configured device name,
publishes once, and exits — it does not require "rtbusctl run" to
already be active, though the two must not run at once (they would
both bind the same port under the same device name).`,
	Args: cobra.ExactArgs(2),
	RunE: runPublish,
}

func runPublish(cmd *cobra.Command, args []string) error {
	endpoint, raw := args[0], args[1]

	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("parsing value as YAML: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	peer, err := rtbus.Open(rtbus.Options{
		DeviceName:    cfg.Device.Name,
		Port:          cfg.Network.Port,
		BroadcastAddr: cfg.Network.BroadcastAddr,
		Logger:        globalLogger,
	})
	if err != nil {
		return fmt.Errorf("opening peer: %w", err)
	}
	defer peer.Close()

	if err := peer.Publish(endpoint, value); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}

	// Give the background send loop one cycle to drain the queue
	// before the process exits and the socket closes.
	time.Sleep(50 * time.Millisecond)

	cmd.Printf("published %s -> %s\n", endpoint, raw)
	return nil
}
