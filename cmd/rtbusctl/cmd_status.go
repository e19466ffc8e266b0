package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/basinlab/rtbus/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running peer's status",
	Long:  `Query the running rtbus peer and display its identity, uptime, and known peers.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := control.FetchStatus(control.ResolveSocketPath())
	if err != nil {
		return fmt.Errorf("is rtbusctl run running? %w", err)
	}

	fmt.Fprintf(os.Stdout, "Device:    %s\n", status.Device)
	fmt.Fprintf(os.Stdout, "Port:      %d\n", status.Port)
	fmt.Fprintf(os.Stdout, "Uptime:    %s\n", formatDuration(time.Duration(status.UptimeSeconds*float64(time.Second))))
	fmt.Fprintf(os.Stdout, "Endpoints: %s\n", strings.Join(status.Endpoints, ", "))
	fmt.Fprintf(os.Stdout, "Peers:     %d\n", len(status.Peers))

	if len(status.Peers) > 0 {
		fmt.Println()
		for _, p := range status.Peers {
			fmt.Fprintf(os.Stdout, "  - %s\n", p)
		}
	}

	return nil
}

// formatDuration formats a duration into a human-readable string like
// "2h15m" or "45s".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
