package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/basinlab/rtbus/internal/control"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List peers discovered on the bus",
	Long:  `Display every remote peer the running rtbus process has observed traffic from, and the endpoints each one publishes.`,
	RunE:  runPeers,
}

func runPeers(cmd *cobra.Command, args []string) error {
	peers, err := control.FetchPeers(control.ResolveSocketPath())
	if err != nil {
		return fmt.Errorf("is rtbusctl run running? %w", err)
	}

	if len(peers) == 0 {
		fmt.Println("No peers discovered yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PEER\tADDRESS\tENDPOINTS")
	for _, p := range peers {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Address, strings.Join(p.Endpoints, ", "))
	}
	return w.Flush()
}
