package main

import (
	"fmt"
	"os"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Display a QR code for this device's bus identity",
	Long: `Displays a QR code containing this device's name and bus port, as
"rtbus://<device>:<port>". Nothing in rtbusctl reads the code back;
"rtbusctl init" still asks for every value by hand.

Requires an existing configuration (run 'rtbusctl init' first).`,
	RunE: runQR,
}

func runQR(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w (run 'rtbusctl init' first)", err)
	}

	payload := fmt.Sprintf("rtbus://%s:%d", cfg.Device.Name, cfg.Network.Port)

	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("generating QR code: %w", err)
	}

	fmt.Fprintln(os.Stderr, qr.ToSmallString(false))
	fmt.Fprintf(os.Stderr, "Device: %s\n", payload)
	return nil
}
