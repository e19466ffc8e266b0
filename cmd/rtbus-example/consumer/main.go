// Command consumer is the subscriber half of the rtbus demo: it mirrors
// the original video-viewer's unicast subscription to a remote
// "camera" endpoint, but since there is no window to draw into here it
// just prints what it receives.
//
// Usage:
//
//	consumer -device pc -target rpi -port 5999
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/basinlab/rtbus"
)

func main() {
	device := flag.String("device", "pc", "this device's name on the bus")
	target := flag.String("target", "rpi", "remote device to subscribe to")
	port := flag.Int("port", 5999, "shared bus port")
	broadcastAddr := flag.String("broadcast", "255.255.255.255", "broadcast address for undirected publishes")
	pollInterval := flag.Duration("poll", 20*time.Millisecond, "how often to check for new values")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	peer, err := rtbus.Open(rtbus.Options{
		DeviceName:    *device,
		Port:          *port,
		BroadcastAddr: *broadcastAddr,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("opening peer", "error", err)
		os.Exit(1)
	}
	defer peer.Close()

	// Request unicast delivery of the frame endpoint — too much drop
	// on broadcast for a high-rate stream, per the original demo.
	peer.Subscribe(*target, "frame")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	logger.Info("consumer started", "device", *device, "target", *target, "addr", peer.LocalAddr())

	var lastFrame string
	for {
		select {
		case <-ctx.Done():
			logger.Info("consumer stopping")
			return
		case <-ticker.C:
			if peer.Has(*target, "frame") {
				raw, err := peer.Value(*target, "frame")
				if err != nil {
					logger.Warn("reading frame", "error", err)
					continue
				}
				frame, ok := raw.([]byte)
				if ok && string(frame) != lastFrame {
					lastFrame = string(frame)
					logger.Info("frame received", "bytes", len(frame), "content", lastFrame)
				}
			}

			if peer.Has(*target, "data") {
				raw, err := peer.Value(*target, "data")
				if err != nil {
					logger.Warn("reading data", "error", err)
					continue
				}
				val, ok := raw.(rtbus.Value)
				if !ok {
					continue
				}
				fields, ok := val.Map()
				if !ok {
					continue
				}
				for name, v := range fields {
					elems, ok := v.Slice()
					if !ok || len(elems) != 2 {
						continue
					}
					n, _ := elems[0].Float64()
					unit, _ := elems[1].String()
					logger.Info("telemetry", "name", name, "value", n, "unit", unit)
				}
			}
		}
	}
}
