// Command producer is a synthetic stand-in for the camera-equipped
// publisher of the rtbus demo: instead of reading frames off a real
// device, it generates a deterministic "frame" payload and a small
// telemetry struct on every cycle and broadcasts both, the same way a
// real sensor node would.
//
// Usage:
//
//	producer -device rpi -port 5999
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/basinlab/rtbus"
)

func main() {
	device := flag.String("device", "rpi", "this device's name on the bus")
	port := flag.Int("port", 5999, "shared bus port")
	broadcastAddr := flag.String("broadcast", "255.255.255.255", "broadcast address for undirected publishes")
	interval := flag.Duration("interval", 200*time.Millisecond, "synthetic frame cycle interval")
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

	if err := peer.Announce([]string{"frame", "data"}); err != nil {
		logger.Warn("announce failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Info("producer started", "device", *device, "addr", peer.LocalAddr())

	var frameNumber int
	loopStart := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("producer stopping")
			return
		case now := <-ticker.C:
			cycleMS := float64(now.Sub(loopStart)) / float64(time.Millisecond)
			loopStart = now

			frame := syntheticFrame(frameNumber)
			if err := peer.PublishBinary("frame", frame); err != nil {
				logger.Warn("publish frame", "error", err)
			}

			data := map[string]any{
				"Cycle Time": []any{cycleMS, "ms"},
				"Brightness": []any{syntheticBrightness(frameNumber), "lux"},
			}
			if err := peer.Publish("data", data); err != nil {
				logger.Warn("publish data", "error", err)
			}

			frameNumber++
		}
	}
}

// syntheticFrame stands in for a JPEG-encoded camera frame: a short
// byte sequence that changes every cycle so consumers can tell frames
// apart without decoding an actual image.
func syntheticFrame(n int) []byte {
	return []byte(fmt.Sprintf("frame#%08d", n))
}

// syntheticBrightness produces a smoothly oscillating reading so the
// consumer's printed telemetry visibly changes over time.
func syntheticBrightness(n int) float64 {
	return 500 + 400*math.Sin(float64(n)/10)
}
