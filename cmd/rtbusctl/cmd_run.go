package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/basinlab/rtbus"
	"github.com/basinlab/rtbus/internal/config"
	"github.com/basinlab/rtbus/internal/control"
	"github.com/basinlab/rtbus/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run this device as an rtbus peer",
	Long: `Start an rtbus peer: bind the shared bus socket, begin observing
traffic from other peers, and serve a local control socket for
"rtbusctl status" and "rtbusctl peers".`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New("rtbus")
	}

	peer, err := rtbus.Open(rtbus.Options{
		DeviceName:     cfg.Device.Name,
		Port:           cfg.Network.Port,
		BroadcastAddr:  cfg.Network.BroadcastAddr,
		ReceiveTimeout: cfg.Network.ReceiveTimeout.Duration(),
		MetaInterval:   cfg.Network.MetaInterval.Duration(),
		QueueSize:      cfg.Network.QueueSize,
		Metrics:        collector,
		Logger:         globalLogger,
	})
	if err != nil {
		return fmt.Errorf("opening peer: %w", err)
	}
	defer peer.Close()

	if err := peer.Announce(nil); err != nil {
		globalLogger.Warn("initial announce failed", "error", err)
	}

	started := time.Now()
	socketPath := control.ResolveSocketPath()
	srv := control.NewServer(socketPath, statusProviderFunc(peer, cfg, started), peersProviderFunc(peer))
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting control server: %w", err)
	}
	defer srv.Stop()

	globalLogger.Info("rtbus peer running",
		"device", cfg.Device.Name, "port", cfg.Network.Port, "control_socket", socketPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				globalLogger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	globalLogger.Info("rtbus peer stopped")
	return nil
}

func statusProviderFunc(peer *rtbus.Peer, cfg *config.Config, started time.Time) control.StatusProvider {
	return func() control.Status {
		return control.Status{
			Device:        peer.Device(),
			Port:          cfg.Network.Port,
			UptimeSeconds: time.Since(started).Seconds(),
			Endpoints:     knownLocalEndpoints(peer),
			Peers:         peer.Peers(),
		}
	}
}

func peersProviderFunc(peer *rtbus.Peer) control.PeersProvider {
	return func() []control.PeerDetail {
		names := peer.Peers()
		details := make([]control.PeerDetail, 0, len(names))
		for _, name := range names {
			endpoints, err := peer.Endpoints(name)
			if err != nil {
				continue
			}
			addrStr := ""
			if addr, ok := peer.Address(name); ok {
				addrStr = addr.String()
			}
			details = append(details, control.PeerDetail{
				Name:      name,
				Address:   addrStr,
				Endpoints: endpoints,
			})
		}
		return details
	}
}

// knownLocalEndpoints has no general way to introspect what this
// process has published — the registry only tracks remote traffic —
// so the status endpoint reports the reserved endpoints every peer
// always carries.
func knownLocalEndpoints(peer *rtbus.Peer) []string {
	return []string{rtbus.MetaEndpoint, rtbus.AnnounceEndpoint}
}
