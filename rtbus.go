// Package rtbus is a lightweight peer-to-peer real-time communication
// bus for devices on the same local network: peers exchange fragmented
// UDP datagrams, discover each other by passively observing traffic,
// and deliver the latest value published on an endpoint on a
// best-effort, last-value-wins basis.
package rtbus

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/basinlab/rtbus/internal/metrics"
	"github.com/basinlab/rtbus/internal/registry"
	"github.com/basinlab/rtbus/internal/transport"
	"github.com/basinlab/rtbus/pkg/wire"
)

// Re-exported so callers can classify failures without importing the
// internal packages directly.
var (
	ErrUnknownPeer         = registry.ErrUnknownPeer
	ErrNoValueYet          = registry.ErrNoValueYet
	ErrQueueFull           = transport.ErrQueueFull
	ErrUnsupportedEncoding = wire.ErrUnsupportedEncoding
)

// MetaEndpoint and AnnounceEndpoint are the well-known endpoint names
// every peer reserves for its own housekeeping traffic.
const (
	MetaEndpoint     = transport.MetaEndpoint
	AnnounceEndpoint = transport.AnnounceEndpoint
)

// Value is a decoded structured (yaml-encoded) endpoint payload.
type Value = wire.Value

// Options configures a new Peer. DeviceName is required; every other
// field has a zero-value-safe default.
type Options struct {
	DeviceName     string
	Port           int
	BroadcastAddr  string
	ReceiveTimeout time.Duration
	MetaInterval   time.Duration
	QueueSize      int
	Metrics        *metrics.Collector
	Logger         *slog.Logger
}

// Peer is one running rtbus bus participant: it owns a UDP socket, the
// registry of observed remote peers, and this device's outgoing
// subscription table.
type Peer struct {
	device        string
	engine        *transport.Engine
	registry      *registry.Registry
	subscriptions *transport.SubscriptionTable
	log           *slog.Logger
}

// Open binds the shared bus socket and starts the background
// send/receive loop. Call Close when done.
func Open(opts Options) (*Peer, error) {
	if opts.DeviceName == "" {
		return nil, fmt.Errorf("rtbus: DeviceName is required")
	}

	reg := registry.New()
	subs := transport.NewSubscriptionTable()

	engine, err := transport.New(transport.Options{
		DeviceName:     opts.DeviceName,
		Port:           opts.Port,
		BroadcastAddr:  opts.BroadcastAddr,
		ReceiveTimeout: opts.ReceiveTimeout,
		MetaInterval:   opts.MetaInterval,
		QueueSize:      opts.QueueSize,
		Metrics:        opts.Metrics,
		Logger:         opts.Logger,
		Registry:       reg,
		Subscriptions:  subs,
	})
	if err != nil {
		return nil, err
	}
	engine.Start()

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Peer{
		device:        opts.DeviceName,
		engine:        engine,
		registry:      reg,
		subscriptions: subs,
		log:           log.With("component", "rtbus", "device", opts.DeviceName),
	}, nil
}

// Close stops the background loop and releases the socket.
func (p *Peer) Close() error {
	return p.engine.Close()
}

// Device returns this peer's own device name.
func (p *Peer) Device() string { return p.device }

// LocalAddr returns the address of this peer's bound bus socket.
func (p *Peer) LocalAddr() net.Addr { return p.engine.LocalAddr() }

// Announce broadcasts this peer's name and the endpoints it publishes,
// speeding up discovery beyond the opportunistic kind that happens on
// any received datagram.
func (p *Peer) Announce(endpoints []string) error {
	return p.engine.Announce(endpoints)
}

// Subscribe records that this peer wants endpoint delivered directly
// (unicast) from remotePeer, rather than relying on that peer's
// broadcast traffic. The subscription is advertised to remotePeer on
// this peer's next meta heartbeat.
func (p *Peer) Subscribe(remotePeer, endpoint string) {
	p.subscriptions.Subscribe(remotePeer, endpoint)
}

// PublishBinary asynchronously publishes raw bytes under endpoint.
// Delivery is best-effort: ErrQueueFull is returned if the outbound
// queue is saturated.
func (p *Peer) PublishBinary(endpoint string, payload []byte) error {
	return p.engine.Publish(transport.PublishRequest{
		Endpoint: endpoint,
		Payload:  payload,
		Encoding: wire.EncodingBinary,
	})
}

// Publish asynchronously publishes a structured value under endpoint,
// yaml-encoding it first.
func (p *Peer) Publish(endpoint string, value any) error {
	raw, err := wire.EncodeValue(wire.EncodingYAML, value)
	if err != nil {
		return err
	}
	return p.engine.Publish(transport.PublishRequest{
		Endpoint: endpoint,
		Payload:  raw,
		Encoding: wire.EncodingYAML,
	})
}

// PublishTo bypasses the subscriber-derived routing entirely and
// sends a structured value directly to addr.
func (p *Peer) PublishTo(addr net.Addr, endpoint string, value any) error {
	raw, err := wire.EncodeValue(wire.EncodingYAML, value)
	if err != nil {
		return err
	}
	return p.engine.PublishSync(transport.PublishRequest{
		Endpoint: endpoint,
		Payload:  raw,
		Encoding: wire.EncodingYAML,
		Override: addr,
	})
}

// Peers returns the names of every remote peer observed so far, in
// sorted order.
func (p *Peer) Peers() []string {
	return p.registry.PeerNames()
}

// Endpoints returns the endpoint names known for peerName.
func (p *Peer) Endpoints(peerName string) ([]string, error) {
	return p.registry.Endpoints(peerName)
}

// Address returns the last-observed source address for peerName.
func (p *Peer) Address(peerName string) (net.Addr, bool) {
	return p.registry.Address(peerName)
}

// Has reports whether peerName has a committed value for endpoint.
func (p *Peer) Has(peerName, endpoint string) bool {
	return p.registry.Has(peerName, endpoint)
}

// Value returns the latest committed value for (peerName, endpoint).
func (p *Peer) Value(peerName, endpoint string) (any, error) {
	return p.registry.Value(peerName, endpoint)
}
