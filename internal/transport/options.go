package transport

import (
	"log/slog"
	"time"

	"github.com/basinlab/rtbus/internal/metrics"
	"github.com/basinlab/rtbus/internal/registry"
)

// Well-known defaults for the bus port, broadcast address, and the
// reserved endpoint names every peer publishes under.
const (
	DefaultPort           = 5999
	DefaultBroadcastAddr  = "255.255.255.255"
	DefaultReceiveTimeout = 10 * time.Millisecond
	DefaultMetaInterval   = 100 * time.Millisecond
	DefaultQueueSize      = 64

	MetaEndpoint     = registry.MetaEndpoint
	AnnounceEndpoint = "announce"
)

// Options configures a new Engine. DeviceName and Registry are
// required; every other field has a zero-value-safe default applied
// by New.
type Options struct {
	// DeviceName is this peer's name, used as the sender field of
	// every outbound fragment and to recognize (and ignore) our own
	// broadcast traffic looped back by the OS.
	DeviceName string

	// Registry receives every inbound fragment. Required.
	Registry *registry.Registry

	// Subscriptions is this peer's subscription table, published as
	// part of the meta heartbeat. If nil, an empty table is created.
	Subscriptions *SubscriptionTable

	// Port is the UDP port the socket binds to and sends to. Defaults
	// to DefaultPort (5999).
	Port int

	// BroadcastAddr is used for undirected publishes. Defaults to
	// DefaultBroadcastAddr ("255.255.255.255").
	BroadcastAddr string

	// ReceiveTimeout bounds each blocking read so the loop can
	// interleave send-side maintenance. Defaults to 10ms.
	ReceiveTimeout time.Duration

	// MetaInterval is the minimum spacing between meta heartbeat
	// publishes. Defaults to 100ms.
	MetaInterval time.Duration

	// QueueSize bounds the outbound publish queue. Defaults to 64.
	QueueSize int

	// Metrics receives counters for malformed datagrams, sent/received
	// fragments, queue-full rejections, and send errors. Optional.
	Metrics *metrics.Collector

	// Logger receives structured log events. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.BroadcastAddr == "" {
		o.BroadcastAddr = DefaultBroadcastAddr
	}
	if o.ReceiveTimeout == 0 {
		o.ReceiveTimeout = DefaultReceiveTimeout
	}
	if o.MetaInterval == 0 {
		o.MetaInterval = DefaultMetaInterval
	}
	if o.QueueSize == 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Subscriptions == nil {
		o.Subscriptions = NewSubscriptionTable()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}
