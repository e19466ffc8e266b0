// Package metrics exposes the Prometheus counters a running rtbus
// peer accumulates: malformed datagrams dropped, fragments sent and
// received, endpoint values committed, and queue/send failure
// counts. Modeled directly on kubernetes-dns's pkg/sidecar/metrics.go,
// which defines a handful of named counters against a dedicated
// prometheus.Registry and serves them over HTTP with promhttp.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every counter rtbus exports for one peer process.
type Collector struct {
	reg *prometheus.Registry

	malformedDatagrams prometheus.Counter
	fragmentsSent       prometheus.Counter
	fragmentsReceived   prometheus.Counter
	endpointCommits     *prometheus.CounterVec
	queueFull           prometheus.Counter
	sendErrors          prometheus.Counter
}

// New creates a Collector and registers its counters under namespace
// (typically "rtbus").
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		malformedDatagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "malformed_datagrams_total",
			Help:      "Datagrams dropped because their header failed to parse.",
		}),
		fragmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "fragments_sent_total",
			Help:      "Fragment datagrams written to the socket.",
		}),
		fragmentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "fragments_received_total",
			Help:      "Fragment datagrams successfully decoded.",
		}),
		endpointCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "endpoint_commits_total",
			Help:      "Endpoint values committed, labeled by endpoint name.",
		}, []string{"endpoint"}),
		queueFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "queue_full_total",
			Help:      "Asynchronous publishes rejected because the outbound queue was full.",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "send_errors_total",
			Help:      "Datagram sends that failed at the socket layer.",
		}),
	}

	reg.MustRegister(
		c.malformedDatagrams,
		c.fragmentsSent,
		c.fragmentsReceived,
		c.endpointCommits,
		c.queueFull,
		c.sendErrors,
	)
	return c
}

// IncMalformed records one dropped malformed datagram.
func (c *Collector) IncMalformed() { c.malformedDatagrams.Inc() }

// IncFragmentSent records one fragment written to the socket.
func (c *Collector) IncFragmentSent() { c.fragmentsSent.Inc() }

// IncFragmentReceived records one fragment successfully decoded.
func (c *Collector) IncFragmentReceived() { c.fragmentsReceived.Inc() }

// IncCommitted records one endpoint value committed for endpoint.
func (c *Collector) IncCommitted(endpoint string) { c.endpointCommits.WithLabelValues(endpoint).Inc() }

// IncQueueFull records one asynchronous publish rejected for a full
// outbound queue.
func (c *Collector) IncQueueFull() { c.queueFull.Inc() }

// IncSendError records one failed datagram send.
func (c *Collector) IncSendError() { c.sendErrors.Inc() }

// Handler returns the HTTP handler serving this collector's metrics
// in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve runs an HTTP server exposing /metrics on addr until ctx is
// canceled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
