// Package transport is the send/receive engine of a peer: it owns the
// shared datagram socket, runs the receive loop that dispatches
// inbound fragments to the registry, and drains the outbound publish
// queue — applying directed-vs-broadcast routing and the periodic
// meta heartbeat — whenever a receive attempt times out.
package transport

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basinlab/rtbus/internal/metrics"
	"github.com/basinlab/rtbus/internal/registry"
	"github.com/basinlab/rtbus/pkg/wire"
)

// PublishRequest is one pending publish. Payload is already in its
// final wire form (YAML-marshaled bytes for structured endpoints, raw
// bytes for binary ones) — the Engine only fragments and routes it.
// Callers apply EncodeValue before queueing; DecodeValue runs in the
// registry when a received message is committed.
type PublishRequest struct {
	Endpoint string
	Payload  []byte
	Encoding wire.Encoding

	// Override, if set, bypasses the subscribers view entirely and
	// sends directly to this address: an explicit override always
	// wins, it never falls through to per-subscriber fan-out.
	Override net.Addr
}

// Engine is the concurrent send/receive core of a peer. The zero
// value is not usable; construct with New.
type Engine struct {
	device         string
	port           int
	broadcastAddr  net.Addr
	receiveTimeout time.Duration
	metaInterval   time.Duration

	log     *slog.Logger
	metrics *metrics.Collector

	conn          net.PacketConn
	registry      *registry.Registry
	subscriptions *SubscriptionTable

	outbound chan PublishRequest

	sendMu sync.Mutex

	localIDsMu sync.Mutex
	localIDs   map[string]int

	subsMu           sync.RWMutex
	subscribersCache map[string][]net.Addr

	heartbeat uint64
	lastMeta  time.Time

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New binds the shared socket and constructs an Engine ready for
// Start. The socket is not listening for application traffic until
// Start is called.
func New(cfg Options) (*Engine, error) {
	cfg.applyDefaults()
	if cfg.DeviceName == "" {
		return nil, fmt.Errorf("transport: DeviceName is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("transport: Registry is required")
	}

	conn, err := listen(cfg.Port)
	if err != nil {
		return nil, err
	}

	broadcastAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", cfg.BroadcastAddr, cfg.Port))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("resolving broadcast address: %w", err)
	}

	return newEngine(cfg, conn, broadcastAddr), nil
}

// newEngine builds an Engine around an already-bound conn, letting
// tests inject a fake net.PacketConn instead of a real socket.
func newEngine(cfg Options, conn net.PacketConn, broadcastAddr net.Addr) *Engine {
	return &Engine{
		device:           cfg.DeviceName,
		port:             cfg.Port,
		broadcastAddr:    broadcastAddr,
		receiveTimeout:   cfg.ReceiveTimeout,
		metaInterval:     cfg.MetaInterval,
		log:              cfg.Logger.With("component", "transport", "device", cfg.DeviceName),
		metrics:          cfg.Metrics,
		conn:             conn,
		registry:         cfg.Registry,
		subscriptions:    cfg.Subscriptions,
		outbound:         make(chan PublishRequest, cfg.QueueSize),
		localIDs:         make(map[string]int),
		subscribersCache: make(map[string][]net.Addr),
		closing:          make(chan struct{}),
	}
}

// Start launches the receive loop in the background. It returns
// immediately; call Close to stop it.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()
}

// LocalAddr returns the address of the bound bus socket.
func (e *Engine) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// Close signals the receive loop to stop and waits for it to exit —
// at most one receive-timeout interval — then closes the socket. The
// outbound queue is discarded, not drained.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closing)
		e.wg.Wait()
		err = e.conn.Close()
	})
	return err
}

// Publish enqueues req for asynchronous delivery. It returns
// ErrQueueFull immediately rather than blocking if the outbound queue
// has no room.
func (e *Engine) Publish(req PublishRequest) error {
	select {
	case e.outbound <- req:
		return nil
	default:
		if e.metrics != nil {
			e.metrics.IncQueueFull()
		}
		return ErrQueueFull
	}
}

// PublishSync encodes and sends req inline, bypassing the outbound
// queue.
func (e *Engine) PublishSync(req PublishRequest) error {
	return e.sendOne(req)
}

// Announce broadcasts a one-shot message describing this peer's name
// and known endpoints. Its absence (callers simply not invoking it)
// is non-fatal to discovery, which also happens opportunistically on
// any received datagram.
func (e *Engine) Announce(endpoints []string) error {
	payload := map[string]any{
		"announce": map[string]any{
			"device_name": e.device,
			"endpoints":   endpoints,
		},
	}
	raw, err := wire.EncodeValue(wire.EncodingYAML, payload)
	if err != nil {
		return fmt.Errorf("encoding announce payload: %w", err)
	}
	return e.PublishSync(PublishRequest{
		Endpoint: AnnounceEndpoint,
		Payload:  raw,
		Encoding: wire.EncodingYAML,
	})
}

func (e *Engine) run() {
	defer e.wg.Done()

	buf := make([]byte, wire.MaxDatagramSize)
	for {
		select {
		case <-e.closing:
			return
		default:
		}

		if err := e.conn.SetReadDeadline(time.Now().Add(e.receiveTimeout)); err != nil {
			e.log.Warn("setting read deadline", "error", err)
		}

		n, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				e.onTimeout()
				continue
			}
			if e.isClosing() {
				return
			}
			e.log.Warn("socket read error", "error", err)
			continue
		}

		dg := make([]byte, n)
		copy(dg, buf[:n])
		e.handleDatagram(addr, dg)
	}
}

func (e *Engine) isClosing() bool {
	select {
	case <-e.closing:
		return true
	default:
		return false
	}
}

func (e *Engine) handleDatagram(addr net.Addr, dg []byte) {
	frag, err := wire.Decode(dg)
	if err != nil {
		if e.metrics != nil {
			e.metrics.IncMalformed()
		}
		e.log.Debug("dropping malformed datagram", "error", err)
		return
	}
	if e.metrics != nil {
		e.metrics.IncFragmentReceived()
	}
	if frag.Device == e.device {
		// Our own broadcast, looped back by the OS.
		return
	}

	committed, err := e.registry.Ingest(addr, frag)
	if err != nil {
		e.log.Debug("decoding endpoint payload failed",
			"from", frag.Device, "endpoint", frag.Endpoint, "error", err)
		return
	}
	if committed && e.metrics != nil {
		e.metrics.IncCommitted(frag.Endpoint)
	}
}

// onTimeout runs the send-side maintenance due on every receive
// timeout: recomputing the subscribers view, draining the outbound
// queue, and publishing the meta heartbeat if its interval has
// elapsed.
func (e *Engine) onTimeout() {
	atomic.AddUint64(&e.heartbeat, 1)
	e.recomputeSubscribers()
	e.drainOutbound()
	e.maybePublishMeta()
}

func (e *Engine) recomputeSubscribers() {
	subs := e.registry.Subscribers(e.device)
	e.subsMu.Lock()
	e.subscribersCache = subs
	e.subsMu.Unlock()
}

func (e *Engine) drainOutbound() {
	for {
		select {
		case req := <-e.outbound:
			if err := e.sendOne(req); err != nil {
				e.log.Warn("publish failed", "endpoint", req.Endpoint, "error", err)
			}
		default:
			return
		}
	}
}

func (e *Engine) maybePublishMeta() {
	if time.Since(e.lastMeta) < e.metaInterval {
		return
	}
	e.lastMeta = time.Now()

	meta := map[string]any{
		"heartbeat":     atomic.LoadUint64(&e.heartbeat),
		"subscriptions": e.subscriptions.Snapshot(),
	}
	raw, err := wire.EncodeValue(wire.EncodingYAML, meta)
	if err != nil {
		e.log.Error("encoding meta payload", "error", err)
		return
	}
	if err := e.sendOne(PublishRequest{
		Endpoint: MetaEndpoint,
		Payload:  raw,
		Encoding: wire.EncodingYAML,
	}); err != nil {
		e.log.Warn("publishing meta heartbeat failed", "error", err)
	}
}

func (e *Engine) sendOne(req PublishRequest) error {
	id := e.nextID(req.Endpoint)
	datagrams, err := wire.Encode(e.device, req.Endpoint, req.Payload, req.Encoding, id)
	if err != nil {
		return err
	}

	if req.Override != nil {
		return e.sendAll(datagrams, req.Override)
	}

	e.subsMu.RLock()
	subs := e.subscribersCache[req.Endpoint]
	e.subsMu.RUnlock()

	if len(subs) > 0 {
		var firstErr error
		for _, addr := range subs {
			if err := e.sendAll(datagrams, addr); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	return e.sendAll(datagrams, e.broadcastAddr)
}

func (e *Engine) sendAll(datagrams [][]byte, addr net.Addr) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	for _, dg := range datagrams {
		if _, err := e.conn.WriteTo(dg, addr); err != nil {
			if e.metrics != nil {
				e.metrics.IncSendError()
			}
			return fmt.Errorf("sending datagram to %s: %w", addr, err)
		}
		if e.metrics != nil {
			e.metrics.IncFragmentSent()
		}
	}
	return nil
}

func (e *Engine) nextID(endpoint string) int {
	e.localIDsMu.Lock()
	defer e.localIDsMu.Unlock()

	id, ok := e.localIDs[endpoint]
	if !ok {
		e.localIDs[endpoint] = 0
		return 0
	}
	id++
	e.localIDs[endpoint] = id
	return id
}
