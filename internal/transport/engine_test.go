package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/basinlab/rtbus/internal/registry"
	"github.com/basinlab/rtbus/pkg/wire"
)

type fakeAddr string

func (f fakeAddr) Network() string { return "udp" }
func (f fakeAddr) String() string  { return string(f) }

type timeoutError struct{}

func (timeoutError) Error() string   { return "fakeConn: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type inboundDatagram struct {
	data []byte
	addr net.Addr
}

type sentDatagram struct {
	data []byte
	addr net.Addr
}

// fakeConn is a minimal net.PacketConn used to drive the Engine
// without a real socket: ReadFrom blocks on an inbound channel or
// times out against whatever deadline SetReadDeadline last set, and
// WriteTo just records what was sent.
type fakeConn struct {
	inbound chan inboundDatagram

	mu       sync.Mutex
	deadline time.Time
	sent     []sentDatagram
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan inboundDatagram, 16)}
}

func (f *fakeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	f.mu.Lock()
	deadline := f.deadline
	f.mu.Unlock()

	var timer <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return 0, nil, timeoutError{}
		}
		t := time.NewTimer(d)
		defer t.Stop()
		timer = t.C
	}

	select {
	case dg, ok := <-f.inbound:
		if !ok {
			return 0, nil, io.EOF
		}
		n := copy(p, dg.data)
		return n, dg.addr, nil
	case <-timer:
		return 0, nil, timeoutError{}
	}
}

func (f *fakeConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	f.sent = append(f.sent, sentDatagram{data: cp, addr: addr})
	return len(p), nil
}

func (f *fakeConn) sentTo() []sentDatagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentDatagram, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
func (f *fakeConn) LocalAddr() net.Addr                { return fakeAddr("fake:0") }
func (f *fakeConn) SetDeadline(t time.Time) error      { return f.SetReadDeadline(t) }
func (f *fakeConn) SetWriteDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	return nil
}

func newTestEngine(t *testing.T, conn *fakeConn) *Engine {
	t.Helper()
	broadcastAddr := fakeAddr("255.255.255.255:5999")
	cfg := Options{DeviceName: "A", Registry: registry.New()}
	cfg.applyDefaults()
	return newEngine(cfg, conn, broadcastAddr)
}

func TestPublish_NoSubscribers_Broadcasts(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	e := newTestEngine(t, conn)

	if err := e.sendOne(PublishRequest{Endpoint: "x", Payload: []byte("hi"), Encoding: wire.EncodingBinary}); err != nil {
		t.Fatalf("sendOne: %v", err)
	}

	sent := conn.sentTo()
	if len(sent) != 1 {
		t.Fatalf("got %d sent datagrams, want 1", len(sent))
	}
	if sent[0].addr.String() != "255.255.255.255:5999" {
		t.Errorf("sent to %v, want broadcast address", sent[0].addr)
	}
}

func TestPublish_WithSubscriber_Unicasts(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	e := newTestEngine(t, conn)

	metaPayload := map[string]any{
		"heartbeat": 1,
		"subscriptions": map[string]any{
			"A": []any{"x"},
		},
	}
	raw, err := wire.EncodeValue(wire.EncodingYAML, metaPayload)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	datagrams, err := wire.Encode("B", registry.MetaEndpoint, raw, wire.EncodingYAML, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frag, err := wire.Decode(datagrams[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	bAddr := fakeAddr("10.0.0.2:5999")
	if _, err := e.registry.Ingest(bAddr, frag); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	e.recomputeSubscribers()

	if err := e.sendOne(PublishRequest{Endpoint: "x", Payload: []byte("hi"), Encoding: wire.EncodingBinary}); err != nil {
		t.Fatalf("sendOne: %v", err)
	}

	sent := conn.sentTo()
	if len(sent) != 1 {
		t.Fatalf("got %d sent datagrams, want 1", len(sent))
	}
	if sent[0].addr.String() != "10.0.0.2:5999" {
		t.Errorf("sent to %v, want subscriber address", sent[0].addr)
	}
}

func TestPublish_OverrideBypassesSubscribers(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	e := newTestEngine(t, conn)
	e.subscribersCache = map[string][]net.Addr{"x": {fakeAddr("10.0.0.2:5999")}}

	override := fakeAddr("10.0.0.9:5999")
	if err := e.sendOne(PublishRequest{Endpoint: "x", Payload: []byte("hi"), Encoding: wire.EncodingBinary, Override: override}); err != nil {
		t.Fatalf("sendOne: %v", err)
	}

	sent := conn.sentTo()
	if len(sent) != 1 {
		t.Fatalf("got %d sent datagrams, want 1", len(sent))
	}
	if sent[0].addr.String() != string(override) {
		t.Errorf("sent to %v, want override %v", sent[0].addr, override)
	}
}

func TestPublish_QueueFull(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	cfg := Options{DeviceName: "A", Registry: registry.New(), QueueSize: 1}
	cfg.applyDefaults()
	e := newEngine(cfg, conn, fakeAddr("255.255.255.255:5999"))

	req := PublishRequest{Endpoint: "x", Payload: []byte("hi"), Encoding: wire.EncodingBinary}
	if err := e.Publish(req); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	if err := e.Publish(req); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Publish error = %v, want ErrQueueFull", err)
	}
}

func TestSendOne_TransmissionIDsMonotonic(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	e := newTestEngine(t, conn)

	for i := 0; i < 3; i++ {
		if err := e.sendOne(PublishRequest{Endpoint: "x", Payload: []byte("v"), Encoding: wire.EncodingBinary}); err != nil {
			t.Fatalf("sendOne %d: %v", i, err)
		}
	}

	sent := conn.sentTo()
	if len(sent) != 3 {
		t.Fatalf("got %d sent datagrams, want 3", len(sent))
	}
	for i, dg := range sent {
		frag, err := wire.Decode(dg.data)
		if err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if frag.TransmissionID != i {
			t.Errorf("datagram %d: transmission id = %d, want %d", i, frag.TransmissionID, i)
		}
	}
}

func TestAnnounce_PublishesAnnounceEndpoint(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	e := newTestEngine(t, conn)

	if err := e.Announce([]string{"camera", "data"}); err != nil {
		t.Fatalf("Announce: %v", err)
	}

	sent := conn.sentTo()
	if len(sent) != 1 {
		t.Fatalf("got %d sent datagrams, want 1", len(sent))
	}
	frag, err := wire.Decode(sent[0].data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frag.Endpoint != AnnounceEndpoint {
		t.Errorf("endpoint = %q, want %q", frag.Endpoint, AnnounceEndpoint)
	}
	value, err := wire.DecodeValue(frag.Encoding, frag.Payload)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	v, ok := value.(wire.Value)
	if !ok {
		t.Fatalf("decoded type = %T, want wire.Value", value)
	}
	deviceName, ok := v.Get("announce").Get("device_name").String()
	if !ok || deviceName != "A" {
		t.Errorf("announce.device_name = %q (ok=%v), want A", deviceName, ok)
	}
}

func TestHandleDatagram_IgnoresSelf(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	e := newTestEngine(t, conn)

	datagrams, err := wire.Encode("A", "x", []byte("self"), wire.EncodingBinary, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	e.handleDatagram(fakeAddr("10.0.0.1:5999"), datagrams[0])

	if names := e.registry.PeerNames(); len(names) != 0 {
		t.Errorf("PeerNames = %v, want none (own traffic should be ignored)", names)
	}
}

func TestHandleDatagram_MalformedDropped(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	e := newTestEngine(t, conn)

	e.handleDatagram(fakeAddr("10.0.0.1:5999"), []byte("not a valid datagram"))

	if names := e.registry.PeerNames(); len(names) != 0 {
		t.Errorf("PeerNames = %v, want none", names)
	}
}

func TestCloseStopsRunLoop(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	e := newTestEngine(t, conn)
	e.receiveTimeout = time.Millisecond

	e.Start()
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !conn.closed {
		t.Error("Close did not close the underlying socket")
	}
}
