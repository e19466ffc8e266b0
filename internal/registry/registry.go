// Package registry holds the in-memory set of known remote peers and
// their endpoints' latest values. All mutation happens on the receive
// loop via Ingest; every other accessor takes a short read lock and
// returns a value snapshot so concurrent readers never see a torn
// update.
package registry

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/basinlab/rtbus/pkg/wire"
)

// Sentinel errors returned by lookups against the registry.
var (
	// ErrUnknownPeer is returned when looking up a peer name the
	// registry has never observed traffic from.
	ErrUnknownPeer = errors.New("registry: unknown peer")

	// ErrNoValueYet is returned when looking up an endpoint of a known
	// peer that has not yet had a complete value committed, including
	// an endpoint the peer has never sent anything on.
	ErrNoValueYet = errors.New("registry: no value received yet")
)

// MetaEndpoint is the well-known endpoint name every peer publishes
// its heartbeat and subscription table under.
const MetaEndpoint = "meta"

// Registry is the set of known remote peers, keyed by device name.
// The zero value is not usable; construct with New.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*peerRecord
}

type peerRecord struct {
	name      string
	addr      net.Addr
	endpoints map[string]*endpointRecord
}

type endpointRecord struct {
	encoding       wire.Encoding
	transmissionID int
	hasValue       bool
	value          any
	fragments      map[int][]byte
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{peers: make(map[string]*peerRecord)}
}

// Ingest applies one decoded fragment, received from addr, to the
// registry: it creates the peer and endpoint records on first sight,
// then runs the single- or multi-fragment commit logic. It reports
// whether the fragment caused a new value to be
// committed, and any error decoding a fully reassembled structured
// payload — a decode error still advances the endpoint's transmission
// id (the bytes were received; they just didn't parse as the
// endpoint's declared encoding).
func (r *Registry) Ingest(addr net.Addr, frag wire.Fragment) (committed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.peers[frag.Device]
	if p == nil {
		p = &peerRecord{name: frag.Device, endpoints: make(map[string]*endpointRecord)}
		r.peers[frag.Device] = p
	}
	p.addr = addr

	e := p.endpoints[frag.Endpoint]
	if e == nil {
		e = &endpointRecord{transmissionID: -1, fragments: make(map[int][]byte)}
		p.endpoints[frag.Endpoint] = e
	}

	if frag.Count == 1 {
		return r.commitSingle(e, frag)
	}
	return r.commitFragment(e, frag)
}

func (r *Registry) commitSingle(e *endpointRecord, frag wire.Fragment) (bool, error) {
	if e.hasValue && !wire.AcceptTransmission(e.transmissionID, frag.TransmissionID) {
		return false, nil
	}

	e.transmissionID = frag.TransmissionID
	e.encoding = frag.Encoding

	value, err := wire.DecodeValue(frag.Encoding, frag.Payload)
	if err != nil {
		return false, err
	}
	e.value = value
	e.hasValue = true
	e.fragments = make(map[int][]byte)
	return true, nil
}

func (r *Registry) commitFragment(e *endpointRecord, frag wire.Fragment) (bool, error) {
	if frag.TransmissionID != e.transmissionID {
		e.fragments = make(map[int][]byte)
		e.transmissionID = frag.TransmissionID
		e.encoding = frag.Encoding
	}
	e.fragments[frag.Sequence] = frag.Payload

	for i := 0; i < frag.Count; i++ {
		if _, ok := e.fragments[i]; !ok {
			return false, nil
		}
	}

	var buf []byte
	for i := 0; i < frag.Count; i++ {
		buf = append(buf, e.fragments[i]...)
	}
	e.fragments = make(map[int][]byte)

	value, err := wire.DecodeValue(frag.Encoding, buf)
	if err != nil {
		return false, err
	}
	e.value = value
	e.hasValue = true
	return true, nil
}

// PeerNames returns the names of every peer the registry has
// observed traffic from, in sorted order.
func (r *Registry) PeerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.peers))
	for name := range r.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Address returns the last-observed source address for peerName.
func (r *Registry) Address(peerName string) (net.Addr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[peerName]
	if !ok {
		return nil, false
	}
	return p.addr, true
}

// Endpoints returns the endpoint names known for peerName.
func (r *Registry) Endpoints(peerName string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[peerName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeer, peerName)
	}
	names := make([]string, 0, len(p.endpoints))
	for name := range p.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Has reports whether peerName has a committed value for endpoint.
func (r *Registry) Has(peerName, endpoint string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[peerName]
	if !ok {
		return false
	}
	e, ok := p.endpoints[endpoint]
	return ok && e.hasValue
}

// Value returns the latest committed value for (peerName, endpoint).
// It fails with ErrUnknownPeer if the peer has never been observed,
// or ErrNoValueYet if nothing has been fully reassembled for the
// endpoint yet (or the endpoint has never been seen).
func (r *Registry) Value(peerName, endpoint string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[peerName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeer, peerName)
	}
	e, ok := p.endpoints[endpoint]
	if !ok || !e.hasValue {
		return nil, fmt.Errorf("%w: %s[%s]", ErrNoValueYet, peerName, endpoint)
	}
	return e.value, nil
}

// Subscribers scans every known peer's meta endpoint and returns, for
// each local endpoint name this peer (named selfName) publishes, the
// addresses of remote peers that declared a subscription to it. It
// derives this purely from each remote peer's most recent meta
// heartbeat, so it updates automatically as subscriptions change.
func (r *Registry) Subscribers(selfName string) map[string][]net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]net.Addr)
	for _, p := range r.peers {
		e := p.endpoints[MetaEndpoint]
		if e == nil || !e.hasValue {
			continue
		}
		meta, ok := e.value.(wire.Value)
		if !ok {
			continue
		}
		wanted := meta.Get("subscriptions").Get(selfName)
		endpoints, ok := wanted.Slice()
		if !ok {
			continue
		}
		for _, epVal := range endpoints {
			name, ok := epVal.String()
			if !ok || p.addr == nil {
				continue
			}
			out[name] = append(out[name], p.addr)
		}
	}
	return out
}
