package transport

import (
	"sort"
	"sync"
)

// SubscriptionTable is this peer's set of (remote peer -> endpoint)
// subscriptions, mutated by the application via Peer.Subscribe and
// published periodically as part of this peer's meta endpoint so
// remote peers can learn who wants their streams unicast.
type SubscriptionTable struct {
	mu     sync.RWMutex
	wanted map[string]map[string]struct{}
}

// NewSubscriptionTable creates an empty subscription table.
func NewSubscriptionTable() *SubscriptionTable {
	return &SubscriptionTable{wanted: make(map[string]map[string]struct{})}
}

// Subscribe records that this peer wants endpoint delivered directly
// from remotePeer.
func (s *SubscriptionTable) Subscribe(remotePeer, endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.wanted[remotePeer]
	if !ok {
		set = make(map[string]struct{})
		s.wanted[remotePeer] = set
	}
	set[endpoint] = struct{}{}
}

// Snapshot returns remote-peer-name -> sorted endpoint names, the
// shape published under the meta endpoint's "subscriptions" field.
func (s *SubscriptionTable) Snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.wanted))
	for remote, set := range s.wanted {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		out[remote] = names
	}
	return out
}
