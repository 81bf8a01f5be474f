package wsdiscovery

import "sync"

// SeenSet records the XAddresses emitted during one discovery run. It is
// shared by every session of that run and nothing else.
type SeenSet struct {
	mu    sync.Mutex
	addrs map[string]struct{}
}

// NewSeenSet creates an empty set
func NewSeenSet() *SeenSet {
	return &SeenSet{addrs: make(map[string]struct{})}
}

// Admit decides whether a device with xaddrs is new. If every address is
// already known it returns false. Otherwise it records all of them and
// returns true. The check and the insert happen under one lock, so two
// sessions can never both admit the same device.
//
// An empty xaddrs is never admitted.
func (s *SeenSet) Admit(xaddrs []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	allSeen := true
	for _, a := range xaddrs {
		if _, ok := s.addrs[a]; !ok {
			allSeen = false
			break
		}
	}
	if allSeen {
		return false
	}

	for _, a := range xaddrs {
		s.addrs[a] = struct{}{}
	}
	return true
}

// Len returns the number of distinct addresses recorded
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.addrs)
}

// gate is the single point every session's devices pass through. Admit
// and the hand-off to the sink share one lock so devices leave in the
// order they cleared dedup.
type gate struct {
	mu   sync.Mutex
	seen *SeenSet
	out  *sink
}

func newGate(seen *SeenSet, out *sink) *gate {
	return &gate{seen: seen, out: out}
}

// pass emits dev unless every one of its XAddresses was already seen
func (g *gate) pass(dev Device) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.seen.Admit(dev.XAddresses) {
		return false
	}
	g.out.put(dev)
	return true
}
