package app

import "sync"

// seqGuard hands out monotonic request numbers per resource key so a
// slow in-flight read can be detected as superseded by a newer one and
// its result discarded instead of overwriting fresher state.
type seqGuard struct {
	mu       sync.Mutex
	counters map[string]uint64
}

func newSeqGuard() *seqGuard {
	return &seqGuard{counters: map[string]uint64{}}
}

// begin registers a new request for key and returns its number.
func (g *seqGuard) begin(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[key]++
	return g.counters[key]
}

// current reports whether token still belongs to the newest request
// for key.
func (g *seqGuard) current(key string, token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counters[key] == token
}
