package monitor

import "github.com/ashureev/decoy/internal/engine"

// ring keeps the most recent events. When full, the oldest event is overwritten.
// Callers synchronize access.
type ring struct {
	buf  []engine.TurnEvent
	head int
	full bool
}

func newRing(size int) *ring {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &ring{buf: make([]engine.TurnEvent, size)}
}

func (r *ring) push(ev engine.TurnEvent) {
	r.buf[r.head] = ev
	r.head = (r.head + 1) % len(r.buf)
	if r.head == 0 {
		r.full = true
	}
}

// snapshot returns events oldest first, keeping those that match.
func (r *ring) snapshot(match func(engine.TurnEvent) bool) []engine.TurnEvent {
	var out []engine.TurnEvent
	start, n := 0, r.head
	if r.full {
		start, n = r.head, len(r.buf)
	}
	for i := 0; i < n; i++ {
		ev := r.buf[(start+i)%len(r.buf)]
		if match(ev) {
			out = append(out, ev)
		}
	}
	return out
}
