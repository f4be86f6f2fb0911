package chat

// Fanout queues one encoded frame on a set of sessions. Queueing never
// blocks; a session that cannot take the frame closes itself, and the
// rest of the set is still served.
type Fanout struct {
	metrics *Metrics
}

func NewFanout(m *Metrics) *Fanout { return &Fanout{metrics: m} }

// Deliver returns how many sessions accepted payload.
func (f *Fanout) Deliver(targets []*Session, payload []byte) int {
	if len(targets) == 0 || len(payload) == 0 {
		return 0
	}
	n := 0
	for _, s := range targets {
		if s.State() != StateActive {
			continue
		}
		if s.Enqueue(payload) {
			n++
		} else {
			f.metrics.recordDrop("backpressure")
		}
	}
	f.metrics.recordDeliveries(n)
	return n
}

// union merges session lists, keeping the first occurrence of each id.
func union(lists ...[]*Session) []*Session {
	seen := make(map[string]struct{})
	var out []*Session
	for _, l := range lists {
		for _, s := range l {
			if _, ok := seen[s.id]; ok {
				continue
			}
			seen[s.id] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
