package chat

import "sort"

// Presence maps each online identity to its live sessions. An identity is
// present only while it has at least one session. It is owned by the
// router loop and does no locking of its own.
type Presence struct {
	byUser map[string]map[string]*Session // identity -> session id -> session
	count  int
}

func NewPresence() *Presence {
	return &Presence{byUser: make(map[string]map[string]*Session)}
}

// register reports whether identity came online with this session.
func (p *Presence) register(s *Session) (first bool) {
	m := p.byUser[s.identity]
	if m == nil {
		m = make(map[string]*Session)
		p.byUser[s.identity] = m
		first = true
	}
	if _, ok := m[s.id]; !ok {
		m[s.id] = s
		p.count++
	}
	return first
}

// deregister reports whether s was present and whether its identity went
// offline with it.
func (p *Presence) deregister(s *Session) (removed, last bool) {
	m := p.byUser[s.identity]
	if m == nil {
		return false, false
	}
	if cur, ok := m[s.id]; !ok || cur != s {
		return false, false
	}
	delete(m, s.id)
	p.count--
	if len(m) == 0 {
		delete(p.byUser, s.identity)
		return true, true
	}
	return true, false
}

func (p *Presence) contains(s *Session) bool {
	cur, ok := p.byUser[s.identity][s.id]
	return ok && cur == s
}

func (p *Presence) isOnline(identity string) bool {
	return len(p.byUser[identity]) > 0
}

// sessionsFor returns nil for an offline identity.
func (p *Presence) sessionsFor(identity string) []*Session {
	m := p.byUser[identity]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

// onlineIdentities is a sorted snapshot.
func (p *Presence) onlineIdentities() []string {
	out := make([]string, 0, len(p.byUser))
	for u := range p.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (p *Presence) all() []*Session {
	out := make([]*Session, 0, p.count)
	for _, m := range p.byUser {
		for _, s := range m {
			out = append(out, s)
		}
	}
	return out
}

func (p *Presence) sessionCount() int { return p.count }
