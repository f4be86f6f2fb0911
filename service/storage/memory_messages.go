package storage

import (
	"context"
	"sync"
)

// MemoryLog keeps history in process memory. Used by tests and the
// "memory" store driver.
type MemoryLog struct {
	mu       sync.RWMutex
	channels map[string][]Entry
	maxLen   int
}

// NewMemoryLog keeps at most maxLen entries per channel (<=0: unbounded).
func NewMemoryLog(maxLen int) *MemoryLog {
	return &MemoryLog{channels: make(map[string][]Entry), maxLen: maxLen}
}

func (m *MemoryLog) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := e.Channel().Key()
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.channels[key], e)
	if m.maxLen > 0 && len(list) > m.maxLen {
		list = append([]Entry(nil), list[len(list)-m.maxLen:]...)
	}
	m.channels[key] = list
	return nil
}

func (m *MemoryLog) Query(ctx context.Context, ch Channel) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.channels[ch.Key()]
	out := make([]Entry, len(src))
	copy(out, src)
	return out, nil
}
