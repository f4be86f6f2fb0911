package storage

import (
	"sync"

	"jircord/tools/safe"

	"github.com/cespare/xxhash/v2"
)

// Sequencer runs jobs off the caller's goroutine while keeping jobs that
// share a key in submission order. Keys are hashed onto a fixed set of
// shards, each drained by one goroutine.
type Sequencer struct {
	mu     sync.RWMutex
	shards []chan func()
	closed bool
	wg     sync.WaitGroup
}

// NewSequencer starts shards goroutines with queue slots each. With
// shards <= 0 jobs run inline in Do, which tests rely on.
func NewSequencer(shards, queue int) *Sequencer {
	s := &Sequencer{}
	if shards <= 0 {
		return s
	}
	if queue <= 0 {
		queue = 1024
	}
	s.shards = make([]chan func(), shards)
	for i := range s.shards {
		ch := make(chan func(), queue)
		s.shards[i] = ch
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for job := range ch {
				safe.Run("sequencer", job)
			}
		}()
	}
	return s
}

// Do queues job behind every job previously queued under key. It never
// blocks: it returns false when the shard queue is full or Close was
// called, and the job is dropped.
func (s *Sequencer) Do(key string, job func()) bool {
	if len(s.shards) == 0 {
		s.mu.RLock()
		closed := s.closed
		s.mu.RUnlock()
		if closed {
			return false
		}
		safe.Run("sequencer", job)
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.shards[s.shardOf(key)] <- job:
		return true
	default:
		return false
	}
}

func (s *Sequencer) shardOf(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(s.shards)))
}

// Close stops accepting jobs and waits for queued ones to finish.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, ch := range s.shards {
		close(ch)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
