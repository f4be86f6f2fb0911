package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratorUniqueAcrossGoroutines(t *testing.T) {
	g := NewGenerator(7)

	const workers, per = 8, 2000
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*per)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*per)
}

func TestGeneratorEncodesNodeID(t *testing.T) {
	id := NewGenerator(42).Next()
	require.Equal(t, int64(42), (id>>12)&0x3FF)

	// out of range falls back to node 1
	id = NewGenerator(5000).Next()
	require.Equal(t, int64(1), (id>>12)&0x3FF)
}

func TestGeneratorMonotonic(t *testing.T) {
	g := NewGenerator(3)
	prev := g.Next()
	for i := 0; i < 10000; i++ {
		next := g.Next()
		require.Greater(t, next, prev)
		prev = next
	}
}
