package syncutil

import (
	"sync"
	"testing"
)

func TestMutex_SerialisesWriters(t *testing.T) {
	t.Parallel()

	var mu Mutex
	var wg sync.WaitGroup
	count := 0
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			count++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if count != 16 {
		t.Fatalf("count = %d, want 16", count)
	}
}

func TestRWMutex_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	var mu RWMutex
	mu.RLock()
	mu.RLock()
	mu.RUnlock()
	mu.RUnlock()
	mu.Lock()
	mu.Unlock() //nolint:staticcheck // empty critical section is the point
	t.Logf("deadlock detection compiled in: %v", DeadlockDetection)
}
