package change

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civreg/pkg/domain"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := newKeyedMutex()

	const workers = 16
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			unlock := km.Lock("cuid-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("cuid-a")
	defer unlockA()

	// A different key must not block behind the held one.
	done := make(chan struct{})
	go func() {
		unlock := km.Lock("cuid-b")
		unlock()
		close(done)
	}()
	<-done
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.Lock("cuid-1")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	require.Empty(t, km.locks)
}

func TestKeyedMutexLockAllOrdering(t *testing.T) {
	km := newKeyedMutex()

	// Opposite acquisition orders must not deadlock; LockAll sorts internally.
	pairs := [][2]id.CUID{{"cuid-x", "cuid-y"}, {"cuid-y", "cuid-x"}}
	var wg sync.WaitGroup
	for range 50 {
		for _, p := range pairs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := km.LockAll(p[0], p[1])
				unlock()
			}()
		}
	}
	wg.Wait()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
