package change

import (
	"sort"
	"sync"

	id "civreg/pkg/domain"
)

// keyedMutex serializes mutating operations per CUID so two concurrent
// updates cannot both validate against the same stale snapshot and commit.
// Entries are reference-counted and removed when the last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[id.CUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[id.CUID]*lockEntry)}
}

// Lock acquires the mutex for one CUID and returns its unlock func.
func (k *keyedMutex) Lock(cuid id.CUID) func() {
	k.mu.Lock()
	entry, ok := k.locks[cuid]
	if !ok {
		entry = &lockEntry{}
		k.locks[cuid] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, cuid)
		}
		k.mu.Unlock()
	}
}

// LockAll acquires several CUIDs in sorted order so concurrent merges over
// overlapping identities cannot deadlock.
func (k *keyedMutex) LockAll(cuids ...id.CUID) func() {
	sorted := make([]id.CUID, len(cuids))
	copy(sorted, cuids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	unlocks := make([]func(), 0, len(sorted))
	for _, cuid := range sorted {
		unlocks = append(unlocks, k.Lock(cuid))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}
