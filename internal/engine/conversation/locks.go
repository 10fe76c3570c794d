package conversation

import (
	"sync"
)

// borrowerLocks serializes engine operations per borrower so that two
// concurrent messages cannot both pass the pending-recommendation check.
type borrowerLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newBorrowerLocks() *borrowerLocks {
	return &borrowerLocks{entries: make(map[int64]*lockEntry)}
}

// Lock acquires the borrower's critical section and returns its unlock func.
func (l *borrowerLocks) Lock(borrowerID int64) func() {
	l.mu.Lock()
	entry, ok := l.entries[borrowerID]
	if !ok {
		entry = &lockEntry{}
		l.entries[borrowerID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, borrowerID)
		}
		l.mu.Unlock()
	}
}
