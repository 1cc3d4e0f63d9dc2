package conversation

import "sync"

// leadLocks serializes all mutation for a single lead. Two near-simultaneous
// messages for the same lead are strictly ordered; messages for different
// leads proceed in parallel. Races against the sweep (which may run in a
// different process) are resolved by the guarded status UPDATE on the nudge
// row, not by this lock.
type leadLocks struct {
	locks sync.Map
}

func newLeadLocks() *leadLocks {
	return &leadLocks{}
}

// lock acquires the mutex for the given key and returns its unlock function.
func (l *leadLocks) lock(key string) func() {
	entry, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	mu := entry.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
