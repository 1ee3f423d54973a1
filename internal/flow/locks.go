package flow

import "sync"

// leadLocks serializes message handling per lead so concurrent replies from
// the same phone never interleave store writes.
type leadLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLeadLocks() *leadLocks {
	return &leadLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the per-lead mutex, creating it on first use, and returns the
// unlock function.
func (l *leadLocks) lock(phone string) func() {
	l.mu.Lock()
	m, ok := l.locks[phone]
	if !ok {
		m = &sync.Mutex{}
		l.locks[phone] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
