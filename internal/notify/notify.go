// Package notify implements the subscribe/unsubscribe callback lists shared by
// the storage layer, the hidden-state stores and the catalog loader.
package notify

import (
	"slices"
	"sync"
)

type Listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func()
}

// Add registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (l *Listeners) Add(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

// Fire calls every registered listener in registration order.
// Listeners run on the caller's goroutine without the lock held, so they may
// subscribe or unsubscribe.
func (l *Listeners) Fire() {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	fns := make(map[int]func(), len(l.fns))
	for id, fn := range l.fns {
		fns[id] = fn
	}
	l.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id]()
	}
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
