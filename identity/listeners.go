package identity

import "sync"

// Listeners is a registry of subject-change callbacks shared by the
// provider implementations.
type Listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(Subject)
}

// Subscribe registers fn and returns an idempotent unsubscribe func.
func (l *Listeners) Subscribe(fn func(Subject)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Subject))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.fns, id)
		})
	}
}

// Notify calls every registered callback with s. Callbacks run outside the
// registry lock so they may unsubscribe themselves.
func (l *Listeners) Notify(s Subject) {
	l.mu.Lock()
	fns := make([]func(Subject), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Len returns the number of live subscriptions.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
