// Package lock provides the cooperative exclusion primitive that
// serializes sync exchanges. At most one guarded operation runs at a
// time system-wide; waiters queue FIFO, and callers that must not block
// use TryExclusive for an immediate answer.
package lock

import (
	"context"
	"sync"
)

// Mutex is a labeled, cancellation-aware exclusion primitive.
type Mutex struct {
	sem chan struct{}

	mu    sync.Mutex
	label string
}

// New creates an unlocked Mutex.
func New() *Mutex {
	return &Mutex{sem: make(chan struct{}, 1)}
}

// RunExclusive runs op while holding the lock, waiting in FIFO order
// behind any current holder. The lock is released even if op fails or
// panics, so a broken operation can never wedge the system. Returns
// ctx.Err() if the context is cancelled while waiting.
func (m *Mutex) RunExclusive(ctx context.Context, label string, op func() error) error {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.setLabel(label)
	defer func() {
		m.setLabel("")
		<-m.sem
	}()
	return op()
}

// TryExclusive runs op only if the lock is immediately available.
// Returns acquired=false without running op when another operation
// holds the lock.
func (m *Mutex) TryExclusive(label string, op func() error) (acquired bool, err error) {
	select {
	case m.sem <- struct{}{}:
	default:
		return false, nil
	}
	m.setLabel(label)
	defer func() {
		m.setLabel("")
		<-m.sem
	}()
	return true, op()
}

// IsLocked reports whether an operation currently holds the lock.
func (m *Mutex) IsLocked() bool {
	return len(m.sem) == 1
}

// CurrentLabel returns the label of the operation holding the lock, or
// the empty string when unlocked.
func (m *Mutex) CurrentLabel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.label
}

func (m *Mutex) setLabel(label string) {
	m.mu.Lock()
	m.label = label
	m.mu.Unlock()
}
