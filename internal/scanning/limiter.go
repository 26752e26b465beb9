package scanning

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter bounds the number of scan runs that drive nmap at the same time.
// A nil *Limiter admits every run.
type Limiter struct {
	capacity  int
	semaphore chan struct{}
	active    map[string]time.Time
	mu        sync.RWMutex
	closed    bool
}

// NewLimiter creates a limiter with the given number of slots. A capacity of
// zero or less yields a nil limiter, which never blocks.
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		return nil
	}

	return &Limiter{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
		active:    make(map[string]time.Time),
	}
}

// Acquire blocks until a slot is free for runID or ctx is done.
func (l *Limiter) Acquire(ctx context.Context, runID string) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return fmt.Errorf("scan limiter is closed")
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active[runID] = time.Now()
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the slot held by runID. Unknown ids are ignored.
func (l *Limiter) Release(runID string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.active[runID]; !ok {
		return
	}
	delete(l.active, runID)
	select {
	case <-l.semaphore:
	default:
	}
}

// Active returns the number of runs holding a slot.
func (l *Limiter) Active() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.active)
}

// Available returns the number of free slots, or -1 when unbounded.
func (l *Limiter) Available() int {
	if l == nil {
		return -1
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.capacity - len(l.active)
}

// Close rejects further acquisitions and forgets held slots.
func (l *Limiter) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.active = make(map[string]time.Time)

	for {
		select {
		case <-l.semaphore:
		default:
			return nil
		}
	}
}

// Stats returns a snapshot for health reporting.
func (l *Limiter) Stats() map[string]interface{} {
	if l == nil {
		return map[string]interface{}{"active_scans": 0, "capacity": "unbounded"}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return map[string]interface{}{
		"capacity":        l.capacity,
		"active_scans":    len(l.active),
		"available_slots": l.capacity - len(l.active),
	}
}
