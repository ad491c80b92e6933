package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// Locks is a process-local domain.LockManager for single-node deployments.
// A lock not released within its TTL may be taken by the next caller.
type Locks struct {
	mu   sync.Mutex
	held map[string]lease
	now  func() time.Time
	seq  uint64
}

type lease struct {
	id      uint64
	expires time.Time
}

// NewLocks creates an empty Locks.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]lease), now: time.Now}
}

// Acquire takes key for ttl.
func (l *Locks) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, fmt.Errorf("memory: acquire lock %s: %w", key, domain.ErrLockHeld)
	}

	l.seq++
	id := l.seq
	l.held[key] = lease{id: id, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// Only the current holder may release.
			if cur, ok := l.held[key]; ok && cur.id == id {
				delete(l.held, key)
			}
		})
	}, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*Locks)(nil)
