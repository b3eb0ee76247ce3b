// Package drafts keeps in-progress order drafts in memory. Drafts are not
// persisted: closing one, or leaving it idle past the TTL, discards it.
package drafts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("draft not found")
	ErrExpired  = errors.New("draft expired")
	ErrNotOwner = errors.New("draft belongs to another session")
)

type entry[T any] struct {
	value     T
	owner     string
	expiresAt time.Time
}

// Store holds drafts keyed by a generated id, each bound to the session that
// opened it.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry[T]
	ttl     time.Duration
	now     func() time.Time
	logger  apt.Logger
}

func NewStore[T any](ttl time.Duration, logger apt.Logger) *Store[T] {
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Store[T]{
		entries: make(map[uuid.UUID]*entry[T]),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Create stores value for owner and returns its id.
func (s *Store[T]) Create(owner string, value T) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	s.entries[id] = &entry[T]{value: value, owner: owner, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return id
}

// Get returns the draft and extends its lifetime.
func (s *Store[T]) Get(owner string, id uuid.UUID) (T, error) {
	var zero T

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return zero, ErrNotFound
	}
	if e.owner != owner {
		return zero, ErrNotOwner
	}
	now := s.now()
	if now.After(e.expiresAt) {
		delete(s.entries, id)
		return zero, ErrExpired
	}
	e.expiresAt = now.Add(s.ttl)
	return e.value, nil
}

// Delete discards a draft.
func (s *Store[T]) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// CleanupExpired removes every expired draft.
func (s *Store[T]) CleanupExpired() int {
	now := s.now()
	count := 0

	s.mu.Lock()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			count++
		}
	}
	s.mu.Unlock()

	return count
}

// Count returns the number of live drafts.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartCleanup removes expired drafts every interval until ctx is done.
func (s *Store[T]) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if count := s.CleanupExpired(); count > 0 {
					s.logger.Debug("expired drafts removed", "count", count)
				}
			}
		}
	}()
}
