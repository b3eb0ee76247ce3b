package drafts

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestStore(ttl time.Duration) (*Store[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	s := NewStore[string](ttl, nil)
	s.now = clock.now
	return s, clock
}

func TestStoreCreateGet(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	id := s.Create("sess-1", "draft")

	got, err := s.Get("sess-1", id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "draft" {
		t.Errorf("Get() = %q, want %q", got, "draft")
	}
}

func TestStoreGetErrors(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		id      func(s *Store[string], created uuid.UUID) uuid.UUID
		advance time.Duration
		want    error
	}{
		{name: "unknownID", owner: "sess-1", id: func(*Store[string], uuid.UUID) uuid.UUID { return uuid.New() }, want: ErrNotFound},
		{name: "otherOwner", owner: "sess-2", id: func(_ *Store[string], id uuid.UUID) uuid.UUID { return id }, want: ErrNotOwner},
		{name: "expired", owner: "sess-1", id: func(_ *Store[string], id uuid.UUID) uuid.UUID { return id }, advance: 2 * time.Minute, want: ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := newTestStore(time.Minute)
			created := s.Create("sess-1", "draft")
			clock.t = clock.t.Add(tt.advance)

			_, err := s.Get(tt.owner, tt.id(s, created))
			if !errors.Is(err, tt.want) {
				t.Errorf("Get() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStoreGetExtendsLifetime(t *testing.T) {
	s, clock := newTestStore(time.Minute)
	id := s.Create("sess-1", "draft")

	clock.t = clock.t.Add(50 * time.Second)
	if _, err := s.Get("sess-1", id); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	clock.t = clock.t.Add(50 * time.Second)
	if _, err := s.Get("sess-1", id); err != nil {
		t.Errorf("Get() after activity should still be valid, got %v", err)
	}
}

func TestStoreDeleteAndCleanup(t *testing.T) {
	s, clock := newTestStore(time.Minute)
	a := s.Create("sess-1", "a")
	s.Create("sess-1", "b")
	s.Delete(a)

	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}

	clock.t = clock.t.Add(time.Hour)
	if n := s.CleanupExpired(); n != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", n)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}
