// Package selector holds the pick-one and pick-many widgets both order
// builders compose. Each widget fetches its remote list once and never
// refetches on reopen.
package selector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
	"github.com/appetiteclub/cakeshop/services/shop/internal/table"
)

var (
	ErrUnknownOption = errors.New("unknown option")
	ErrLimitReached  = errors.New("selection limit reached")
)

// Loader fetches the options of a widget.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Option is the serialisable view of a choice.
type Option struct {
	ID    cake.ID `json:"id"`
	Label string  `json:"label"`
}

type source[T any] struct {
	load   Loader[T]
	id     func(T) cake.ID
	label  func(T) string
	items  []T
	loaded bool
}

func (s *source[T]) ensure(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	items, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	s.items = items
	s.loaded = true
	return nil
}

func (s *source[T]) find(id cake.ID) (T, bool) {
	for _, it := range s.items {
		if s.id(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (s *source[T]) options(items []T) []Option {
	out := make([]Option, 0, len(items))
	for _, it := range items {
		out = append(out, Option{ID: s.id(it), Label: s.label(it)})
	}
	return out
}

func (s *source[T]) filter(term string) []T {
	cols := []table.Column[T]{{Key: "label", Text: s.label}}
	return table.Filter(s.items, cols, term)
}

// Combobox is a searchable single-select.
type Combobox[T any] struct {
	mu     sync.Mutex
	src    source[T]
	term   string
	chosen *T
}

func NewCombobox[T any](load Loader[T], id func(T) cake.ID, label func(T) string) *Combobox[T] {
	return &Combobox[T]{src: source[T]{load: load, id: id, label: label}}
}

// Open loads the options on first use and returns the ones matching the
// current filter.
func (c *Combobox[T]) Open(ctx context.Context) ([]Option, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.src.ensure(ctx); err != nil {
		return nil, err
	}
	return c.src.options(c.src.filter(c.term)), nil
}

// Filter narrows the options to those whose label contains term.
func (c *Combobox[T]) Filter(ctx context.Context, term string) ([]Option, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.src.ensure(ctx); err != nil {
		return nil, err
	}
	c.term = term
	return c.src.options(c.src.filter(term)), nil
}

// Choose selects the option with id.
func (c *Combobox[T]) Choose(ctx context.Context, id cake.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.src.ensure(ctx); err != nil {
		return err
	}
	it, ok := c.src.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, id)
	}
	c.chosen = &it
	return nil
}

// Close resets the filter and keeps the chosen value.
func (c *Combobox[T]) Close() {
	c.mu.Lock()
	c.term = ""
	c.mu.Unlock()
}

func (c *Combobox[T]) Value() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chosen == nil {
		var zero T
		return zero, false
	}
	return *c.chosen, true
}

// Reset clears the chosen value and the filter. Loaded options are kept.
func (c *Combobox[T]) Reset() {
	c.mu.Lock()
	c.term = ""
	c.chosen = nil
	c.mu.Unlock()
}

// Policy decides what happens when a multi-select reaches its maximum.
type Policy int

const (
	// WarnAtMax accepts the item that reaches the maximum and warns about it.
	WarnAtMax Policy = iota
	// BlockBeyondMax only speaks up when an item past the maximum is refused.
	BlockBeyondMax
)

// MultiSelect is a tag picker with a maximum. Items past the maximum are
// refused under both policies.
type MultiSelect[T any] struct {
	mu       sync.Mutex
	src      source[T]
	max      int
	policy   Policy
	limit    *notice.Notice
	selected []T
}

func NewMultiSelect[T any](load Loader[T], id func(T) cake.ID, label func(T) string, max int, policy Policy, limit *notice.Notice) *MultiSelect[T] {
	return &MultiSelect[T]{
		src:    source[T]{load: load, id: id, label: label},
		max:    max,
		policy: policy,
		limit:  limit,
	}
}

// Options returns every loadable option.
func (m *MultiSelect[T]) Options(ctx context.Context) ([]Option, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.src.ensure(ctx); err != nil {
		return nil, err
	}
	return m.src.options(m.src.items), nil
}

// Items returns the loaded options as values.
func (m *MultiSelect[T]) Items(ctx context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.src.ensure(ctx); err != nil {
		return nil, err
	}
	return append([]T(nil), m.src.items...), nil
}

// Toggle adds or removes the item with id. The returned notice, when not
// nil, is what the user should be told about the selection limit.
func (m *MultiSelect[T]) Toggle(ctx context.Context, id cake.ID) (*notice.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.src.ensure(ctx); err != nil {
		return nil, err
	}

	for i, it := range m.selected {
		if m.src.id(it) == id {
			m.selected = append(m.selected[:i], m.selected[i+1:]...)
			return nil, nil
		}
	}

	it, ok := m.src.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOption, id)
	}

	if m.max > 0 && len(m.selected) >= m.max {
		return m.limit, ErrLimitReached
	}

	m.selected = append(m.selected, it)
	if m.policy == WarnAtMax && m.max > 0 && len(m.selected) == m.max {
		return m.limit, nil
	}
	return nil, nil
}

func (m *MultiSelect[T]) Selected() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.selected...)
}

func (m *MultiSelect[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.selected)
}

func (m *MultiSelect[T]) Max() int {
	return m.max
}

// Clear drops the selection. Loaded options are kept.
func (m *MultiSelect[T]) Clear() {
	m.mu.Lock()
	m.selected = nil
	m.mu.Unlock()
}
