package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/cakeshop/pkg"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/pkg/event"
	"github.com/appetiteclub/cakeshop/services/shop/internal/audit"
	"github.com/appetiteclub/cakeshop/services/shop/internal/blob"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
	"github.com/appetiteclub/cakeshop/services/shop/internal/table"
)

// Resource is the remote collection a module mirrors.
type Resource[T any, I any] interface {
	List(ctx context.Context, token string) ([]T, error)
	Create(ctx context.Context, token string, in I) error
	Update(ctx context.Context, token string, id cake.ID, in I) error
	Delete(ctx context.Context, token string, id cake.ID) error
}

// Deps are the collaborators shared by every module.
type Deps struct {
	Blobs     blob.Storage
	Audit     *audit.Logger
	Publisher pkg.Publisher
	Source    string
	Logger    apt.Logger
}

// Module is one catalog screen: an in-memory mirror of a remote collection
// plus the create, edit and delete flows over it.
//
// The mirror is refetched when the refresh key moved since the last fetch.
// Edits and deletes patch the mirror only after the API accepted them.
type Module[T any, I any] struct {
	kind Kind[T, I]
	res  Resource[T, I]
	deps Deps
	log  apt.Logger

	mu         sync.RWMutex
	rows       []T
	fetched    bool
	fetchedKey uint64
	refreshKey uint64
}

func NewModule[T any, I any](kind Kind[T, I], res Resource[T, I], deps Deps) *Module[T, I] {
	if deps.Logger == nil {
		deps.Logger = apt.NewNoopLogger()
	}
	if deps.Publisher == nil {
		deps.Publisher = pkg.NoopPublisher{}
	}
	return &Module[T, I]{
		kind: kind,
		res:  res,
		deps: deps,
		log:  deps.Logger.With("resource", kind.Name),
	}
}

func (m *Module[T, I]) Name() string {
	return m.kind.Name
}

// Bump moves the refresh key so the next List refetches.
func (m *Module[T, I]) Bump() {
	m.mu.Lock()
	m.refreshKey++
	m.mu.Unlock()
}

func (m *Module[T, I]) RefreshKey() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshKey
}

// List returns the rows matching q, refetching first when the mirror is
// stale or force is set. A failed fetch leaves the mirror untouched.
func (m *Module[T, I]) List(ctx context.Context, token string, q table.Query, force bool) ([]T, error) {
	rows, err := m.rowsFor(ctx, token, force)
	if err != nil {
		return nil, err
	}
	return table.Apply(rows, m.kind.Columns, q)
}

func (m *Module[T, I]) rowsFor(ctx context.Context, token string, force bool) ([]T, error) {
	m.mu.RLock()
	key := m.refreshKey
	stale := force || !m.fetched || m.fetchedKey != key
	rows := append([]T(nil), m.rows...)
	m.mu.RUnlock()

	if !stale {
		return rows, nil
	}

	items, err := m.res.List(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", m.kind.Name, err)
	}

	m.mu.Lock()
	m.rows = items
	m.fetched = true
	m.fetchedKey = key
	m.mu.Unlock()

	return append([]T(nil), items...), nil
}

// Find looks a row up in the mirror.
func (m *Module[T, I]) Find(id cake.ID) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.rows {
		if m.kind.ID(row) == id {
			return row, true
		}
	}
	var zero T
	return zero, false
}

// Create validates in and registers it. Every empty mandatory field is
// reported and nothing is sent while any remain.
func (m *Module[T, I]) Create(ctx context.Context, token string, in I) (*notice.Notice, error) {
	if errs := m.kind.Validate(in); len(errs) > 0 {
		return &notice.Notice{Title: "Erro", Description: m.kind.Notices.Invalid, Variant: notice.Destructive}, errs
	}

	err := m.res.Create(ctx, token, in)
	m.deps.Audit.Record(ctx, "create", m.kind.Name, err)
	if err != nil {
		m.log.Error("cannot create", "error", err)
		return notice.Error(m.kind.Notices.CreateFailed), err
	}

	m.Bump()
	m.publish(ctx, "created", "")
	return &notice.Notice{Title: "Sucesso!", Description: m.kind.Notices.Created, Variant: notice.Default}, nil
}

// Update saves in and patches the mirrored row. When an image-bearing row
// gets a new image the previous blob is deleted.
func (m *Module[T, I]) Update(ctx context.Context, token string, id cake.ID, in I) (T, *notice.Notice, error) {
	var zero T
	if errs := m.kind.Validate(in); len(errs) > 0 {
		return zero, notice.Error(m.kind.Notices.Invalid), errs
	}

	prev, known := m.Find(id)

	err := m.res.Update(ctx, token, id, in)
	m.deps.Audit.Record(ctx, "update", m.target(id), err)
	if err != nil {
		m.log.Error("cannot update", "id", id.String(), "error", err)
		return zero, notice.Error(m.kind.Notices.UpdateFailed), err
	}

	if !known {
		m.Bump()
		m.publish(ctx, "updated", id)
		return zero, notice.Success(m.kind.Notices.Updated), nil
	}

	patched := m.kind.Apply(prev, in)
	m.mu.Lock()
	for i, row := range m.rows {
		if m.kind.ID(row) == id {
			m.rows[i] = patched
			break
		}
	}
	m.mu.Unlock()

	if m.kind.imageBearing() {
		old, next := m.kind.Image(prev), m.kind.InputImage(in)
		if old != "" && next != "" && old != next {
			if err := blob.DeleteByURL(ctx, m.deps.Blobs, m.kind.Container, old); err != nil {
				m.log.Error("cannot delete replaced image", "id", id.String(), "error", err)
			}
		}
	}

	m.publish(ctx, "updated", id)
	return patched, notice.Success(m.kind.Notices.Updated), nil
}

// Delete removes a row. For image-bearing rows the blob goes first and the
// row second. The two steps are not transactional: a blob-delete failure is
// logged and the row delete is still attempted, and a row-delete failure
// after the blob is gone is not compensated.
func (m *Module[T, I]) Delete(ctx context.Context, token string, id cake.ID) (*notice.Notice, error) {
	row, known := m.Find(id)

	if m.kind.imageBearing() {
		if !known {
			if _, err := m.rowsFor(ctx, token, true); err != nil {
				m.log.Error("cannot load row before delete", "id", id.String(), "error", err)
			}
			row, known = m.Find(id)
		}
		if known && m.kind.Image(row) != "" {
			if err := blob.DeleteByURL(ctx, m.deps.Blobs, m.kind.Container, m.kind.Image(row)); err != nil {
				m.log.Error("cannot delete image blob", "id", id.String(), "error", err)
			}
		}
	}

	err := m.res.Delete(ctx, token, id)
	m.deps.Audit.Record(ctx, "delete", m.target(id), err)
	if err != nil {
		m.log.Error("cannot delete", "id", id.String(), "error", err)
		return notice.Error(m.kind.Notices.DeleteFailed), err
	}

	m.mu.Lock()
	for i, r := range m.rows {
		if m.kind.ID(r) == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.publish(ctx, "deleted", id)
	return notice.Success(m.kind.Notices.Deleted), nil
}

func (m *Module[T, I]) target(id cake.ID) string {
	return m.kind.Name + "/" + id.String()
}

func (m *Module[T, I]) publish(ctx context.Context, action string, id cake.ID) {
	ev := event.CatalogEvent{
		EventType:  event.EventCatalogChanged,
		OccurredAt: time.Now().UTC(),
		Resource:   m.kind.Name,
		Action:     action,
		ID:         id.String(),
		Source:     m.deps.Source,
	}
	if err := pkg.PublishJSON(ctx, m.deps.Publisher, event.CatalogTopic, ev); err != nil {
		m.log.Error("cannot publish catalog event", "error", err)
	}
}
