package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appetiteclub/cakeshop/services/shop/internal/auth"
)

type mockSink struct {
	WriteFunc  func(ctx context.Context, e Entry) error
	RecentFunc func(ctx context.Context, limit int) ([]Entry, error)
	written    []Entry
}

func (m *mockSink) Write(ctx context.Context, e Entry) error {
	m.written = append(m.written, e)
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, e)
	}
	return nil
}

func (m *mockSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if m.RecentFunc != nil {
		return m.RecentFunc(ctx, limit)
	}
	return m.written, nil
}

func TestRecordUsesIdentity(t *testing.T) {
	sink := &mockSink{}
	a := NewLogger(nil, sink)
	ctx := auth.WithIdentity(context.Background(), auth.RoleStaff, "tkn", "sess-1")

	a.Record(ctx, "delete", "models/3", nil)
	a.Record(ctx, "delete", "models/4", errors.New("api down"))

	require.Len(t, sink.written, 2)
	first := sink.written[0]
	assert.Equal(t, "sess-1", first.SessionID)
	assert.Equal(t, "staff", first.Role)
	assert.True(t, first.Success)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())

	assert.False(t, sink.written[1].Success)
	assert.Equal(t, "api down", sink.written[1].Error)
}

func TestSinkErrorDoesNotPanic(t *testing.T) {
	sink := &mockSink{WriteFunc: func(context.Context, Entry) error { return errors.New("mongo down") }}
	a := NewLogger(nil, sink)
	a.Record(context.Background(), "create", "fillings", nil)
	assert.Len(t, sink.written, 1)
}

func TestRecentInMemoryNewestFirst(t *testing.T) {
	a := NewLogger(nil, nil)
	for i := 0; i < recentSize+5; i++ {
		a.Record(context.Background(), "update", fmt.Sprintf("fillings/%d", i), nil)
	}

	got, err := a.Recent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, fmt.Sprintf("fillings/%d", recentSize+4), got[0].Target)

	all, err := a.Recent(context.Background(), recentSize)
	require.NoError(t, err)
	assert.Len(t, all, recentSize)
}

func TestNilLoggerRecordIsNoop(t *testing.T) {
	var a *Logger
	assert.NotPanics(t, func() { a.Record(context.Background(), "x", "y", nil) })
}

func TestHandlerList(t *testing.T) {
	a := NewLogger(nil, nil)
	a.Record(context.Background(), "accept", "orders/1", nil)

	r := chi.NewRouter()
	NewHandler(a, nil).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff/audit?limit=10", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "orders/1")
}
