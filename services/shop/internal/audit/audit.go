// Package audit records the mutations staff perform through the shop.
package audit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appetiteclub/cakeshop/services/shop/internal/auth"
)

// Entry represents a single audit log entry for a staff action.
type Entry struct {
	ID        string    `json:"id" bson:"_id"`
	SessionID string    `json:"session_id" bson:"session_id"`
	Role      string    `json:"role" bson:"role"`
	Action    string    `json:"action" bson:"action"`
	Target    string    `json:"target" bson:"target"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Success   bool      `json:"success" bson:"success"`
	Error     string    `json:"error,omitempty" bson:"error,omitempty"`
}

// Sink persists entries beyond the process.
type Sink interface {
	Write(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

const recentSize = 200

// Logger writes entries to the structured log, keeps the latest ones in
// memory and forwards them to an optional sink.
type Logger struct {
	logger apt.Logger
	sink   Sink

	mu     sync.Mutex
	recent []Entry
}

func NewLogger(logger apt.Logger, sink Sink) *Logger {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Logger{logger: logger, sink: sink}
}

// Log records an audit entry.
func (a *Logger) Log(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	a.logger.Info("audit",
		"session_id", e.SessionID,
		"role", e.Role,
		"action", e.Action,
		"target", e.Target,
		"success", e.Success,
		"timestamp", e.Timestamp.Format(time.RFC3339),
		"error", e.Error,
	)

	a.mu.Lock()
	a.recent = append(a.recent, e)
	if len(a.recent) > recentSize {
		a.recent = a.recent[len(a.recent)-recentSize:]
	}
	a.mu.Unlock()

	if a.sink != nil {
		if err := a.sink.Write(ctx, e); err != nil {
			a.logger.Error("cannot persist audit entry", "error", err, "action", e.Action)
		}
	}
}

// Record logs action on target for the identity on ctx. A nil err marks
// the action successful.
func (a *Logger) Record(ctx context.Context, action, target string, err error) {
	if a == nil {
		return
	}
	e := Entry{
		SessionID: auth.SessionIDFrom(ctx),
		Role:      string(auth.RoleFrom(ctx)),
		Action:    action,
		Target:    target,
		Success:   err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(ctx, e)
}

// Recent returns the newest entries first.
func (a *Logger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > recentSize {
		limit = 50
	}
	if a.sink != nil {
		return a.sink.Recent(ctx, limit)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, 0, limit)
	for i := len(a.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.recent[i])
	}
	return out, nil
}

type Handler struct {
	audit  *Logger
	logger apt.Logger
	tlm    *telemetry.HTTP
}

func NewHandler(audit *Logger, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{audit: audit, logger: logger, tlm: telemetry.NewHTTP()}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/staff/audit", h.List)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListAudit")
	defer finish()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		h.logger.With("request_id", apt.RequestIDFrom(r.Context())).Error("cannot list audit entries", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list audit entries")
		return
	}
	apt.RespondCollection(w, entries, "audit")
}
