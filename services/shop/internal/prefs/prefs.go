// Package prefs holds the per-session UI state shared across screens: theme,
// the date order tabs filter by, and whether the sidebar is open.
package prefs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"

	"github.com/appetiteclub/cakeshop/pkg/cake"
)

const sessionKey = "prefs"

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type Prefs struct {
	Theme        string `json:"theme"`
	SelectedDate string `json:"selected_date,omitempty"`
	SidebarOpen  bool   `json:"sidebar_open"`
}

// Defaults are the values a new session starts with.
func Defaults() Prefs {
	return Prefs{Theme: ThemeLight, SidebarOpen: true}
}

func (p Prefs) Validate() error {
	if p.Theme != ThemeLight && p.Theme != ThemeDark {
		return fmt.Errorf("invalid theme %q", p.Theme)
	}
	if p.SelectedDate != "" {
		if _, err := time.Parse(cake.DateLayout, p.SelectedDate); err != nil {
			return fmt.Errorf("invalid selected_date %q", p.SelectedDate)
		}
	}
	return nil
}

// SessionStore is the part of the cookie session prefs are kept in.
type SessionStore interface {
	Value(r *http.Request, key string) (interface{}, bool)
	SetValue(w http.ResponseWriter, r *http.Request, key string, v interface{}) error
}

// Service reads and writes prefs of the current session.
type Service struct {
	store SessionStore
}

func NewService(store SessionStore) *Service {
	return &Service{store: store}
}

// Load returns the session prefs, or the defaults when none were saved.
func (s *Service) Load(r *http.Request) Prefs {
	p := Defaults()
	raw, ok := s.store.Value(r, sessionKey)
	if !ok {
		return p
	}
	str, ok := raw.(string)
	if !ok {
		return p
	}
	if err := json.Unmarshal([]byte(str), &p); err != nil {
		return Defaults()
	}
	return p
}

func (s *Service) Save(w http.ResponseWriter, r *http.Request, p Prefs) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.store.SetValue(w, r, sessionKey, string(data))
}

// SelectedDate returns the date order tabs are filtered by, or "".
func (s *Service) SelectedDate(r *http.Request) string {
	return s.Load(r).SelectedDate
}

type Handler struct {
	service *Service
	logger  apt.Logger
	tlm     *telemetry.HTTP
}

func NewHandler(service *Service, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{service: service, logger: logger, tlm: telemetry.NewHTTP()}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/prefs", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Put)
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetPrefs")
	defer finish()

	apt.RespondSuccess(w, h.service.Load(r))
}

// Put replaces the prefs. Fields left out keep their current value.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PutPrefs")
	defer finish()

	log := h.logger.With("request_id", apt.RequestIDFrom(r.Context()))

	p := h.service.Load(r)
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	if err := h.service.Save(w, r, p); err != nil {
		log.Debug("invalid prefs", "error", err)
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	apt.RespondSuccess(w, p)
}
