package orders

import (
	"errors"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"

	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/pkg/enums/orderstatus"
	"github.com/appetiteclub/cakeshop/services/shop/internal/auth"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
	"github.com/appetiteclub/cakeshop/services/shop/internal/table"
)

// DateSource supplies the date filter when a request does not carry one.
type DateSource interface {
	SelectedDate(r *http.Request) string
}

type Handler struct {
	service   *Service
	dates     DateSource
	logger    apt.Logger
	tlm       *telemetry.HTTP
	keepalive time.Duration
}

func NewHandler(service *Service, dates DateSource, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		service:   service,
		dates:     dates,
		logger:    logger,
		tlm:       telemetry.NewHTTP(),
		keepalive: 30 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/staff/orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/stream", h.Stream)
		r.Get("/{id}", h.Detail)
		r.Post("/{id}/accept", h.transition(Accept))
		r.Post("/{id}/cancel", h.transition(Cancel))
		r.Post("/{id}/deliver", h.transition(Deliver))
	})
}

// key reads the view key from status and date. The date falls back to the
// session's selected date; date=all lifts the filter.
func (h *Handler) key(r *http.Request) (Key, bool) {
	q := r.URL.Query()
	status := q.Get("status")
	if status == "" {
		status = orderstatus.Statuses.Pending.Code()
	}
	if !orderstatus.Valid(status) {
		return Key{}, false
	}

	date := q.Get("date")
	switch {
	case date == "all":
		date = ""
	case date == "" && h.dates != nil:
		date = h.dates.SelectedDate(r)
	case date != "":
		if _, err := time.Parse(cake.DateLayout, date); err != nil {
			return Key{}, false
		}
	}
	return Key{Status: status, Date: date}, true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	log := h.log(r)
	token, ok := h.token(w, r, log)
	if !ok {
		return
	}

	key, ok := h.key(r)
	if !ok {
		apt.RespondError(w, http.StatusBadRequest, "Invalid status or date")
		return
	}

	orders, err := h.service.Feed().Read(r.Context(), token, key, table.ParseQuery(r.URL.Query()))
	if errors.Is(err, table.ErrUnknownColumn) {
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error("cannot list orders", "status", key.Status, "error", err)
		notice.Respond(w, http.StatusBadGateway, nil, notice.Error("Erro ao buscar pedidos."))
		return
	}

	apt.RespondCollection(w, orders, "orders")
}

func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	log := h.log(r)
	token, ok := h.token(w, r, log)
	if !ok {
		return
	}

	id := cake.ID(chi.URLParam(r, "id"))
	order, n, err := h.service.Detail(r.Context(), token, id)
	if err != nil {
		if api.IsStatus(err, http.StatusNotFound) {
			notice.Respond(w, http.StatusNotFound, nil, n)
			return
		}
		notice.Respond(w, http.StatusBadGateway, nil, n)
		return
	}

	apt.RespondSuccess(w, order)
}

func (h *Handler) transition(t Transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w, r, finish := h.tlm.Start(w, r, "Handler.OrderTransition")
		defer finish()

		log := h.log(r)
		token, ok := h.token(w, r, log)
		if !ok {
			return
		}

		id := cake.ID(chi.URLParam(r, "id"))
		n, err := h.service.Apply(r.Context(), token, id, t)
		if err != nil {
			notice.Respond(w, http.StatusBadGateway, nil, n)
			return
		}
		notice.Respond(w, http.StatusOK, map[string]string{"id": id.String(), "status": t.Target.Code()}, n)
	}
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request, log apt.Logger) (string, bool) {
	token := auth.TokenFrom(r.Context())
	if token == "" {
		log.Error("cannot serve order request", "error", api.ErrMissingToken)
		apt.RespondError(w, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return token, true
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}
