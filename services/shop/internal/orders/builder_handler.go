package orders

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/services/shop/internal/auth"
	"github.com/appetiteclub/cakeshop/services/shop/internal/drafts"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
	"github.com/appetiteclub/cakeshop/services/shop/internal/selector"
)

const MaxBodyBytes = 1 << 20

// Widget names used in builder routes.
const (
	WidgetCustomer      = "customer"
	WidgetModel         = "model"
	WidgetPaymentMethod = "payment-method"
	WidgetFillings      = "fillings"
	WidgetComplements   = "complements"
)

type BuilderHandler struct {
	builders *Builders
	logger   apt.Logger
	tlm      *telemetry.HTTP
}

func NewBuilderHandler(builders *Builders, logger apt.Logger) *BuilderHandler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &BuilderHandler{builders: builders, logger: logger, tlm: telemetry.NewHTTP()}
}

func (h *BuilderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/staff/builder", func(r chi.Router) {
		r.Post("/", h.Open)
		r.Get("/{draft}", h.Get)
		r.Put("/{draft}", h.Update)
		r.Delete("/{draft}", h.Close)
		r.Get("/{draft}/{widget}", h.Options)
		r.Post("/{draft}/{widget}", h.Select)
		r.Post("/{draft}/submit", h.Submit)
	})
}

type selectRequest struct {
	ID cake.ID `json:"id"`
}

type detailsRequest struct {
	Weight       *float64 `json:"weight"`
	DeliveryDate *string  `json:"delivery_date"`
}

func (h *BuilderHandler) Open(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.OpenBuilder")
	defer finish()

	token, owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, b := h.builders.Open(owner, token)
	notice.Respond(w, http.StatusCreated, b.State(id), nil)
}

func (h *BuilderHandler) Get(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBuilder")
	defer finish()

	id, b, ok := h.draft(w, r)
	if !ok {
		return
	}
	apt.RespondSuccess(w, b.State(id))
}

func (h *BuilderHandler) Update(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateBuilder")
	defer finish()

	id, b, ok := h.draft(w, r)
	if !ok {
		return
	}

	var req detailsRequest
	if !decode(w, r, h.log(r), &req) {
		return
	}

	if req.DeliveryDate != nil {
		if *req.DeliveryDate == "" {
			b.SetDelivery(time.Time{})
		} else {
			t, err := parseDelivery(*req.DeliveryDate)
			if err != nil {
				apt.RespondError(w, http.StatusBadRequest, "Invalid delivery_date")
				return
			}
			b.SetDelivery(t)
		}
	}
	if req.Weight != nil {
		b.SetWeight(*req.Weight)
	}

	apt.RespondSuccess(w, b.State(id))
}

func (h *BuilderHandler) Close(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CloseBuilder")
	defer finish()

	_, owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "draft"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid draft id")
		return
	}
	if err := h.builders.Close(owner, id); err != nil {
		h.draftError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Options lists the choices of a widget. Comboboxes honour the q filter.
func (h *BuilderHandler) Options(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.BuilderOptions")
	defer finish()

	_, b, ok := h.draft(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	term := r.URL.Query().Get("q")

	var (
		opts []selector.Option
		err  error
	)
	switch chi.URLParam(r, "widget") {
	case WidgetCustomer:
		opts, err = b.Customer.Filter(ctx, term)
	case WidgetModel:
		opts, err = b.Model.Filter(ctx, term)
	case WidgetPaymentMethod:
		opts, err = b.PaymentMethod.Filter(ctx, term)
	case WidgetFillings:
		opts, err = b.Fillings.Options(ctx)
	case WidgetComplements:
		opts, err = b.Complements.Options(ctx)
	default:
		apt.RespondError(w, http.StatusNotFound, "Unknown widget")
		return
	}
	if err != nil {
		h.log(r).Error("cannot load options", "widget", chi.URLParam(r, "widget"), "error", err)
		notice.Respond(w, http.StatusBadGateway, nil, notice.Error("Erro ao carregar opções."))
		return
	}

	apt.RespondCollection(w, opts, "options")
}

// Select chooses a combobox value or toggles a multi-select item.
func (h *BuilderHandler) Select(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.BuilderSelect")
	defer finish()

	id, b, ok := h.draft(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if !decode(w, r, h.log(r), &req) {
		return
	}

	ctx := r.Context()
	var (
		n   *notice.Notice
		err error
	)
	switch chi.URLParam(r, "widget") {
	case WidgetCustomer:
		err = b.Customer.Choose(ctx, req.ID)
		b.Customer.Close()
	case WidgetModel:
		err = b.Model.Choose(ctx, req.ID)
		b.Model.Close()
	case WidgetPaymentMethod:
		err = b.PaymentMethod.Choose(ctx, req.ID)
		b.PaymentMethod.Close()
	case WidgetFillings:
		n, err = b.Fillings.Toggle(ctx, req.ID)
	case WidgetComplements:
		n, err = b.Complements.Toggle(ctx, req.ID)
	default:
		apt.RespondError(w, http.StatusNotFound, "Unknown widget")
		return
	}

	switch {
	case errors.Is(err, selector.ErrLimitReached):
		notice.Respond(w, http.StatusConflict, b.State(id), n)
	case errors.Is(err, selector.ErrUnknownOption):
		apt.RespondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.log(r).Error("cannot load options", "error", err)
		notice.Respond(w, http.StatusBadGateway, nil, notice.Error("Erro ao carregar opções."))
	default:
		notice.Respond(w, http.StatusOK, b.State(id), n)
	}
}

func (h *BuilderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitBuilder")
	defer finish()

	token, owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "draft"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid draft id")
		return
	}

	n, err := h.builders.Submit(r.Context(), owner, token, id)
	switch {
	case errors.Is(err, ErrIncomplete):
		notice.Respond(w, http.StatusUnprocessableEntity, nil, n)
	case errors.Is(err, drafts.ErrNotFound), errors.Is(err, drafts.ErrExpired), errors.Is(err, drafts.ErrNotOwner):
		h.draftError(w, err)
	case err != nil:
		notice.Respond(w, http.StatusBadGateway, nil, n)
	default:
		notice.Respond(w, http.StatusCreated, nil, n)
	}
}

func (h *BuilderHandler) draft(w http.ResponseWriter, r *http.Request) (uuid.UUID, *Builder, bool) {
	_, owner, ok := h.identity(w, r)
	if !ok {
		return uuid.Nil, nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "draft"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid draft id")
		return uuid.Nil, nil, false
	}
	b, err := h.builders.Get(owner, id)
	if err != nil {
		h.draftError(w, err)
		return uuid.Nil, nil, false
	}
	return id, b, true
}

func (h *BuilderHandler) draftError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, drafts.ErrNotOwner):
		apt.RespondError(w, http.StatusForbidden, "Draft belongs to another session")
	case errors.Is(err, drafts.ErrExpired):
		apt.RespondError(w, http.StatusGone, "Draft expired")
	default:
		apt.RespondError(w, http.StatusNotFound, "Draft not found")
	}
}

func (h *BuilderHandler) identity(w http.ResponseWriter, r *http.Request) (token, owner string, ok bool) {
	token = auth.TokenFrom(r.Context())
	if token == "" {
		h.log(r).Info("builder request without token")
		apt.RespondError(w, http.StatusUnauthorized, "Authentication required")
		return "", "", false
	}
	owner = auth.SessionIDFrom(r.Context())
	if owner == "" {
		owner = token
	}
	return token, owner, true
}

func (h *BuilderHandler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

// parseDelivery accepts a full date-time or the HTML datetime-local form.
func parseDelivery(s string) (time.Time, error) {
	for _, layout := range []string{cake.DeliveryLayout, "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid delivery date")
}

func decode(w http.ResponseWriter, r *http.Request, log apt.Logger, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}
