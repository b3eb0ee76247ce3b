package wizard

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
	r.Get("/shop/catalog", h.Catalog)
	r.Get("/shop/orders", h.MyOrders)

	r.Route("/shop/wizard", func(r chi.Router) {
		r.Post("/", h.Open)
		r.Get("/{draft}", h.Get)
		r.Delete("/{draft}", h.Close)
		r.Get("/{draft}/catalog", h.DraftCatalog)
		r.Post("/{draft}/model", h.SelectModel)
		r.Get("/{draft}/fillings", h.FillingTiers)
		r.Post("/{draft}/fillings", h.ToggleFilling)
		r.Put("/{draft}/weight", h.SetWeight)
		r.Post("/{draft}/calculator", h.OpenCalculator)
		r.Put("/{draft}/calculator", h.Calculate)
		r.Get("/{draft}/complements", h.ComplementOptions)
		r.Post("/{draft}/complements", h.ToggleComplement)
		r.Get("/{draft}/payment-methods", h.PaymentOptions)
		r.Put("/{draft}/delivery", h.SetDelivery)
		r.Post("/{draft}/next", h.Next)
		r.Post("/{draft}/back", h.Back)
		r.Post("/{draft}/confirm", h.Confirm)
	})
}

type idRequest struct {
	ID cake.ID `json:"id"`
}

type weightRequest struct {
	Weight float64 `json:"weight"`
}

type calculatorRequest struct {
	People int `json:"people"`
	Pieces int `json:"pieces"`
}

type deliveryRequest struct {
	DeliveryDate  string  `json:"delivery_date"`
	PaymentMethod cake.ID `json:"payment_method"`
	Observation   string  `json:"observation"`
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Catalog")
	defer finish()

	token, _, ok := h.identity(w, r)
	if !ok {
		return
	}
	groups, err := h.service.Catalog(r.Context(), token, r.URL.Query().Get("category"))
	if err != nil {
		h.upstream(w, r, err, "Erro ao buscar modelos.")
		return
	}
	apt.RespondCollection(w, groups, "categories")
}

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MyOrders")
	defer finish()

	token, _, ok := h.identity(w, r)
	if !ok {
		return
	}
	orders, n, err := h.service.MyOrders(r.Context(), token)
	if err != nil {
		notice.Respond(w, http.StatusBadGateway, nil, n)
		return
	}
	apt.RespondCollection(w, orders, "orders")
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.OpenWizard")
	defer finish()

	token, owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, wz := h.service.Open(owner, token)
	notice.Respond(w, http.StatusCreated, wz.State(id.String()), nil)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	apt.RespondSuccess(w, wz.State(id.String()))
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	_, owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "draft"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid draft id")
		return
	}
	if err := h.service.Close(owner, id); err != nil {
		draftError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DraftCatalog(w http.ResponseWriter, r *http.Request) {
	_, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	groups, err := wz.Catalog(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.upstream(w, r, err, "Erro ao buscar modelos.")
		return
	}
	apt.RespondCollection(w, groups, "categories")
}

func (h *Handler) SelectModel(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req idRequest
	if !decode(w, r, h.log(r), &req) {
		return
	}
	h.respond(w, r, id, wz, nil, wz.SelectModel(r.Context(), req.ID))
}

func (h *Handler) FillingTiers(w http.ResponseWriter, r *http.Request) {
	_, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	tiers, err := wz.FillingTiers(r.Context())
	if err != nil {
		h.upstream(w, r, err, "Erro ao buscar recheios.")
		return
	}
	apt.RespondCollection(w, tiers, "tiers")
}

func (h *Handler) ToggleFilling(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req idRequest
	if !decode(w, r, h.log(r), &req) {
		return
	}
	n, err := wz.ToggleFilling(r.Context(), req.ID)
	h.respond(w, r, id, wz, n, err)
}

func (h *Handler) SetWeight(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req weightRequest
	if !decode(w, r, h.log(r), &req) {
		return
	}
	h.respond(w, r, id, wz, nil, wz.SetWeight(req.Weight))
}

func (h *Handler) OpenCalculator(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	h.respond(w, r, id, wz, nil, wz.OpenCalculator())
}

func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req calculatorRequest
	if !decode(w, r, h.log(r), &req) {
		return
	}
	_, err := wz.Calculate(req.People, req.Pieces)
	h.respond(w, r, id, wz, nil, err)
}

func (h *Handler) ComplementOptions(w http.ResponseWriter, r *http.Request) {
	_, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	items, err := wz.Complements.Items(r.Context())
	if err != nil {
		h.upstream(w, r, err, "Erro ao buscar complementos.")
		return
	}
	apt.RespondCollection(w, items, "complements")
}

func (h *Handler) ToggleComplement(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req idRequest
	if !decode(w, r, h.log(r), &req) {
		return
	}
	n, err := wz.ToggleComplement(r.Context(), req.ID)
	h.respond(w, r, id, wz, n, err)
}

func (h *Handler) PaymentOptions(w http.ResponseWriter, r *http.Request) {
	_, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	opts, err := wz.PaymentMethod.Open(r.Context())
	if err != nil {
		h.upstream(w, r, err, "Erro ao buscar métodos de pagamento.")
		return
	}
	apt.RespondCollection(w, opts, "options")
}

func (h *Handler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req deliveryRequest
	if !decode(w, r, h.log(r), &req) {
		return
	}

	var at time.Time
	if req.DeliveryDate != "" {
		t, err := parseDelivery(req.DeliveryDate)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid delivery_date")
			return
		}
		at = t
	}
	h.respond(w, r, id, wz, nil, wz.SetDelivery(r.Context(), at, req.PaymentMethod, req.Observation))
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	n, err := wz.Next()
	h.respond(w, r, id, wz, n, err)
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := h.draft(w, r)
	if !ok {
		return
	}
	wz.Back()
	h.respond(w, r, id, wz, nil, nil)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ConfirmWizard")
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

	res, err := h.service.Confirm(r.Context(), owner, token, id)
	switch {
	case errors.Is(err, ErrWrongStep), errors.Is(err, ErrConfirming):
		apt.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, drafts.ErrNotFound), errors.Is(err, drafts.ErrExpired), errors.Is(err, drafts.ErrNotOwner):
		draftError(w, err)
	case err != nil:
		notice.Respond(w, http.StatusBadGateway, nil, res.Notice)
	default:
		notice.Respond(w, http.StatusCreated, map[string]string{"redirect": res.Redirect}, res.Notice)
	}
}

// respond maps a wizard action outcome to a response carrying the new state.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, id uuid.UUID, wz *Wizard, n *notice.Notice, err error) {
	state := wz.State(id.String())
	switch {
	case err == nil:
		notice.Respond(w, http.StatusOK, state, n)
	case errors.Is(err, ErrGate):
		notice.Respond(w, http.StatusUnprocessableEntity, state, n)
	case errors.Is(err, selector.ErrLimitReached):
		notice.Respond(w, http.StatusConflict, state, n)
	case errors.Is(err, ErrWrongStep):
		apt.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, selector.ErrUnknownOption):
		apt.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.upstream(w, r, err, "Erro ao carregar opções.")
	}
}

func (h *Handler) upstream(w http.ResponseWriter, r *http.Request, err error, msg string) {
	h.log(r).Error("cannot reach api", "error", err)
	notice.Respond(w, http.StatusBadGateway, nil, notice.Error(msg))
}

func (h *Handler) draft(w http.ResponseWriter, r *http.Request) (uuid.UUID, *Wizard, bool) {
	_, owner, ok := h.identity(w, r)
	if !ok {
		return uuid.Nil, nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "draft"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid draft id")
		return uuid.Nil, nil, false
	}
	wz, err := h.service.Get(owner, id)
	if err != nil {
		draftError(w, err)
		return uuid.Nil, nil, false
	}
	return id, wz, true
}

func draftError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, drafts.ErrNotOwner):
		apt.RespondError(w, http.StatusForbidden, "Draft belongs to another session")
	case errors.Is(err, drafts.ErrExpired):
		apt.RespondError(w, http.StatusGone, "Draft expired")
	default:
		apt.RespondError(w, http.StatusNotFound, "Draft not found")
	}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (token, owner string, ok bool) {
	token = auth.TokenFrom(r.Context())
	if token == "" {
		h.log(r).Info("shop request without token")
		apt.RespondError(w, http.StatusUnauthorized, "Authentication required")
		return "", "", false
	}
	owner = auth.SessionIDFrom(r.Context())
	if owner == "" {
		owner = token
	}
	return token, owner, true
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

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
