package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"

	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/services/shop/internal/auth"
	"github.com/appetiteclub/cakeshop/services/shop/internal/blob"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
	"github.com/appetiteclub/cakeshop/services/shop/internal/table"
)

const (
	MaxBodyBytes  = 1 << 20
	MaxImageBytes = 10 << 20
)

// Handler exposes every catalog module under /staff.
type Handler struct {
	catalog *Catalog
	blobs   blob.Storage
	logger  apt.Logger
}

func NewHandler(catalog *Catalog, blobs blob.Storage, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{catalog: catalog, blobs: blobs, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	newResourceHandler("/staff/models", h.catalog.Models, h.blobs, h.logger).RegisterRoutes(r)
	newResourceHandler("/staff/fillings", h.catalog.Fillings, h.blobs, h.logger).RegisterRoutes(r)
	newResourceHandler("/staff/complements", h.catalog.Complements, h.blobs, h.logger).RegisterRoutes(r)
	newResourceHandler("/staff/payment-methods", h.catalog.PaymentMethods, h.blobs, h.logger).RegisterRoutes(r)
	newResourceHandler("/staff/categories", h.catalog.Categories, h.blobs, h.logger).RegisterRoutes(r)
}

type resourceHandler[T any, I any] struct {
	path   string
	module *Module[T, I]
	blobs  blob.Storage
	logger apt.Logger
	tlm    *telemetry.HTTP
}

func newResourceHandler[T any, I any](path string, m *Module[T, I], blobs blob.Storage, logger apt.Logger) *resourceHandler[T, I] {
	return &resourceHandler[T, I]{
		path:   path,
		module: m,
		blobs:  blobs,
		logger: logger.With("resource", m.Name()),
		tlm:    telemetry.NewHTTP(),
	}
}

func (h *resourceHandler[T, I]) RegisterRoutes(r chi.Router) {
	r.Get(h.path, h.List)
	r.Post(h.path, h.Create)
	r.Put(h.path+"/{id}", h.Update)
	r.Delete(h.path+"/{id}", h.Delete)
	if h.module.kind.imageBearing() {
		r.Post(h.path+"/images", h.UploadImage)
	}
}

func (h *resourceHandler[T, I]) List(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.List")
	defer finish()

	log := h.log(r)
	token, ok := h.token(w, r, log)
	if !ok {
		return
	}

	q := table.ParseQuery(r.URL.Query())
	force := r.URL.Query().Get("refresh") == "true"

	rows, err := h.module.List(r.Context(), token, q, force)
	if errors.Is(err, table.ErrUnknownColumn) {
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error("cannot list", "error", err)
		notice.Respond(w, http.StatusBadGateway, nil, notice.Error(h.module.kind.Notices.ListFailed))
		return
	}

	apt.RespondCollection(w, rows, h.module.Name())
}

func (h *resourceHandler[T, I]) Create(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Create")
	defer finish()

	log := h.log(r)
	token, ok := h.token(w, r, log)
	if !ok {
		return
	}

	var in I
	if !decode(w, r, log, &in) {
		return
	}

	n, err := h.module.Create(r.Context(), token, in)
	if err != nil {
		h.fail(w, n, err)
		return
	}
	notice.Respond(w, http.StatusCreated, nil, n)
}

func (h *resourceHandler[T, I]) Update(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Update")
	defer finish()

	log := h.log(r)
	token, ok := h.token(w, r, log)
	if !ok {
		return
	}

	id := cake.ID(chi.URLParam(r, "id"))
	var in I
	if !decode(w, r, log, &in) {
		return
	}

	row, n, err := h.module.Update(r.Context(), token, id, in)
	if err != nil {
		h.fail(w, n, err)
		return
	}
	notice.Respond(w, http.StatusOK, row, n)
}

func (h *resourceHandler[T, I]) Delete(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Delete")
	defer finish()

	log := h.log(r)
	token, ok := h.token(w, r, log)
	if !ok {
		return
	}

	if r.URL.Query().Get("confirm") != "true" {
		apt.RespondError(w, http.StatusConflict, "Delete requires confirm=true")
		return
	}

	id := cake.ID(chi.URLParam(r, "id"))
	n, err := h.module.Delete(r.Context(), token, id)
	if err != nil {
		h.fail(w, n, err)
		return
	}
	notice.Respond(w, http.StatusOK, nil, n)
}

// UploadImage stores the multipart "file" field and returns its URL.
func (h *resourceHandler[T, I]) UploadImage(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UploadImage")
	defer finish()

	log := h.log(r)
	if _, ok := h.token(w, r, log); !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		log.Debug("missing image file", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Image file is required")
		return
	}
	defer file.Close()

	url, err := blob.StoreImage(r.Context(), h.blobs, h.module.kind.Container, file)
	if errors.Is(err, blob.ErrImageTooLarge) {
		log.Debug("image rejected", "error", err)
		apt.RespondError(w, http.StatusRequestEntityTooLarge, "Image is too large")
		return
	}
	if err != nil {
		log.Error("cannot store image", "error", err)
		notice.Respond(w, http.StatusBadGateway, nil, notice.Error("Erro ao enviar imagem"))
		return
	}

	apt.RespondSuccess(w, map[string]string{"url": url})
}

func (h *resourceHandler[T, I]) fail(w http.ResponseWriter, n *notice.Notice, err error) {
	var verrs cake.ValidationErrors
	if errors.As(err, &verrs) {
		notice.RespondValidation(w, n, verrs)
		return
	}
	notice.Respond(w, http.StatusBadGateway, nil, n)
}

func (h *resourceHandler[T, I]) token(w http.ResponseWriter, r *http.Request, log apt.Logger) (string, bool) {
	token := auth.TokenFrom(r.Context())
	if token == "" {
		log.Error("cannot serve catalog request", "error", api.ErrMissingToken)
		apt.RespondError(w, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return token, true
}

func (h *resourceHandler[T, I]) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
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
