package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
)

const MaxBodyBytes = 1 << 20

// APIClient is the part of the REST API the auth endpoints use.
type APIClient interface {
	Verifier
	Login(ctx context.Context, creds cake.Credentials) (string, error)
	LoginClient(ctx context.Context, creds cake.Credentials) (string, error)
	RegisterClient(ctx context.Context, reg cake.Registration) error
	Profile(ctx context.Context, token string) (*cake.User, error)
	ClientProfile(ctx context.Context, token string) (*cake.User, error)
	UpdateProfile(ctx context.Context, token string, id cake.ID, in cake.ProfileUpdate) error
	UpdateClientProfile(ctx context.Context, token string, id cake.ID, in cake.ProfileUpdate) error
}

type Handler struct {
	sessions *Sessions
	client   APIClient
	logger   apt.Logger
	tlm      *telemetry.HTTP
}

func NewHandler(sessions *Sessions, client APIClient, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		sessions: sessions,
		client:   client,
		logger:   logger,
		tlm:      telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.LoginStaff)
		r.Post("/login-client", h.LoginCustomer)
		r.Post("/register", h.Register)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Patch("/profile", h.UpdateProfile)
		r.Get("/csrf", h.CSRFToken)
	})
}

type meResponse struct {
	Role Role       `json:"role"`
	User *cake.User `json:"user"`
}

func (h *Handler) LoginStaff(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.LoginStaff")
	defer finish()

	h.login(w, r, RoleStaff, h.client.Login)
}

func (h *Handler) LoginCustomer(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.LoginCustomer")
	defer finish()

	h.login(w, r, RoleCustomer, h.client.LoginClient)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, role Role, call func(context.Context, cake.Credentials) (string, error)) {
	log := h.log(r)

	var creds cake.Credentials
	if !decode(w, r, log, &creds) {
		return
	}
	if errs := creds.Validate(); len(errs) > 0 {
		notice.RespondValidation(w, notice.Error("Preencha e-mail e senha."), errs)
		return
	}

	token, err := call(r.Context(), creds)
	if err != nil {
		log.Info("login failed", "role", string(role), "error", err)
		status := http.StatusBadGateway
		if api.IsUnauthorized(err) || api.IsStatus(err, http.StatusBadRequest) || api.IsStatus(err, http.StatusNotFound) {
			status = http.StatusUnauthorized
		}
		notice.Respond(w, status, nil, notice.Error("Erro ao logar com usuário"))
		return
	}

	if err := h.sessions.Login(w, r, role, token); err != nil {
		log.Error("cannot save session", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not save session")
		return
	}

	log.Info("signed in", "role", string(role))
	apt.RespondSuccess(w, map[string]string{"role": string(role)})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Register")
	defer finish()

	log := h.log(r)

	var reg cake.Registration
	if !decode(w, r, log, &reg) {
		return
	}
	if errs := reg.Validate(); len(errs) > 0 {
		notice.RespondValidation(w, notice.Error(errs[0].Message), errs)
		return
	}

	if err := h.client.RegisterClient(r.Context(), reg); err != nil {
		log.Error("cannot register customer", "error", err)
		notice.Respond(w, http.StatusBadGateway, nil, notice.Error("Erro ao registrar o usuário"))
		return
	}

	notice.Respond(w, http.StatusCreated, nil, &notice.Notice{
		Title:       "Sucesso!",
		Description: "Usuário cadastrado com sucesso.",
		Variant:     notice.Default,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Logout")
	defer finish()

	if err := h.sessions.Logout(w, r); err != nil {
		h.log(r).Error("cannot clear session", "error", err)
		notice.Respond(w, http.StatusInternalServerError, nil, notice.Error("Erro ao sair"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user. A token the API no longer accepts is
// removed from the session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Me")
	defer finish()

	log := h.log(r)

	role, user, ok := h.profile(w, r, log)
	if !ok {
		return
	}
	apt.RespondSuccess(w, meResponse{Role: role, User: user})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateProfile")
	defer finish()

	log := h.log(r)

	var in cake.ProfileUpdate
	if !decode(w, r, log, &in) {
		return
	}
	if errs := in.Validate(); len(errs) > 0 {
		notice.RespondValidation(w, notice.Error(errs[0].Message), errs)
		return
	}

	role, user, ok := h.profile(w, r, log)
	if !ok {
		return
	}

	token := h.sessions.Token(r, role)
	update := h.client.UpdateClientProfile
	if role == RoleStaff {
		update = h.client.UpdateProfile
	}

	if err := update(r.Context(), token, user.ID, in); err != nil {
		log.Error("cannot update profile", "error", err)
		notice.Respond(w, http.StatusBadGateway, nil, notice.Error("Erro ao atualizar perfil"))
		return
	}

	if in.Name != "" {
		user.Name = in.Name
	}
	if in.Phone != "" {
		user.Phone = in.Phone
	}
	notice.Respond(w, http.StatusOK, meResponse{Role: role, User: user}, notice.Success("Perfil atualizado"))
}

// CSRFToken hands the token to clients that send state-changing requests
// as JSON.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-CSRF-Token", csrf.Token(r))
	apt.RespondSuccess(w, map[string]string{"token": csrf.Token(r)})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request, log apt.Logger) (Role, *cake.User, bool) {
	role, token, ok := h.sessions.ActiveRole(r)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return "", nil, false
	}

	fetch := h.client.ClientProfile
	if role == RoleStaff {
		fetch = h.client.Profile
	}

	user, err := fetch(r.Context(), token)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			log.Info("token rejected by api", "status", se.Code)
			if err := h.sessions.Clear(w, r, role); err != nil {
				log.Error("cannot clear session token", "error", err)
			}
			apt.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return "", nil, false
		}
		log.Error("cannot load profile", "error", err)
		notice.Respond(w, http.StatusBadGateway, nil, notice.Error("Erro ao obter usuário"))
		return "", nil, false
	}

	return role, user, true
}

func (h *Handler) log(r *http.Request) apt.Logger {
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
