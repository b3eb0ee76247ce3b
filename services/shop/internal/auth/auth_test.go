package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appetiteclub/cakeshop/pkg/api/apitest"
	"github.com/appetiteclub/cakeshop/pkg/cake"
)

func newTestSessions() *Sessions {
	return NewSessionsWithStore(sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")), nil)
}

// browser replays cookies between requests.
type browser struct {
	cookies []*http.Cookie
}

func (b *browser) do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Result().Cookies(); len(got) > 0 {
		b.cookies = got
	}
	return w
}

func newRouter(s *Sessions, backend *apitest.Backend, verify bool) http.Handler {
	r := chi.NewRouter()
	NewHandler(s, backend.Client(), nil).RegisterRoutes(r)

	var v Verifier
	if verify {
		v = backend.Client()
	}
	r.With(s.Require(RoleStaff, v)).Get("/staff/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(TokenFrom(r.Context()) + "|" + string(RoleFrom(r.Context()))))
	})
	r.With(s.Require(RoleCustomer, v)).Get("/shop/ping", func(w http.ResponseWriter, r *http.Request) {
		if SessionIDFrom(r.Context()) == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(TokenFrom(r.Context())))
	})
	return r
}

func TestLoginStoresOneTokenAndDropsTheOther(t *testing.T) {
	backend := apitest.New(t)
	backend.JSON(http.MethodPost, "/auth/login", http.StatusOK, map[string]string{"token": "staff-token"})
	backend.JSON(http.MethodPost, "/auth/login_client", http.StatusOK, map[string]string{"token": "client-token"})
	h := newRouter(newTestSessions(), backend, false)
	b := &browser{}

	w := b.do(t, h, http.MethodPost, "/auth/login-client", `{"email":"ana@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = b.do(t, h, http.MethodGet, "/shop/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client-token", w.Body.String())

	w = b.do(t, h, http.MethodGet, "/staff/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = b.do(t, h, http.MethodPost, "/auth/login", `{"email":"staff@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = b.do(t, h, http.MethodGet, "/staff/ping", "")
	assert.Equal(t, "staff-token|staff", w.Body.String())

	w = b.do(t, h, http.MethodGet, "/shop/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "customer token is removed by a staff login")
}

func TestLoginRejected(t *testing.T) {
	backend := apitest.New(t)
	backend.Status(http.MethodPost, "/auth/login", http.StatusUnauthorized)
	h := newRouter(newTestSessions(), backend, false)

	w := (&browser{}).do(t, h, http.MethodPost, "/auth/login", `{"email":"x@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Erro ao logar com usuário")
}

func TestLoginValidationMakesNoCall(t *testing.T) {
	backend := apitest.New(t)
	h := newRouter(newTestSessions(), backend, false)

	w := (&browser{}).do(t, h, http.MethodPost, "/auth/login", `{"email":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, backend.Requests())
}

func TestGuardDiscardsRejectedToken(t *testing.T) {
	backend := apitest.New(t)
	backend.JSON(http.MethodPost, "/auth/login", http.StatusOK, map[string]string{"token": "stale"})
	backend.Status(http.MethodGet, "/user", http.StatusUnauthorized)
	h := newRouter(newTestSessions(), backend, true)
	b := &browser{}

	b.do(t, h, http.MethodPost, "/auth/login", `{"email":"staff@example.com","password":"secret"}`)

	w := b.do(t, h, http.MethodGet, "/staff/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	backend.JSON(http.MethodGet, "/user", http.StatusOK, cake.User{ID: "1"})
	w = b.do(t, h, http.MethodGet, "/staff/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "token was removed on the first rejection")
	assert.Equal(t, 1, backend.Count(http.MethodGet, "/user"))
}

func TestRegisterValidatesPhone(t *testing.T) {
	backend := apitest.New(t)
	backend.Status(http.MethodPost, "/auth/register_client", http.StatusCreated)
	h := newRouter(newTestSessions(), backend, false)

	w := (&browser{}).do(t, h, http.MethodPost, "/auth/register",
		`{"name":"Ana","phone":"11987654321","email":"ana@example.com","password":"secret"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 0, backend.Count(http.MethodPost, "/auth/register_client"))

	w = (&browser{}).do(t, h, http.MethodPost, "/auth/register",
		`{"name":"Ana","phone":"+5511987654321","email":"ana@example.com","password":"secret"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, backend.Count(http.MethodPost, "/auth/register_client"))
}

func TestMeAndUpdateProfile(t *testing.T) {
	backend := apitest.New(t)
	backend.JSON(http.MethodPost, "/auth/login_client", http.StatusOK, map[string]string{"token": "client-token"})
	backend.JSON(http.MethodGet, "/user/profile/client", http.StatusOK, cake.User{ID: "u-7", Name: "Ana"})
	backend.Status(http.MethodPatch, "/user/profile/client/u-7", http.StatusOK)
	h := newRouter(newTestSessions(), backend, false)
	b := &browser{}

	b.do(t, h, http.MethodPost, "/auth/login-client", `{"email":"ana@example.com","password":"secret"}`)

	w := b.do(t, h, http.MethodGet, "/auth/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"customer"`)

	w = b.do(t, h, http.MethodPatch, "/auth/profile", `{"name":"Ana Maria"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Perfil atualizado")
	assert.Contains(t, w.Body.String(), "Ana Maria")
	assert.Equal(t, 1, backend.Count(http.MethodPatch, "/user/profile/client/u-7"))
}

func TestMeWithoutSession(t *testing.T) {
	backend := apitest.New(t)
	h := newRouter(newTestSessions(), backend, false)

	w := (&browser{}).do(t, h, http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout(t *testing.T) {
	backend := apitest.New(t)
	backend.JSON(http.MethodPost, "/auth/login", http.StatusOK, map[string]string{"token": "staff-token"})
	h := newRouter(newTestSessions(), backend, false)
	b := &browser{}

	b.do(t, h, http.MethodPost, "/auth/login", `{"email":"staff@example.com","password":"secret"}`)
	w := b.do(t, h, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = b.do(t, h, http.MethodGet, "/staff/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/guarded/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(string(RoleFrom(r.Context()))))
	})
}

func TestGuardedModule(t *testing.T) {
	backend := apitest.New(t)
	backend.JSON(http.MethodPost, "/auth/login_client", http.StatusOK, map[string]string{"token": "client-token"})
	s := newTestSessions()

	r := chi.NewRouter()
	NewHandler(s, backend.Client(), nil).RegisterRoutes(r)
	Guarded(s.Require(RoleCustomer, nil), pingModule{}).RegisterRoutes(r)
	b := &browser{}

	w := b.do(t, r, http.MethodGet, "/guarded/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	b.do(t, r, http.MethodPost, "/auth/login-client", `{"email":"ana@example.com","password":"secret"}`)
	w = b.do(t, r, http.MethodGet, "/guarded/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "customer", w.Body.String())
}
