package wizard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appetiteclub/cakeshop/services/shop/internal/auth"
)

func (f *serviceFixture) router(token, sid string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if token != "" {
				req = req.WithContext(auth.WithIdentity(req.Context(), auth.RoleCustomer, token, sid))
			}
			next.ServeHTTP(w, req)
		})
	})
	NewHandler(f.service, nil).RegisterRoutes(r)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

type response struct {
	Data struct {
		ID       string  `json:"id"`
		Step     string  `json:"step"`
		Total    float64 `json:"total"`
		Redirect string  `json:"redirect"`
	} `json:"data"`
	Notice *struct {
		Title string `json:"title"`
	} `json:"notice"`
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestWizardEndpointsFlow(t *testing.T) {
	f := newServiceFixture(t)
	h := f.router("tkn", "sess")

	w := serve(h, http.MethodPost, "/shop/wizard", "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeResponse(t, w).Data.ID
	base := "/shop/wizard/" + id

	steps := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, base + "/next", "", http.StatusUnprocessableEntity},
		{http.MethodPost, base + "/model", `{"id":20}`, http.StatusOK},
		{http.MethodPost, base + "/fillings", `{"id":2}`, http.StatusOK},
		{http.MethodPost, base + "/next", "", http.StatusOK},
		{http.MethodPost, base + "/calculator", "", http.StatusOK},
		{http.MethodPut, base + "/calculator", `{"people":10,"pieces":1}`, http.StatusOK},
		{http.MethodPost, base + "/next", "", http.StatusOK},
		{http.MethodPost, base + "/complements", `{"id":30}`, http.StatusOK},
		{http.MethodPost, base + "/next", "", http.StatusOK},
		{http.MethodPut, base + "/delivery", `{"delivery_date":"2026-05-10T14:00","payment_method":40}`, http.StatusOK},
		{http.MethodPost, base + "/next", "", http.StatusOK},
	}
	for _, s := range steps {
		w := serve(h, s.method, s.path, s.body)
		require.Equal(t, s.want, w.Code, "%s %s: %s", s.method, s.path, w.Body.String())
	}

	w = serve(h, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decodeResponse(t, w)
	assert.Equal(t, "summary", st.Data.Step)
	// 60 * 1.0 + 3
	assert.InDelta(t, 63.0, st.Data.Total, 1e-9)

	w = serve(h, http.MethodPost, base+"/confirm", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decodeResponse(t, w)
	assert.Equal(t, "/my_orders", res.Data.Redirect)
	assert.Equal(t, "Agendamento realizado com sucesso.", res.Notice.Title)

	w = serve(h, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWizardFillingLimitConflict(t *testing.T) {
	f := newServiceFixture(t)
	h := f.router("tkn", "sess")

	id, wz := f.service.Open("sess", "tkn")
	walk(t, wz, StepFillings)
	base := "/shop/wizard/" + id.String()
	for _, fid := range []string{"1", "2", "3"} {
		require.Equal(t, http.StatusOK, serve(h, http.MethodPost, base+"/fillings", `{"id":`+fid+`}`).Code)
	}

	w := serve(h, http.MethodPost, base+"/fillings", `{"id":4}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Limite de recheios excedido", decodeResponse(t, w).Notice.Title)
}

func TestWizardRejections(t *testing.T) {
	f := newServiceFixture(t)
	id, _ := f.service.Open("sess", "tkn")
	base := "/shop/wizard/" + id.String()

	tests := []struct {
		name   string
		token  string
		sid    string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "missingToken", method: http.MethodGet, path: base, want: http.StatusUnauthorized},
		{name: "otherSession", token: "tkn", sid: "other", method: http.MethodGet, path: base, want: http.StatusForbidden},
		{name: "badDraftID", token: "tkn", sid: "sess", method: http.MethodGet, path: "/shop/wizard/nope", want: http.StatusBadRequest},
		{name: "wrongStep", token: "tkn", sid: "sess", method: http.MethodPut, path: base + "/weight", body: `{"weight":2}`, want: http.StatusConflict},
		{name: "unknownModel", token: "tkn", sid: "sess", method: http.MethodPost, path: base + "/model", body: `{"id":99}`, want: http.StatusBadRequest},
		{name: "badJSON", token: "tkn", sid: "sess", method: http.MethodPost, path: base + "/model", body: `{`, want: http.StatusBadRequest},
		{name: "confirmEarly", token: "tkn", sid: "sess", method: http.MethodPost, path: base + "/confirm", want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(f.router(tt.token, tt.sid), tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCatalogAndMyOrdersEndpoints(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.JSON(http.MethodGet, "/orders/by-user", http.StatusOK, []map[string]interface{}{
		{"id": 1, "orderStatus": "PENDING", "cakeModel": map[string]interface{}{"cake_name": "Naked Cake"}},
	})
	h := f.router("tkn", "sess")

	w := serve(h, http.MethodGet, "/shop/catalog?category=Casamento", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Floresta")
	assert.NotContains(t, w.Body.String(), "Pão de mel")

	w = serve(h, http.MethodGet, "/shop/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Naked Cake")
}
