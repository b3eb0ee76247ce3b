package catalog

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appetiteclub/cakeshop/services/shop/internal/auth"
)

func newRouter(f *fixture, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if token != "" {
				req = req.WithContext(auth.WithIdentity(req.Context(), auth.RoleStaff, token, "sess"))
			}
			next.ServeHTTP(w, req)
		})
	})
	NewHandler(f.catalog, f.blobs, nil).RegisterRoutes(r)
	return r
}

func TestHandlerStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		method   string
		path     string
		body     string
		want     int
		contains string
	}{
		{name: "missingToken", method: http.MethodGet, path: "/staff/fillings", want: http.StatusUnauthorized},
		{name: "list", token: "tkn", method: http.MethodGet, path: "/staff/fillings?q=mor", want: http.StatusOK, contains: "Morango"},
		{name: "unknownSortColumn", token: "tkn", method: http.MethodGet, path: "/staff/fillings?sort=nope", want: http.StatusBadRequest},
		{name: "deleteWithoutConfirm", token: "tkn", method: http.MethodDelete, path: "/staff/fillings/1", want: http.StatusConflict},
		{name: "createInvalid", token: "tkn", method: http.MethodPost, path: "/staff/fillings", body: `{"filling_name":""}`, want: http.StatusUnprocessableEntity, contains: "filling_name"},
		{name: "createBadJSON", token: "tkn", method: http.MethodPost, path: "/staff/fillings", body: `{`, want: http.StatusBadRequest},
		{name: "deleteUpstreamError", token: "tkn", method: http.MethodDelete, path: "/staff/fillings/2?confirm=true", want: http.StatusBadGateway, contains: "Erro ao excluir recheio"},
		{name: "delete", token: "tkn", method: http.MethodDelete, path: "/staff/fillings/1?confirm=true", want: http.StatusOK, contains: "Recheio excluído"},
		{name: "noImagesRouteForFillings", token: "tkn", method: http.MethodPost, path: "/staff/fillings/images", want: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedFillings()
			f.backend.Status(http.MethodDelete, "/cake/fillings/1", http.StatusOK)
			f.backend.Status(http.MethodDelete, "/cake/fillings/2", http.StatusInternalServerError)

			w := httptest.NewRecorder()
			newRouter(f, tt.token).ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, tt.want, w.Code)
			if tt.contains != "" {
				assert.Contains(t, w.Body.String(), tt.contains)
			}
		})
	}
}

func TestHandlerRejectedRequestsReachNoBackend(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, "tkn")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/staff/models/7", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/staff/models", strings.NewReader(`{"cake_name":"Bolo"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	assert.Empty(t, f.backend.Requests())
}

func TestHandlerUploadImage(t *testing.T) {
	f := newFixture(t)

	img := image.NewRGBA(image.Rect(0, 0, 1600, 400))
	img.Set(0, 0, color.White)
	var raw bytes.Buffer
	require.NoError(t, png.Encode(&raw, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "bolo.png")
	require.NoError(t, err)
	_, err = part.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/staff/models/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	newRouter(f, "tkn").ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://acct.blob.core.windows.net/model/")
	assert.Contains(t, w.Body.String(), ".jpg")
}

func TestHandlerUploadImageRequiresFile(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	newRouter(f, "tkn").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/staff/complements/images", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
