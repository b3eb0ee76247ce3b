package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/appetiteclub/apt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appetiteclub/cakeshop/pkg/cake"
)

func TestNewClientNilConfig(t *testing.T) {
	_, err := NewClient(nil, nil)
	if err == nil {
		t.Error("NewClient() with nil config should return error")
	}
}

func TestNewClientMissingURL(t *testing.T) {
	_, err := NewClient(apt.NewConfig(), nil)
	if err == nil {
		t.Error("NewClient() without api.url should return error")
	}
}

func TestClientMissingTokenSkipsRequest(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	c := New(server.URL, server.Client(), nil)

	_, err := c.OrdersByStatus(context.Background(), "", "PENDING")
	assert.True(t, errors.Is(err, ErrMissingToken))
	assert.Equal(t, 0, calls)
}

func TestClientSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		assert.Equal(t, "/cake/fillings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]cake.Filling{{ID: "1", Name: "Ninho", PricePerKg: 50}})
	}))
	defer server.Close()

	c := New(server.URL, server.Client(), nil)
	fillings, err := c.Fillings().List(context.Background(), "tkn")
	require.NoError(t, err)
	require.Len(t, fillings, 1)
	assert.Equal(t, "Ninho", fillings[0].Name)
}

func TestClientStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New(server.URL, server.Client(), nil)
	_, err := c.CurrentUser(context.Background(), "expired")

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.False(t, IsStatus(err, http.StatusNotFound))
}

func TestClientServerErrorIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, server.Client(), nil)
	_, err := c.Fillings().List(context.Background(), "tkn")

	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, 1, calls)
}

func TestClientPropagatesRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", r.Header.Get(apt.RequestIDHeader))
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx := apt.WithRequestID(context.Background(), "req-42")
	err := New(server.URL, server.Client(), nil).UpdateOrderStatus(ctx, "tkn", "9", "CANCELLED")
	require.NoError(t, err)
}

func TestClientEmptyBodyIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := New(server.URL, server.Client(), nil).Order(context.Background(), "tkn", "7")
	assert.NoError(t, err)
}

func TestClientLogin(t *testing.T) {
	tests := []struct {
		name     string
		login    func(c *Client) (string, error)
		wantPath string
	}{
		{
			name: "staff",
			login: func(c *Client) (string, error) {
				return c.Login(context.Background(), cake.Credentials{Email: "a@b.c", Password: "x"})
			},
			wantPath: "/auth/login",
		},
		{
			name: "customer",
			login: func(c *Client) (string, error) {
				return c.LoginClient(context.Background(), cake.Credentials{Email: "a@b.c", Password: "x"})
			},
			wantPath: "/auth/login_client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Empty(t, r.Header.Get("Authorization"))
				var creds cake.Credentials
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
				assert.Equal(t, "a@b.c", creds.Email)
				json.NewEncoder(w).Encode(map[string]string{"token": "abc"})
			}))
			defer server.Close()

			token, err := tt.login(New(server.URL, server.Client(), nil))
			require.NoError(t, err)
			assert.Equal(t, "abc", token)
		})
	}
}

func TestClientLoginEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	_, err := New(server.URL, server.Client(), nil).Login(context.Background(), cake.Credentials{})
	assert.Error(t, err)
}

func TestResourcePaths(t *testing.T) {
	type seen struct{ method, path string }
	var got []seen
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, seen{r.Method, r.URL.Path})
		io.Copy(io.Discard, r.Body)
	}))
	defer server.Close()

	c := New(server.URL, server.Client(), nil)
	ctx := context.Background()

	require.NoError(t, c.Complements().Create(ctx, "t", cake.ComplementInput{Name: "Topo"}))
	require.NoError(t, c.Complements().Update(ctx, "t", "7", cake.ComplementInput{Name: "Topo"}))
	require.NoError(t, c.Complements().Delete(ctx, "t", "7"))
	require.NoError(t, c.Categories().Create(ctx, "t", cake.CategoryInput{Name: "Infantil"}))
	require.NoError(t, c.Models().Delete(ctx, "t", "3"))
	require.NoError(t, c.PaymentMethods().Create(ctx, "t", cake.PaymentMethodInput{Type: "Pix"}))

	assert.Equal(t, []seen{
		{http.MethodPost, "/cake/complement/register"},
		{http.MethodPut, "/cake/complements/7"},
		{http.MethodDelete, "/cake/complements/7"},
		{http.MethodPost, "/cake/category/register"},
		{http.MethodDelete, "/cake/models/3"},
		{http.MethodPost, "/cake/payment-methods/register"},
	}, got)
}

func TestOrdersQueries(t *testing.T) {
	var gotQuery []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = append(gotQuery, r.URL.Path+"?"+r.URL.RawQuery)
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode([]cake.Order{{ID: "1", Status: "PENDING"}})
		}
	}))
	defer server.Close()

	c := New(server.URL, server.Client(), nil)
	ctx := context.Background()

	_, err := c.OrdersByStatus(ctx, "t", "PENDING")
	require.NoError(t, err)
	_, err = c.OrdersByDeliveryDate(ctx, "t", "2024-05-10", "ACCEPTED")
	require.NoError(t, err)
	_, err = c.OrdersByUser(ctx, "t", "u-1")
	require.NoError(t, err)
	require.NoError(t, c.UpdateOrderStatus(ctx, "t", "9", "CANCELLED"))

	assert.Equal(t, []string{
		"/orders/by-status?status=PENDING",
		"/orders/by-delivery-date?date=2024-05-10&status=ACCEPTED",
		"/orders/by-user?userId=u-1",
		"/orders/update-status/9?status=CANCELLED",
	}, gotQuery)
}

func TestRegisterOrderPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PENDING", body["status"])
		assert.Equal(t, "5", body["cake_model"])
		assert.NotContains(t, body, "order_status")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	err := New(server.URL, server.Client(), nil).RegisterOrder(context.Background(), "t", cake.OrderRequest{
		Weight:    1.5,
		CakeModel: "5",
		Status:    "PENDING",
	})
	assert.NoError(t, err)
}
