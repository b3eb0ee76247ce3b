package wizard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appetiteclub/cakeshop/pkg/api/apitest"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/services/shop/internal/drafts"
)

type recordingRegistrar struct {
	mu   sync.Mutex
	reqs []cake.OrderRequest
	err  error
}

func (r *recordingRegistrar) Register(_ context.Context, _ string, req cake.OrderRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.reqs = append(r.reqs, req)
	return nil
}

type serviceFixture struct {
	backend   *apitest.Backend
	registrar *recordingRegistrar
	service   *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	b := apitest.New(t)
	seedShop(b)
	b.JSON(http.MethodGet, "/user/profile/client", http.StatusOK, map[string]interface{}{"id": 7, "name": "Ana"})
	client := b.Client()
	reg := &recordingRegistrar{}
	svc := NewService(drafts.NewStore[*Wizard](time.Hour, nil), client, reg, func(token string) Loaders {
		return LoadersFor(client, token)
	}, nil)
	return &serviceFixture{backend: b, registrar: reg, service: svc}
}

func TestConfirmRegistersPendingOrder(t *testing.T) {
	f := newServiceFixture(t)
	id, w := f.service.Open("sess", "tkn")
	walk(t, w, StepSummary)

	res, err := f.service.Confirm(context.Background(), "sess", "tkn", id)
	require.NoError(t, err)
	assert.Equal(t, "Agendamento realizado com sucesso.", res.Notice.Title)
	assert.Equal(t, "/my_orders", res.Redirect)

	require.Len(t, f.registrar.reqs, 1)
	assert.Equal(t, "PENDING", f.registrar.reqs[0].Status)
	assert.Equal(t, cake.ID("7"), f.registrar.reqs[0].User)

	_, err = f.service.Get("sess", id)
	assert.ErrorIs(t, err, drafts.ErrNotFound)
}

func TestConfirmBeforeSummary(t *testing.T) {
	f := newServiceFixture(t)
	id, w := f.service.Open("sess", "tkn")
	walk(t, w, StepDelivery)

	_, err := f.service.Confirm(context.Background(), "sess", "tkn", id)
	assert.ErrorIs(t, err, ErrWrongStep)
	assert.Empty(t, f.registrar.reqs)
	assert.Equal(t, 0, f.backend.Count(http.MethodGet, "/user/profile/client"))
}

func TestConfirmFailures(t *testing.T) {
	t.Run("profile", func(t *testing.T) {
		f := newServiceFixture(t)
		f.backend.Status(http.MethodGet, "/user/profile/client", http.StatusInternalServerError)
		id, w := f.service.Open("sess", "tkn")
		walk(t, w, StepSummary)

		res, err := f.service.Confirm(context.Background(), "sess", "tkn", id)
		assert.Error(t, err)
		assert.Equal(t, "Erro ao obter usuário", res.Notice.Title)
		assert.Empty(t, f.registrar.reqs)
	})

	t.Run("register", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registrar.err = assert.AnError
		id, w := f.service.Open("sess", "tkn")
		walk(t, w, StepSummary)

		res, err := f.service.Confirm(context.Background(), "sess", "tkn", id)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, "Erro ao salvar agendamento.", res.Notice.Title)
		assert.Empty(t, res.Redirect)

		kept, err := f.service.Get("sess", id)
		require.NoError(t, err)
		assert.Equal(t, StepSummary, kept.Step())
	})
}

type blockingRegistrar struct {
	entered chan struct{}
	proceed chan struct{}
	recordingRegistrar
}

func (r *blockingRegistrar) Register(ctx context.Context, token string, req cake.OrderRequest) error {
	r.entered <- struct{}{}
	<-r.proceed
	return r.recordingRegistrar.Register(ctx, token, req)
}

func TestConfirmTwiceConcurrentlyRegistersOnce(t *testing.T) {
	f := newServiceFixture(t)
	reg := &blockingRegistrar{entered: make(chan struct{}, 1), proceed: make(chan struct{})}
	client := f.backend.Client()
	svc := NewService(drafts.NewStore[*Wizard](time.Hour, nil), client, reg, func(token string) Loaders {
		return LoadersFor(client, token)
	}, nil)
	id, w := svc.Open("sess", "tkn")
	walk(t, w, StepSummary)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Confirm(context.Background(), "sess", "tkn", id)
		done <- err
	}()
	<-reg.entered

	_, err := svc.Confirm(context.Background(), "sess", "tkn", id)
	assert.ErrorIs(t, err, ErrConfirming)

	close(reg.proceed)
	require.NoError(t, <-done)
	assert.Len(t, reg.reqs, 1)

	_, err = svc.Confirm(context.Background(), "sess", "tkn", id)
	assert.ErrorIs(t, err, drafts.ErrNotFound)
}

func TestConfirmRetryAfterFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.registrar.err = assert.AnError
	id, w := f.service.Open("sess", "tkn")
	walk(t, w, StepSummary)

	_, err := f.service.Confirm(context.Background(), "sess", "tkn", id)
	require.ErrorIs(t, err, assert.AnError)

	f.registrar.err = nil
	_, err = f.service.Confirm(context.Background(), "sess", "tkn", id)
	require.NoError(t, err)
	assert.Len(t, f.registrar.reqs, 1)
}

func TestMyOrders(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.JSON(http.MethodGet, "/orders/by-user", http.StatusOK, []map[string]interface{}{
		{"id": 1, "orderStatus": "PENDING"},
	})

	orders, n, err := f.service.MyOrders(context.Background(), "tkn")
	require.NoError(t, err)
	assert.Nil(t, n)
	require.Len(t, orders, 1)

	assert.Equal(t, []string{"GET /user/profile/client", "GET /orders/by-user"}, f.backend.Calls())
	reqs := f.backend.Requests()
	assert.Equal(t, "userId=7", reqs[1].Query)
}

func TestMyOrdersFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.Status(http.MethodGet, "/orders/by-user", http.StatusBadGateway)

	_, n, err := f.service.MyOrders(context.Background(), "tkn")
	assert.Error(t, err)
	assert.Equal(t, "Erro ao buscar pedidos.", n.Title)
}

func TestStateJSON(t *testing.T) {
	f := newServiceFixture(t)
	_, w := f.service.Open("sess", "tkn")
	walk(t, w, StepWeight)

	b, err := json.Marshal(w.State("d1"))
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "weight", got["step"])
	assert.Equal(t, "d1", got["id"])
	assert.Len(t, got["fillings"], 1)
}
