package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appetiteclub/cakeshop/pkg/api/apitest"
	"github.com/appetiteclub/cakeshop/pkg/event"
	"github.com/appetiteclub/cakeshop/services/shop/internal/audit"
	"github.com/appetiteclub/cakeshop/services/shop/internal/table"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.OrderEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	var ev event.OrderEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

type serviceFixture struct {
	backend *apitest.Backend
	pub     *recordingPublisher
	audit   *audit.Logger
	service *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	backend := apitest.New(t)
	client := backend.Client()
	f := &serviceFixture{
		backend: backend,
		pub:     &recordingPublisher{},
		audit:   audit.NewLogger(nil, nil),
	}
	feed := NewFeed(client, FeedOptions{Origin: "replica-a"})
	f.service = NewService(client, feed, f.audit, f.pub, "replica-a", nil)
	return f
}

func (f *serviceFixture) seedPending() {
	f.backend.JSON(http.MethodGet, "/orders/by-status", http.StatusOK, []map[string]interface{}{
		{"id": 1, "orderStatus": "PENDING", "totalValue": 38, "userClient": map[string]interface{}{"name": "Ana"}},
		{"id": 2, "orderStatus": "PENDING", "totalValue": 90, "userClient": map[string]interface{}{"name": "Bruno"}},
	})
}

func TestAcceptRemovesOrderFromPendingView(t *testing.T) {
	f := newServiceFixture(t)
	f.seedPending()
	f.backend.Status(http.MethodPatch, "/orders/update-status/1", http.StatusOK)
	ctx := context.Background()

	_, err := f.service.Feed().Read(ctx, "tkn", pendingKey, table.Query{})
	require.NoError(t, err)

	n, err := f.service.Apply(ctx, "tkn", "1", Accept)
	require.NoError(t, err)
	assert.Equal(t, "Pedido aceito com sucesso!", n.Title)

	reqs := f.backend.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "status=ACCEPTED", last.Query)

	rows, err := f.service.Feed().Read(ctx, "tkn", pendingKey, table.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bruno", rows[0].Customer.Name)
	assert.Equal(t, 1, f.backend.Count(http.MethodGet, "/orders/by-status"))

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, "ACCEPTED", f.pub.events[0].Status)
	assert.Equal(t, "PENDING", f.pub.events[0].PreviousStatus)
	assert.Equal(t, "replica-a", f.pub.events[0].Source)
}

func TestTransitionNotices(t *testing.T) {
	tests := []struct {
		name       string
		transition Transition
		status     int
		wantStatus string
		wantTitle  string
		wantErr    bool
	}{
		{name: "accept", transition: Accept, status: http.StatusOK, wantStatus: "ACCEPTED", wantTitle: "Pedido aceito com sucesso!"},
		{name: "cancel", transition: Cancel, status: http.StatusOK, wantStatus: "CANCELLED", wantTitle: "Pedido cancelado com sucesso!"},
		{name: "deliver", transition: Deliver, status: http.StatusOK, wantStatus: "DELIVERY", wantTitle: "Pedido entregue com sucesso!"},
		{name: "acceptFails", transition: Accept, status: http.StatusInternalServerError, wantStatus: "ACCEPTED", wantTitle: "Erro ao aceitar o pedido.", wantErr: true},
		{name: "cancelFails", transition: Cancel, status: http.StatusBadRequest, wantStatus: "CANCELLED", wantTitle: "Erro ao cancelar o pedido.", wantErr: true},
		{name: "deliverFails", transition: Deliver, status: http.StatusNotFound, wantStatus: "DELIVERY", wantTitle: "Erro ao marcar o pedido como entregue.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			f.backend.Status(http.MethodPatch, "/orders/update-status/9", tt.status)

			n, err := f.service.Apply(context.Background(), "tkn", "9", tt.transition)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, f.pub.events)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantTitle, n.Title)
			require.Equal(t, 1, f.backend.Count(http.MethodPatch, "/orders/update-status/9"))
			assert.Equal(t, "status="+tt.wantStatus, f.backend.Requests()[0].Query)
		})
	}
}

func TestFailedTransitionKeepsView(t *testing.T) {
	f := newServiceFixture(t)
	f.seedPending()
	f.backend.Status(http.MethodPatch, "/orders/update-status/1", http.StatusBadGateway)
	ctx := context.Background()

	_, err := f.service.Feed().Read(ctx, "tkn", pendingKey, table.Query{})
	require.NoError(t, err)

	_, err = f.service.Apply(ctx, "tkn", "1", Accept)
	require.Error(t, err)

	rows, err := f.service.Feed().Read(ctx, "tkn", pendingKey, table.Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, f.backend.Count(http.MethodPatch, "/orders/update-status/1"), "no retry")
}

func TestDetail(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.JSON(http.MethodGet, "/orders/5", http.StatusOK, map[string]interface{}{"id": 5, "weight": 1.5})

	o, n, err := f.service.Detail(context.Background(), "tkn", "5")
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Equal(t, 1.5, o.Weight)

	_, n, err = f.service.Detail(context.Background(), "tkn", "6")
	require.Error(t, err)
	assert.Equal(t, "Erro ao buscar os detalhes do pedido.", n.Title)
}
