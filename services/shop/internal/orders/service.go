package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/cakeshop/pkg"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/pkg/enums/orderstatus"
	"github.com/appetiteclub/cakeshop/pkg/event"
	"github.com/appetiteclub/cakeshop/services/shop/internal/audit"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
)

// API is the part of the REST API order screens use.
type API interface {
	Source
	Order(ctx context.Context, token string, id cake.ID) (*cake.Order, error)
	UpdateOrderStatus(ctx context.Context, token string, id cake.ID, status string) error
	RegisterOrder(ctx context.Context, token string, req cake.OrderRequest) error
}

// Transition is a status change staff can apply to an order.
type Transition struct {
	Name   string
	Target orderstatus.Status
	Done   string
	Failed string
}

var (
	Accept = Transition{
		Name:   "accept",
		Target: orderstatus.Statuses.Accepted,
		Done:   "Pedido aceito com sucesso!",
		Failed: "Erro ao aceitar o pedido.",
	}
	Cancel = Transition{
		Name:   "cancel",
		Target: orderstatus.Statuses.Cancelled,
		Done:   "Pedido cancelado com sucesso!",
		Failed: "Erro ao cancelar o pedido.",
	}
	Deliver = Transition{
		Name:   "deliver",
		Target: orderstatus.Statuses.Delivered,
		Done:   "Pedido entregue com sucesso!",
		Failed: "Erro ao marcar o pedido como entregue.",
	}
)

const detailFailed = "Erro ao buscar os detalhes do pedido."

type Service struct {
	api       API
	feed      *Feed
	audit     *audit.Logger
	publisher pkg.Publisher
	origin    string
	logger    apt.Logger
}

func NewService(api API, feed *Feed, audit *audit.Logger, publisher pkg.Publisher, origin string, logger apt.Logger) *Service {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if publisher == nil {
		publisher = pkg.NoopPublisher{}
	}
	return &Service{
		api:       api,
		feed:      feed,
		audit:     audit,
		publisher: publisher,
		origin:    origin,
		logger:    logger,
	}
}

func (s *Service) Feed() *Feed {
	return s.feed
}

// Apply moves an order to t.Target. On success the order leaves every view
// that listed it and the target status views go stale. Failures change
// nothing and are not retried.
func (s *Service) Apply(ctx context.Context, token string, id cake.ID, t Transition) (*notice.Notice, error) {
	err := s.api.UpdateOrderStatus(ctx, token, id, t.Target.Code())
	s.audit.Record(ctx, t.Name, "orders/"+id.String(), err)
	if err != nil {
		s.logger.Error("cannot update order status", "order_id", id.String(), "status", t.Target.Code(), "error", err)
		return notice.Error(t.Failed), err
	}

	previous := s.feed.Remove(id)
	s.feed.Bump(t.Target.Code())
	s.publish(ctx, event.OrderEvent{
		EventType:      event.EventOrderStatusChanged,
		OrderID:        id.String(),
		Status:         t.Target.Code(),
		PreviousStatus: previous,
	})

	return notice.Success(t.Done), nil
}

func (s *Service) Detail(ctx context.Context, token string, id cake.ID) (*cake.Order, *notice.Notice, error) {
	o, err := s.api.Order(ctx, token, id)
	if err != nil {
		s.logger.Error("cannot get order", "order_id", id.String(), "error", err)
		return nil, notice.Error(detailFailed), err
	}
	return o, nil, nil
}

// Register submits a new order and marks the views of its status stale.
func (s *Service) Register(ctx context.Context, token string, req cake.OrderRequest) error {
	err := s.api.RegisterOrder(ctx, token, req)
	s.audit.Record(ctx, "register", "orders", err)
	if err != nil {
		return fmt.Errorf("register order: %w", err)
	}

	status := req.OrderStatus
	if status == "" {
		status = req.Status
	}
	s.feed.Bump(status)
	s.publish(ctx, event.OrderEvent{EventType: event.EventOrderCreated, Status: status})
	return nil
}

func (s *Service) publish(ctx context.Context, ev event.OrderEvent) {
	ev.OccurredAt = time.Now().UTC()
	ev.Source = s.origin
	if err := pkg.PublishJSON(ctx, s.publisher, event.OrdersTopic, ev); err != nil {
		s.logger.Error("cannot publish order event", "error", err)
	}
}
