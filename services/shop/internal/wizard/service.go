package wizard

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"

	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/services/shop/internal/drafts"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
)

// MyOrdersPath is where a customer lands after confirming an order.
const MyOrdersPath = "/my_orders"

const (
	scheduled      = "Agendamento realizado com sucesso."
	scheduleFailed = "Erro ao salvar agendamento."
	userFailed     = "Erro ao obter usuário"
)

// API is the part of the REST API the customer screens use.
type API interface {
	ModelsWithCategory(ctx context.Context, token string) ([]cake.Model, error)
	ClientProfile(ctx context.Context, token string) (*cake.User, error)
	OrdersByUser(ctx context.Context, token string, userID cake.ID) ([]cake.Order, error)
}

// Registrar submits orders.
type Registrar interface {
	Register(ctx context.Context, token string, req cake.OrderRequest) error
}

// LoadersFor reads the wizard lists from the API with a customer token.
func LoadersFor(client *api.Client, token string) Loaders {
	return Loaders{
		Models: func(ctx context.Context) ([]cake.Model, error) {
			return client.ModelsWithCategory(ctx, token)
		},
		Fillings: func(ctx context.Context) ([]cake.Filling, error) {
			return client.Fillings().List(ctx, token)
		},
		Complements: func(ctx context.Context) ([]cake.Complement, error) {
			return client.Complements().List(ctx, token)
		},
		PaymentMethods: func(ctx context.Context) ([]cake.PaymentMethod, error) {
			return client.PaymentMethods().List(ctx, token)
		},
	}
}

// Result is the outcome of a confirmed wizard.
type Result struct {
	Notice   *notice.Notice `json:"notice"`
	Redirect string         `json:"redirect,omitempty"`
}

type Service struct {
	store     *drafts.Store[*Wizard]
	api       API
	registrar Registrar
	loaders   func(token string) Loaders
	logger    apt.Logger
}

func NewService(store *drafts.Store[*Wizard], client API, registrar Registrar, loaders func(token string) Loaders, logger apt.Logger) *Service {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Service{store: store, api: client, registrar: registrar, loaders: loaders, logger: logger}
}

func (s *Service) Open(owner, token string) (uuid.UUID, *Wizard) {
	w := New(s.loaders(token))
	return s.store.Create(owner, w), w
}

func (s *Service) Get(owner string, id uuid.UUID) (*Wizard, error) {
	return s.store.Get(owner, id)
}

// Close discards a wizard.
func (s *Service) Close(owner string, id uuid.UUID) error {
	if _, err := s.store.Get(owner, id); err != nil {
		return err
	}
	s.store.Delete(id)
	return nil
}

// Confirm submits the order of a wizard on its summary step. On success the
// wizard is discarded and the customer is sent to their orders.
func (s *Service) Confirm(ctx context.Context, owner, token string, id uuid.UUID) (Result, error) {
	w, err := s.store.Get(owner, id)
	if err != nil {
		return Result{}, err
	}
	if err := w.claim(); err != nil {
		return Result{}, err
	}

	user, err := s.api.ClientProfile(ctx, token)
	if err != nil {
		w.release()
		s.logger.Error("cannot get customer", "error", err)
		return Result{Notice: notice.Error(userFailed)}, err
	}

	req, err := w.Request(user.ID)
	if err != nil {
		w.release()
		return Result{}, err
	}
	if err := s.registrar.Register(ctx, token, req); err != nil {
		w.release()
		s.logger.Error("cannot register order", "error", err)
		return Result{Notice: notice.Error(scheduleFailed)}, err
	}

	// The wizard stays claimed so a late duplicate cannot register again.
	s.store.Delete(id)
	return Result{Notice: notice.Success(scheduled), Redirect: MyOrdersPath}, nil
}

// Catalog lists the models grouped by category outside of any wizard.
func (s *Service) Catalog(ctx context.Context, token, category string) ([]cake.CategoryGroup, error) {
	w := New(Loaders{Models: func(ctx context.Context) ([]cake.Model, error) {
		return s.api.ModelsWithCategory(ctx, token)
	}})
	return w.Catalog(ctx, category)
}

// MyOrders lists the orders of the signed-in customer.
func (s *Service) MyOrders(ctx context.Context, token string) ([]cake.Order, *notice.Notice, error) {
	user, err := s.api.ClientProfile(ctx, token)
	if err != nil {
		s.logger.Error("cannot get customer", "error", err)
		return nil, notice.Error(userFailed), err
	}
	orders, err := s.api.OrdersByUser(ctx, token, user.ID)
	if err != nil {
		s.logger.Error("cannot list customer orders", "user_id", user.ID.String(), "error", err)
		return nil, notice.Error("Erro ao buscar pedidos."), fmt.Errorf("orders by user: %w", err)
	}
	return orders, nil, nil
}
