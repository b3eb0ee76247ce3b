package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"

	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/pkg/enums/orderstatus"
	"github.com/appetiteclub/cakeshop/services/shop/internal/drafts"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
	"github.com/appetiteclub/cakeshop/services/shop/internal/selector"
)

var ErrIncomplete = errors.New("order draft incomplete")

const (
	scheduled      = "Agendamento realizado com sucesso."
	scheduleFailed = "Erro ao salvar agendamento."
)

// Loaders feed the builder widgets.
type Loaders struct {
	Customers      selector.Loader[cake.User]
	Models         selector.Loader[cake.Model]
	Fillings       selector.Loader[cake.Filling]
	Complements    selector.Loader[cake.Complement]
	PaymentMethods selector.Loader[cake.PaymentMethod]
}

// LoadersFor reads the widget options from the API with token.
func LoadersFor(client *api.Client, token string) Loaders {
	return Loaders{
		Customers: func(ctx context.Context) ([]cake.User, error) {
			return client.Customers(ctx, token)
		},
		Models: func(ctx context.Context) ([]cake.Model, error) {
			return client.Models().List(ctx, token)
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

// Builder is the staff scheduling form: five selection widgets plus the
// weight and the delivery date-time.
type Builder struct {
	Customer      *selector.Combobox[cake.User]
	Model         *selector.Combobox[cake.Model]
	PaymentMethod *selector.Combobox[cake.PaymentMethod]
	Fillings      *selector.MultiSelect[cake.Filling]
	Complements   *selector.MultiSelect[cake.Complement]

	mu       sync.Mutex
	weight   float64
	delivery time.Time
}

func NewBuilder(l Loaders) *Builder {
	return &Builder{
		Customer: selector.NewCombobox(l.Customers,
			func(u cake.User) cake.ID { return u.ID },
			func(u cake.User) string { return u.Name }),
		Model: selector.NewCombobox(l.Models,
			func(m cake.Model) cake.ID { return m.ID },
			func(m cake.Model) string { return m.Name }),
		PaymentMethod: selector.NewCombobox(l.PaymentMethods,
			func(p cake.PaymentMethod) cake.ID { return p.ID },
			func(p cake.PaymentMethod) string { return p.Type }),
		Fillings: selector.NewMultiSelect(l.Fillings,
			func(f cake.Filling) cake.ID { return f.ID },
			func(f cake.Filling) string { return f.Name },
			cake.MaxFillings, selector.WarnAtMax,
			notice.Warn("Você atingiu o limite de recheios selecionados. (3)", "")),
		Complements: selector.NewMultiSelect(l.Complements,
			func(c cake.Complement) cake.ID { return c.ID },
			func(c cake.Complement) string { return c.Name },
			cake.MaxComplements, selector.WarnAtMax,
			notice.Warn("Você atingiu o limite de complementos selecionados. (10)", "")),
	}
}

func (b *Builder) SetWeight(kg float64) {
	b.mu.Lock()
	b.weight = kg
	b.mu.Unlock()
}

func (b *Builder) SetDelivery(t time.Time) {
	b.mu.Lock()
	b.delivery = t
	b.mu.Unlock()
}

// Validate checks the rules in order and returns the notice of the first
// one that fails, or nil.
func (b *Builder) Validate() *notice.Notice {
	if _, ok := b.Customer.Value(); !ok {
		return notice.Error("Cliente é obrigatório.")
	}
	if b.Fillings.Len() == 0 {
		return notice.Error("Pelo menos um recheio é obrigatório.")
	}
	if _, ok := b.Model.Value(); !ok {
		return notice.Error("Modelo é obrigatório.")
	}
	if _, ok := b.PaymentMethod.Value(); !ok {
		return notice.Error("Método de pagamento é obrigatório.")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.weight <= 0 {
		return notice.Error("Peso do bolo deve ser maior que zero.")
	}
	if b.delivery.IsZero() {
		return notice.Error("Data de entrega é obrigatória.")
	}
	return nil
}

// Request builds the payload of a validated draft. Staff orders are
// scheduled already accepted.
func (b *Builder) Request() cake.OrderRequest {
	customer, _ := b.Customer.Value()
	model, _ := b.Model.Value()
	payment, _ := b.PaymentMethod.Value()

	b.mu.Lock()
	defer b.mu.Unlock()
	return cake.OrderRequest{
		Weight:        b.weight,
		DeliveryDate:  b.delivery.Format(cake.DeliveryLayout),
		User:          customer.ID,
		CakeModel:     model.ID,
		Fillings:      cake.IDs(b.Fillings.Selected(), func(f cake.Filling) cake.ID { return f.ID }),
		Complements:   cake.IDs(b.Complements.Selected(), func(c cake.Complement) cake.ID { return c.ID }),
		PaymentMethod: payment.ID,
		OrderStatus:   orderstatus.Statuses.Accepted.Code(),
	}
}

// Reset clears every selection. Loaded options are kept.
func (b *Builder) Reset() {
	b.Customer.Reset()
	b.Model.Reset()
	b.PaymentMethod.Reset()
	b.Fillings.Clear()
	b.Complements.Clear()

	b.mu.Lock()
	b.weight = 0
	b.delivery = time.Time{}
	b.mu.Unlock()
}

// BuilderState is the serialisable view of a draft.
type BuilderState struct {
	ID            string            `json:"id"`
	Customer      *selector.Option  `json:"customer,omitempty"`
	Model         *selector.Option  `json:"model,omitempty"`
	PaymentMethod *selector.Option  `json:"payment_method,omitempty"`
	Fillings      []selector.Option `json:"fillings"`
	Complements   []selector.Option `json:"complements"`
	Weight        float64           `json:"weight"`
	DeliveryDate  string            `json:"delivery_date,omitempty"`
	Total         float64           `json:"total"`
}

func (b *Builder) State(id uuid.UUID) BuilderState {
	st := BuilderState{ID: id.String()}
	if u, ok := b.Customer.Value(); ok {
		st.Customer = &selector.Option{ID: u.ID, Label: u.Name}
	}
	if m, ok := b.Model.Value(); ok {
		st.Model = &selector.Option{ID: m.ID, Label: m.Name}
	}
	if p, ok := b.PaymentMethod.Value(); ok {
		st.PaymentMethod = &selector.Option{ID: p.ID, Label: p.Type}
	}

	fillings := b.Fillings.Selected()
	complements := b.Complements.Selected()
	st.Fillings = make([]selector.Option, 0, len(fillings))
	for _, f := range fillings {
		st.Fillings = append(st.Fillings, selector.Option{ID: f.ID, Label: f.Name})
	}
	st.Complements = make([]selector.Option, 0, len(complements))
	for _, c := range complements {
		st.Complements = append(st.Complements, selector.Option{ID: c.ID, Label: c.Name})
	}

	b.mu.Lock()
	st.Weight = b.weight
	if !b.delivery.IsZero() {
		st.DeliveryDate = b.delivery.Format(cake.DeliveryLayout)
	}
	b.mu.Unlock()

	st.Total = cake.Total(fillings, st.Weight, complements)
	return st
}

// Builders keeps the open builder drafts of every staff session.
type Builders struct {
	store   *drafts.Store[*Builder]
	service *Service
	loaders func(token string) Loaders
	logger  apt.Logger
}

func NewBuilders(store *drafts.Store[*Builder], service *Service, loaders func(token string) Loaders, logger apt.Logger) *Builders {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Builders{store: store, service: service, loaders: loaders, logger: logger}
}

// Open starts a draft owned by the session.
func (bs *Builders) Open(owner, token string) (uuid.UUID, *Builder) {
	b := NewBuilder(bs.loaders(token))
	return bs.store.Create(owner, b), b
}

func (bs *Builders) Get(owner string, id uuid.UUID) (*Builder, error) {
	return bs.store.Get(owner, id)
}

// Close discards a draft.
func (bs *Builders) Close(owner string, id uuid.UUID) error {
	if _, err := bs.store.Get(owner, id); err != nil {
		return err
	}
	bs.store.Delete(id)
	return nil
}

// Submit validates the draft and registers the order. An invalid draft
// issues no request. On success the draft is reset and closed.
func (bs *Builders) Submit(ctx context.Context, owner, token string, id uuid.UUID) (*notice.Notice, error) {
	b, err := bs.store.Get(owner, id)
	if err != nil {
		return nil, err
	}

	if n := b.Validate(); n != nil {
		return n, ErrIncomplete
	}

	if err := bs.service.Register(ctx, token, b.Request()); err != nil {
		bs.logger.Error("cannot schedule order", "error", err)
		return notice.Error(scheduleFailed), err
	}

	b.Reset()
	bs.store.Delete(id)
	return notice.Success(scheduled), nil
}
