// Package wizard implements the customer's step-by-step cake order.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/pkg/enums/orderstatus"
	"github.com/appetiteclub/cakeshop/services/shop/internal/notice"
	"github.com/appetiteclub/cakeshop/services/shop/internal/selector"
)

type Step string

const (
	StepCatalog     Step = "catalog"
	StepFillings    Step = "fillings"
	StepWeight      Step = "weight"
	StepCalculator  Step = "calculator"
	StepComplements Step = "complements"
	StepDelivery    Step = "delivery"
	StepSummary     Step = "summary"
)

// flow is the main path; the calculator hangs off the weight step.
var flow = []Step{StepCatalog, StepFillings, StepWeight, StepComplements, StepDelivery, StepSummary}

var (
	ErrGate       = errors.New("step requirements not met")
	ErrWrongStep  = errors.New("action not available in this step")
	ErrConfirming = errors.New("order is already being confirmed")
)

// Loaders feed the wizard's lists.
type Loaders struct {
	Models         func(ctx context.Context) ([]cake.Model, error)
	Fillings       selector.Loader[cake.Filling]
	Complements    selector.Loader[cake.Complement]
	PaymentMethods selector.Loader[cake.PaymentMethod]
}

// Wizard is one customer's order in progress. The total is derived from the
// current selection every time it is read. Delivery defaults to the moment
// the wizard was opened.
type Wizard struct {
	Fillings      *selector.MultiSelect[cake.Filling]
	Complements   *selector.MultiSelect[cake.Complement]
	PaymentMethod *selector.Combobox[cake.PaymentMethod]

	loadModels func(ctx context.Context) ([]cake.Model, error)

	mu          sync.Mutex
	step        Step
	models      []cake.Model
	model       *cake.Model
	weight      float64
	people      int
	pieces      int
	delivery    time.Time
	observation string
	confirming  bool
}

func New(l Loaders) *Wizard {
	return &Wizard{
		Fillings: selector.NewMultiSelect(l.Fillings,
			func(f cake.Filling) cake.ID { return f.ID },
			func(f cake.Filling) string { return f.Name },
			cake.MaxFillings, selector.BlockBeyondMax,
			&notice.Notice{
				Title:       "Limite de recheios excedido",
				Description: "Você pode selecionar no máximo 3 recheios.",
				Variant:     notice.Destructive,
			}),
		Complements: selector.NewMultiSelect(l.Complements,
			func(c cake.Complement) cake.ID { return c.ID },
			func(c cake.Complement) string { return c.Name },
			cake.MaxComplements, selector.BlockBeyondMax,
			notice.Warn("Você atingiu o limite de complementos selecionados. (10)", "")),
		PaymentMethod: selector.NewCombobox(l.PaymentMethods,
			func(p cake.PaymentMethod) cake.ID { return p.ID },
			func(p cake.PaymentMethod) string { return p.Type }),
		loadModels: l.Models,
		step:       StepCatalog,
		delivery:   time.Now().Truncate(time.Second),
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// claim reserves the wizard for a single confirmation.
func (w *Wizard) claim() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepSummary {
		return ErrWrongStep
	}
	if w.confirming {
		return ErrConfirming
	}
	w.confirming = true
	return nil
}

func (w *Wizard) release() {
	w.mu.Lock()
	w.confirming = false
	w.mu.Unlock()
}

func (w *Wizard) ensureModels(ctx context.Context) error {
	if w.models != nil {
		return nil
	}
	models, err := w.loadModels(ctx)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	if models == nil {
		models = []cake.Model{}
	}
	w.models = models
	return nil
}

// Catalog returns the models grouped by category name. A non-empty category
// narrows the result to that group.
func (w *Wizard) Catalog(ctx context.Context, category string) ([]cake.CategoryGroup, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureModels(ctx); err != nil {
		return nil, err
	}
	groups := cake.GroupByCategory(w.models)
	if category == "" {
		return groups, nil
	}
	out := make([]cake.CategoryGroup, 0, 1)
	for _, g := range groups {
		if g.Name == category {
			out = append(out, g)
		}
	}
	return out, nil
}

// SelectModel picks the cake model and advances to the fillings.
func (w *Wizard) SelectModel(ctx context.Context, id cake.ID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepCatalog {
		return ErrWrongStep
	}
	if err := w.ensureModels(ctx); err != nil {
		return err
	}
	for _, m := range w.models {
		if m.ID == id {
			m := m
			w.model = &m
			w.step = StepFillings
			return nil
		}
	}
	return fmt.Errorf("%w: %s", selector.ErrUnknownOption, id)
}

// FillingTiers returns the fillings grouped by price per kg.
func (w *Wizard) FillingTiers(ctx context.Context) ([]cake.PriceTier, error) {
	items, err := w.Fillings.Items(ctx)
	if err != nil {
		return nil, err
	}
	return cake.GroupByPrice(items), nil
}

func (w *Wizard) ToggleFilling(ctx context.Context, id cake.ID) (*notice.Notice, error) {
	if w.Step() != StepFillings {
		return nil, ErrWrongStep
	}
	return w.Fillings.Toggle(ctx, id)
}

// SetWeight enters the weight directly, overriding a calculated one.
func (w *Wizard) SetWeight(kg float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepWeight {
		return ErrWrongStep
	}
	w.weight = kg
	return nil
}

func (w *Wizard) OpenCalculator() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepWeight {
		return ErrWrongStep
	}
	w.step = StepCalculator
	return nil
}

// Calculate sets the weight from the number of people and slices per person
// and returns to the weight step.
func (w *Wizard) Calculate(people, pieces int) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepCalculator {
		return 0, ErrWrongStep
	}
	w.people, w.pieces = people, pieces
	w.weight = cake.WeightFor(people, pieces)
	w.step = StepWeight
	return w.weight, nil
}

func (w *Wizard) ToggleComplement(ctx context.Context, id cake.ID) (*notice.Notice, error) {
	if w.Step() != StepComplements {
		return nil, ErrWrongStep
	}
	return w.Complements.Toggle(ctx, id)
}

// SetDelivery records the delivery details. An empty payment id keeps the
// current choice.
func (w *Wizard) SetDelivery(ctx context.Context, at time.Time, payment cake.ID, observation string) error {
	if w.Step() != StepDelivery {
		return ErrWrongStep
	}
	if payment != "" {
		if err := w.PaymentMethod.Choose(ctx, payment); err != nil {
			return err
		}
	}
	w.mu.Lock()
	if !at.IsZero() {
		w.delivery = at
	}
	w.observation = observation
	w.mu.Unlock()
	return nil
}

// gate reports why the current step cannot be left, or nil. Must be called
// with w.mu held.
func (w *Wizard) gate() *notice.Notice {
	switch w.step {
	case StepCatalog:
		if w.model == nil {
			return notice.Error("Escolha um modelo.")
		}
	case StepFillings:
		if n := w.Fillings.Len(); n < 1 || n > cake.MaxFillings {
			return notice.Error("Escolha de 1 a 3 recheios.")
		}
	case StepWeight:
		if w.weight <= cake.MinWeight {
			return notice.Error("Informe o peso do bolo.")
		}
	case StepDelivery:
		if _, ok := w.PaymentMethod.Value(); !ok {
			return notice.Error("Método de pagamento é obrigatório.")
		}
	case StepCalculator, StepSummary:
		return notice.Error("Não há próximo passo.")
	}
	return nil
}

// Next advances when the current step's requirements are met.
func (w *Wizard) Next() (*notice.Notice, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n := w.gate(); n != nil {
		return n, ErrGate
	}
	for i, s := range flow {
		if s == w.step && i+1 < len(flow) {
			w.step = flow[i+1]
			break
		}
	}
	return nil, nil
}

// Back moves one step back. The calculator returns to the weight step.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepCalculator {
		w.step = StepWeight
		return
	}
	for i, s := range flow {
		if s == w.step && i > 0 {
			w.step = flow[i-1]
			return
		}
	}
}

func (w *Wizard) Total() float64 {
	w.mu.Lock()
	weight := w.weight
	w.mu.Unlock()
	return cake.Total(w.Fillings.Selected(), weight, w.Complements.Selected())
}

// Request builds the order payload for user. Customer orders start pending.
func (w *Wizard) Request(user cake.ID) (cake.OrderRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepSummary {
		return cake.OrderRequest{}, ErrWrongStep
	}
	payment, _ := w.PaymentMethod.Value()
	var delivery string
	if !w.delivery.IsZero() {
		delivery = w.delivery.Format(cake.DeliveryLayout)
	}
	return cake.OrderRequest{
		Weight:            w.weight,
		DeliveryDate:      delivery,
		User:              user,
		CakeModel:         w.model.ID,
		Fillings:          cake.IDs(w.Fillings.Selected(), func(f cake.Filling) cake.ID { return f.ID }),
		Complements:       cake.IDs(w.Complements.Selected(), func(c cake.Complement) cake.ID { return c.ID }),
		PaymentMethod:     payment.ID,
		ObservationClient: w.observation,
		Status:            orderstatus.Statuses.Pending.Code(),
	}, nil
}

// State is the serialisable view of a wizard.
type State struct {
	ID            string              `json:"id"`
	Step          Step                `json:"step"`
	Model         *cake.Model         `json:"model,omitempty"`
	Fillings      []cake.Filling      `json:"fillings"`
	Weight        float64             `json:"weight"`
	People        int                 `json:"people,omitempty"`
	Pieces        int                 `json:"pieces,omitempty"`
	Complements   []cake.Complement   `json:"complements"`
	PaymentMethod *cake.PaymentMethod `json:"payment_method,omitempty"`
	DeliveryDate  string              `json:"delivery_date,omitempty"`
	Observation   string              `json:"observation,omitempty"`
	Total         float64             `json:"total"`
}

func (w *Wizard) State(id string) State {
	fillings := w.Fillings.Selected()
	complements := w.Complements.Selected()
	st := State{
		ID:          id,
		Fillings:    fillings,
		Complements: complements,
	}
	if st.Fillings == nil {
		st.Fillings = []cake.Filling{}
	}
	if st.Complements == nil {
		st.Complements = []cake.Complement{}
	}
	if p, ok := w.PaymentMethod.Value(); ok {
		st.PaymentMethod = &p
	}

	w.mu.Lock()
	st.Step = w.step
	st.Model = w.model
	st.Weight = w.weight
	st.People = w.people
	st.Pieces = w.pieces
	st.Observation = w.observation
	if !w.delivery.IsZero() {
		st.DeliveryDate = w.delivery.Format(cake.DeliveryLayout)
	}
	w.mu.Unlock()

	st.Total = cake.Total(fillings, st.Weight, complements)
	return st
}
