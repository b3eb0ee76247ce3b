// Package catalog implements the staff back-office screens for cake models,
// fillings, complements, payment methods and categories.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/pkg/event"
)

// Catalog groups the five entity modules.
type Catalog struct {
	Models         *Module[cake.Model, cake.ModelInput]
	Fillings       *Module[cake.Filling, cake.FillingInput]
	Complements    *Module[cake.Complement, cake.ComplementInput]
	PaymentMethods *Module[cake.PaymentMethod, cake.PaymentMethodInput]
	Categories     *Module[cake.Category, cake.CategoryInput]

	source string
	logger apt.Logger
}

func New(client *api.Client, deps Deps) *Catalog {
	if deps.Logger == nil {
		deps.Logger = apt.NewNoopLogger()
	}
	c := &Catalog{source: deps.Source, logger: deps.Logger}
	c.Categories = NewModule(CategoryKind(), client.Categories(), deps)
	c.Models = NewModule(ModelKind(c.Categories.Find), client.Models(), deps)
	c.Fillings = NewModule(FillingKind(), client.Fillings(), deps)
	c.Complements = NewModule(ComplementKind(), client.Complements(), deps)
	c.PaymentMethods = NewModule(PaymentMethodKind(), client.PaymentMethods(), deps)
	return c
}

type bumper interface {
	Name() string
	Bump()
}

func (c *Catalog) modules() []bumper {
	return []bumper{c.Models, c.Fillings, c.Complements, c.PaymentMethods, c.Categories}
}

// Bump marks the named resource stale. It reports whether the name is known.
func (c *Catalog) Bump(resource string) bool {
	for _, m := range c.modules() {
		if m.Name() == resource {
			m.Bump()
			return true
		}
	}
	return false
}

// HandleEvent marks a module stale when another replica changed its rows.
func (c *Catalog) HandleEvent(ctx context.Context, data []byte) error {
	var ev event.CatalogEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode catalog event: %w", err)
	}
	if ev.EventType != event.EventCatalogChanged {
		return nil
	}
	if ev.Source != "" && ev.Source == c.source {
		return nil
	}
	if !c.Bump(ev.Resource) {
		c.logger.Debug("catalog event for unknown resource", "resource", ev.Resource)
	}
	return nil
}
