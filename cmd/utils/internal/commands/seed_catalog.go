package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/pkg/cake"
)

// Demo catalog entries.
var (
	demoCategories = []cake.CategoryInput{
		{Name: "Aniversário"},
		{Name: "Casamento"},
	}
	demoFillings = []cake.FillingInput{
		{Name: "Brigadeiro", PricePerKg: 90},
		{Name: "Ninho com morango", PricePerKg: 110},
		{Name: "Doce de leite", PricePerKg: 90},
	}
	demoComplements = []cake.ComplementInput{
		{Name: "Vela", Price: 5},
		{Name: "Topo personalizado", Price: 35},
	}
	demoPaymentMethods = []cake.PaymentMethodInput{
		{Type: "PIX"},
		{Type: "Cartão de crédito"},
	}
)

// SeedCatalog registers a small demo catalog through the API. Existing
// entries with the same name are skipped.
func SeedCatalog(ctx context.Context, client *api.Client, token string, logger apt.Logger) error {
	logger.Info("Starting catalog seeding...")

	if err := seed(ctx, client.Categories(), token, demoCategories,
		func(c cake.Category) string { return c.Name },
		func(in cake.CategoryInput) string { return in.Name }, logger); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	if err := seed(ctx, client.Fillings(), token, demoFillings,
		func(f cake.Filling) string { return f.Name },
		func(in cake.FillingInput) string { return in.Name }, logger); err != nil {
		return fmt.Errorf("seed fillings: %w", err)
	}
	if err := seed(ctx, client.Complements(), token, demoComplements,
		func(c cake.Complement) string { return c.Name },
		func(in cake.ComplementInput) string { return in.Name }, logger); err != nil {
		return fmt.Errorf("seed complements: %w", err)
	}
	if err := seed(ctx, client.PaymentMethods(), token, demoPaymentMethods,
		func(p cake.PaymentMethod) string { return p.Type },
		func(in cake.PaymentMethodInput) string { return in.Type }, logger); err != nil {
		return fmt.Errorf("seed payment methods: %w", err)
	}
	return nil
}

func seed[T any, I any](ctx context.Context, res *api.Resource[T, I], token string, inputs []I, name func(T) string, inputName func(I) string, logger apt.Logger) error {
	existing, err := res.List(ctx, token)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[name(e)] = true
	}

	for _, in := range inputs {
		if have[inputName(in)] {
			logger.Debug("Already present, skipping", "name", inputName(in))
			continue
		}
		if err := res.Create(ctx, token, in); err != nil {
			return err
		}
		logger.Info("Registered", "name", inputName(in))
	}
	return nil
}
