package api

import (
	"context"
	"net/http"

	"github.com/appetiteclub/cakeshop/pkg/cake"
)

// Resource is a catalog collection exposed by the API with list, register,
// update and delete endpoints.
type Resource[T any, I any] struct {
	client       *Client
	collection   string
	registerPath string
}

func (r *Resource[T, I]) List(ctx context.Context, token string) ([]T, error) {
	var items []T
	if err := r.client.do(ctx, call{method: http.MethodGet, path: r.collection, token: token}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Resource[T, I]) Create(ctx context.Context, token string, in I) error {
	return r.client.do(ctx, call{method: http.MethodPost, path: r.registerPath, token: token, body: in}, nil)
}

func (r *Resource[T, I]) Update(ctx context.Context, token string, id cake.ID, in I) error {
	return r.client.do(ctx, call{method: http.MethodPut, path: r.collection + "/" + id.String(), token: token, body: in}, nil)
}

func (r *Resource[T, I]) Delete(ctx context.Context, token string, id cake.ID) error {
	return r.client.do(ctx, call{method: http.MethodDelete, path: r.collection + "/" + id.String(), token: token}, nil)
}

func (c *Client) Models() *Resource[cake.Model, cake.ModelInput] {
	return &Resource[cake.Model, cake.ModelInput]{client: c, collection: "/cake/models", registerPath: "/cake/models/register"}
}

func (c *Client) Fillings() *Resource[cake.Filling, cake.FillingInput] {
	return &Resource[cake.Filling, cake.FillingInput]{client: c, collection: "/cake/fillings", registerPath: "/cake/fillings/register"}
}

// Complements registers through the singular /cake/complement/register path;
// every other complement endpoint is plural.
func (c *Client) Complements() *Resource[cake.Complement, cake.ComplementInput] {
	return &Resource[cake.Complement, cake.ComplementInput]{client: c, collection: "/cake/complements", registerPath: "/cake/complement/register"}
}

func (c *Client) PaymentMethods() *Resource[cake.PaymentMethod, cake.PaymentMethodInput] {
	return &Resource[cake.PaymentMethod, cake.PaymentMethodInput]{client: c, collection: "/cake/payment-methods", registerPath: "/cake/payment-methods/register"}
}

func (c *Client) Categories() *Resource[cake.Category, cake.CategoryInput] {
	return &Resource[cake.Category, cake.CategoryInput]{client: c, collection: "/cake/category", registerPath: "/cake/category/register"}
}

// ModelsWithCategory lists models with their category embedded, the feed of
// the customer catalog.
func (c *Client) ModelsWithCategory(ctx context.Context, token string) ([]cake.Model, error) {
	var models []cake.Model
	if err := c.do(ctx, call{method: http.MethodGet, path: "/cake/models/category", token: token}, &models); err != nil {
		return nil, err
	}
	return models, nil
}
