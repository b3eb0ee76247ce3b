package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/appetiteclub/cakeshop/pkg/cake"
)

func (c *Client) RegisterOrder(ctx context.Context, token string, req cake.OrderRequest) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/orders/register", token: token, body: req}, nil)
}

func (c *Client) Order(ctx context.Context, token string, id cake.ID) (*cake.Order, error) {
	var o cake.Order
	if err := c.do(ctx, call{method: http.MethodGet, path: "/orders/" + id.String(), token: token}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) OrdersByStatus(ctx context.Context, token, status string) ([]cake.Order, error) {
	return c.listOrders(ctx, token, "/orders/by-status", url.Values{"status": {status}})
}

// OrdersByDeliveryDate lists orders in status due on date (YYYY-MM-DD).
func (c *Client) OrdersByDeliveryDate(ctx context.Context, token, date, status string) ([]cake.Order, error) {
	return c.listOrders(ctx, token, "/orders/by-delivery-date", url.Values{"date": {date}, "status": {status}})
}

func (c *Client) OrdersByUser(ctx context.Context, token string, userID cake.ID) ([]cake.Order, error) {
	return c.listOrders(ctx, token, "/orders/by-user", url.Values{"userId": {userID.String()}})
}

func (c *Client) UpdateOrderStatus(ctx context.Context, token string, id cake.ID, status string) error {
	return c.do(ctx, call{
		method: http.MethodPatch,
		path:   "/orders/update-status/" + id.String(),
		token:  token,
		query:  url.Values{"status": {status}},
	}, nil)
}

func (c *Client) listOrders(ctx context.Context, token, path string, q url.Values) ([]cake.Order, error) {
	var orders []cake.Order
	if err := c.do(ctx, call{method: http.MethodGet, path: path, token: token, query: q}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
