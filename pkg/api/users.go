package api

import (
	"context"
	"net/http"

	"github.com/appetiteclub/cakeshop/pkg/cake"
)

// CurrentUser validates token against the API. Any non-2xx answer means the
// token should be discarded.
func (c *Client) CurrentUser(ctx context.Context, token string) (*cake.User, error) {
	var u cake.User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/user", token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Profile(ctx context.Context, token string) (*cake.User, error) {
	var u cake.User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/user/profile", token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ClientProfile(ctx context.Context, token string) (*cake.User, error) {
	var u cake.User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/user/profile/client", token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateProfile(ctx context.Context, token string, id cake.ID, in cake.ProfileUpdate) error {
	return c.do(ctx, call{method: http.MethodPatch, path: "/user/profile/" + id.String(), token: token, body: in}, nil)
}

func (c *Client) UpdateClientProfile(ctx context.Context, token string, id cake.ID, in cake.ProfileUpdate) error {
	return c.do(ctx, call{method: http.MethodPatch, path: "/user/profile/client/" + id.String(), token: token, body: in}, nil)
}

// Customers lists the users staff can place orders for.
func (c *Client) Customers(ctx context.Context, token string) ([]cake.User, error) {
	var users []cake.User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/user/get", token: token}, &users); err != nil {
		return nil, err
	}
	return users, nil
}
