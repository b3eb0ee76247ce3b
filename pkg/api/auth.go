package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/appetiteclub/cakeshop/pkg/cake"
)

type tokenResponse struct {
	Token string `json:"token"`
}

// Login authenticates a staff member and returns their bearer token.
func (c *Client) Login(ctx context.Context, creds cake.Credentials) (string, error) {
	return c.login(ctx, "/auth/login", creds)
}

// LoginClient authenticates a customer and returns their bearer token.
func (c *Client) LoginClient(ctx context.Context, creds cake.Credentials) (string, error) {
	return c.login(ctx, "/auth/login_client", creds)
}

func (c *Client) login(ctx context.Context, path string, creds cake.Credentials) (string, error) {
	var resp tokenResponse
	err := c.do(ctx, call{method: http.MethodPost, path: path, body: creds, public: true}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%s: empty token in response", path)
	}
	return resp.Token, nil
}

// RegisterClient creates a customer account.
func (c *Client) RegisterClient(ctx context.Context, reg cake.Registration) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/register_client", body: reg, public: true}, nil)
}
