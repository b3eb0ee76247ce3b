package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
)

var (
	// ErrMissingToken is returned before any request is issued when an
	// authenticated call is attempted without a bearer token.
	ErrMissingToken = errors.New("missing token")
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status: %d", e.Method, e.Path, e.Code)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// IsUnauthorized reports whether the API rejected the bearer token.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden)
}

// Client talks to the cake shop REST API. Requests go through apt's HTTP
// client, which carries the request id; the bearer token rides on the request
// context and is set by bearerTransport.
type Client struct {
	http   *apt.HTTPClient
	logger apt.Logger
}

// NewClient creates a client from api.url and api.timeout.
func NewClient(config *apt.Config, logger apt.Logger) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	baseURL, _ := config.GetString("api.url")
	if baseURL == "" {
		return nil, fmt.Errorf("api.url not configured")
	}

	timeout := 10 * time.Second
	if raw := config.GetStringOrDef("api.timeout", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid api.timeout: %w", err)
		}
		timeout = d
	}

	return New(baseURL, &http.Client{Timeout: timeout}, logger), nil
}

// New creates a client for baseURL. A nil httpClient gets a 10s timeout.
// Failed calls are never retried.
func New(baseURL string, httpClient *http.Client, logger apt.Logger) *Client {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	hc := apt.NewHTTPClient(apt.HTTPClientConfig{BaseURL: strings.TrimRight(baseURL, "/")})
	// NewHTTPClient turns a zero MaxRetries into its default.
	hc.MaxRetries = 0
	if httpClient != nil {
		c := *httpClient
		hc.HTTPClient = &c
	}
	hc.HTTPClient.Transport = &bearerTransport{base: hc.HTTPClient.Transport}

	return &Client{http: hc, logger: logger}
}

type tokenKey struct{}

func withToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// bearerTransport sets the Authorization header from the request context.
type bearerTransport struct {
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	token, _ := req.Context().Value(tokenKey{}).(string)
	if token == "" {
		return base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(req)
}

type call struct {
	method string
	path   string
	token  string
	query  url.Values
	body   interface{}
	public bool
}

func (c *Client) do(ctx context.Context, cl call, out interface{}) error {
	if !cl.public && cl.token == "" {
		c.logger.Debug("skipping request without token", "method", cl.method, "path", cl.path)
		return ErrMissingToken
	}
	if cl.token != "" {
		ctx = withToken(ctx, cl.token)
	}

	p := "/" + strings.TrimLeft(cl.path, "/")
	if len(cl.query) > 0 {
		p += "?" + cl.query.Encode()
	}

	var err error
	switch cl.method {
	case http.MethodGet:
		err = c.http.Get(ctx, p, out)
	case http.MethodPost:
		err = c.http.Post(ctx, p, cl.body, out)
	case http.MethodPut:
		err = c.http.Put(ctx, p, cl.body, out)
	case http.MethodPatch:
		err = c.http.Patch(ctx, p, cl.body, out)
	case http.MethodDelete:
		err = c.http.Delete(ctx, p)
	default:
		return fmt.Errorf("unsupported method %s", cl.method)
	}
	return c.mapError(cl, err)
}

// mapError turns apt's HTTP errors into StatusError. An empty body on a call
// that expects one is not an error.
func (c *Client) mapError(cl call, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) && strings.HasPrefix(err.Error(), "decode response") {
		return nil
	}
	var he *apt.HTTPError
	if errors.As(err, &he) {
		return &StatusError{Method: cl.method, Path: cl.path, Code: he.StatusCode}
	}
	return err
}
