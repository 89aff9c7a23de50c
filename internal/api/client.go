package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chatter-client/internal/shared/httpx"
)

var (
	// ErrTransport wraps every failure that happened before a response arrived.
	ErrTransport = errors.New("api: transport failure")
	// ErrInvalidPayload wraps responses that decoded but failed validation.
	ErrInvalidPayload = errors.New("api: invalid payload")
)

// Error is a non-2xx response.
type Error struct {
	Status  int
	Message string
	Reason  string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *Error) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

// ErrorText returns text fit to show a user: the server's message for API
// errors, fallback for everything else.
func ErrorText(err error, fallback string) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}

type Client struct {
	base           string
	http           *http.Client
	token          func() string
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithToken sets the source of the bearer credential attached to requests.
func WithToken(fn func() string) Option { return func(c *Client) { c.token = fn } }

// OnUnauthorized registers the hook run on every 401 response.
func OnUnauthorized(fn func()) Option { return func(c *Client) { c.onUnauthorized = fn } }

func New(base string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(base, "/"),
		http:  httpx.NewClient(15 * time.Second),
		token: func() string { return "" },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.base + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	httpx.SetBearer(req, c.token())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", r.method, r.path, ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ae := httpx.ReadError(resp)
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &Error{Status: resp.StatusCode, Message: ae.Text(), Reason: ae.Reason}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := httpx.ExpectJSON(resp); err != nil {
		return fmt.Errorf("%s %s: %w: %w", r.method, r.path, ErrInvalidPayload, err)
	}
	if err := httpx.DecodeInto(resp.Body, out); err != nil {
		return fmt.Errorf("%s %s: %w: %w", r.method, r.path, ErrInvalidPayload, err)
	}
	return nil
}

type validator interface{ validate() error }

// validList checks every decoded item before the slice reaches a store.
func validList[T any, P interface {
	*T
	validator
}](items []T) ([]T, error) {
	for i := range items {
		if err := P(&items[i]).validate(); err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrInvalidPayload, i, err)
		}
	}
	return items, nil
}

func valid[T any, P interface {
	*T
	validator
}](v T) (T, error) {
	if err := P(&v).validate(); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return v, nil
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func jsonRequest(method, path string, v any) (request, error) {
	body, ct, err := httpx.JSONBody(v)
	if err != nil {
		return request{}, err
	}
	return request{method: method, path: path, body: body, contentType: ct}, nil
}

func seg(s string) string { return url.PathEscape(s) }
