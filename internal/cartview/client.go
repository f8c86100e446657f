package cartview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"storefront/internal/domain"
)

// APIError is a non-2xx response from the cart API.
type APIError struct {
	Status  int                 `json:"status"`
	Code    string              `json:"error"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cart api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the status onto the domain sentinels so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusConflict:
		return domain.ErrEmptyCart
	}
	return nil
}

// HTTPClient implements Backend against the storefront HTTP API. Its cookie jar keeps
// the guest session cookie the server issues on the first mutation.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewHTTPClient builds a client for baseURL. A nil hc gets a fresh client with a jar.
func NewHTTPClient(baseURL string, hc *http.Client) (*HTTPClient, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if hc == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}, nil
}

// SetAccessToken sends token as a bearer credential on later calls. Empty clears it.
func (c *HTTPClient) SetAccessToken(token string) {
	c.token = token
}

func (c *HTTPClient) Get(ctx context.Context) (domain.CartView, error) {
	return c.do(ctx, http.MethodGet, "/cart", nil)
}

func (c *HTTPClient) Add(ctx context.Context, variantID string, quantity int) (domain.CartView, error) {
	return c.do(ctx, http.MethodPost, "/cart/items", map[string]any{"variantId": variantID, "quantity": quantity})
}

func (c *HTTPClient) Update(ctx context.Context, itemID string, quantity int) (domain.CartView, error) {
	return c.do(ctx, http.MethodPatch, "/cart/items/"+url.PathEscape(itemID), map[string]any{"quantity": quantity})
}

func (c *HTTPClient) Remove(ctx context.Context, itemID string) (domain.CartView, error) {
	return c.do(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(itemID), nil)
}

func (c *HTTPClient) Clear(ctx context.Context) (domain.CartView, error) {
	return c.do(ctx, http.MethodDelete, "/cart", nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (domain.CartView, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return domain.CartView{}, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.CartView{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.CartView{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.CartView{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(payload, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(payload))
		}
		apiErr.Status = resp.StatusCode
		return domain.CartView{}, apiErr
	}

	var view domain.CartView
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &view); err != nil {
			return domain.CartView{}, fmt.Errorf("decode cart: %w", err)
		}
	}
	if view.Items == nil {
		view.Items = []domain.CartItemView{}
	}
	return view, nil
}
