// Package gatewayapi is the HTTP client for the payment gateway backend.
//
// The console is a pure presentation layer: every read and mutation goes
// through this client. Responses arrive in a {"data": ...} envelope which is
// unwrapped explicitly: a response that doesn't match the envelope shape is
// a decode error, never a silent structural guess.
package gatewayapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/payforge/console/internal/invoice"
	"github.com/payforge/console/internal/metrics"
	"github.com/payforge/console/internal/traces"
)

// SessionCookie is the name of the gateway session cookie relayed from the
// browser on authenticated console requests.
const SessionCookie = "pf_session"

// ErrUnauthorized is returned when the backend rejects the session (401).
// Middleware translates it into a login redirect.
var ErrUnauthorized = errors.New("gateway session missing or expired")

// APIError is a non-2xx response from the backend with a decoded error payload.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("gateway: unexpected status %d", e.Status)
}

// Client calls the payment gateway backend API.
type Client struct {
	baseURL    string
	apiKey     string // server-to-server key for public payment page calls
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a gateway API client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the backend's standard JSON response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error,omitempty"`
}

// do performs one backend call: marshal body, send, unwrap envelope into out.
// sessionToken, when non-empty, is relayed as the gateway session cookie.
func (c *Client) do(ctx context.Context, operation, method, path string, sessionToken string, body, out any) error {
	ctx, span := traces.StartSpan(ctx, "gateway."+operation, traces.Operation(operation))
	defer span.End()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sessionToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.GatewayRequestsTotal.WithLabelValues(operation, statusResult(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode response envelope: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Code: "unexpected_status"}
		}
		apiErr.Status = resp.StatusCode
		c.logger.Warn("gateway call failed",
			"operation", operation,
			"status", resp.StatusCode,
			"code", apiErr.Code,
		)
		return apiErr
	}

	if out != nil {
		if env.Data == nil {
			return fmt.Errorf("decode response envelope: missing data field")
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}

	return nil
}

func statusResult(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "ok"
	case code == http.StatusUnauthorized:
		return "unauthorized"
	case code >= 400 && code < 500:
		return "client_error"
	default:
		return "server_error"
	}
}

// -----------------------------------------------------------------------------
// Payment page operations (server-to-server, no user session)
// -----------------------------------------------------------------------------

// GetInvoice fetches an invoice by id.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	path := "/v1/invoices/" + url.PathEscape(invoiceID)
	if err := c.do(ctx, "get_invoice", http.MethodGet, path, "", nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetStoreCurrencies fetches the currency configurations for a store.
// The enabled flag is returned as-is; filtering is the caller's concern.
func (c *Client) GetStoreCurrencies(ctx context.Context, storeID string) ([]invoice.StoreCurrency, error) {
	var out []invoice.StoreCurrency
	path := "/v1/stores/" + url.PathEscape(storeID) + "/currencies"
	if err := c.do(ctx, "get_store_currencies", http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateAddress asks the backend to mint a deposit address for the invoice.
// On success the backend returns the updated invoice with paymentAddress and
// expiresAt populated.
func (c *Client) GenerateAddress(ctx context.Context, invoiceID, token, network string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	path := "/v1/invoices/" + url.PathEscape(invoiceID) + "/address"
	body := map[string]string{
		"token":   token,
		"network": network,
	}
	if err := c.do(ctx, "generate_address", http.MethodPost, path, "", body, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Ping checks backend reachability (used by health checks).
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/v1/ping", "", nil, nil)
}

// -----------------------------------------------------------------------------
// Console operations (relayed user session)
// -----------------------------------------------------------------------------

// User is the authenticated console user as reported by the backend.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"` // "merchant" or "admin"
}

// Store is a merchant store summary.
type Store struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Login exchanges credentials for a gateway session token.
// The token is relayed back to the browser as a cookie by the caller.
func (c *Client) Login(ctx context.Context, email, password string) (*User, string, error) {
	var out struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "login", http.MethodPost, "/v1/auth/login", "", body, &out); err != nil {
		return nil, "", err
	}
	return &out.User, out.Token, nil
}

// Logout invalidates the gateway session.
func (c *Client) Logout(ctx context.Context, sessionToken string) error {
	return c.do(ctx, "logout", http.MethodPost, "/v1/auth/logout", sessionToken, nil, nil)
}

// CurrentUser resolves the session token to a user. Returns ErrUnauthorized
// when the session is missing or expired.
func (c *Client) CurrentUser(ctx context.Context, sessionToken string) (*User, error) {
	var u User
	if err := c.do(ctx, "current_user", http.MethodGet, "/v1/auth/me", sessionToken, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListStores returns the stores the session user can manage.
func (c *Client) ListStores(ctx context.Context, sessionToken string) ([]Store, error) {
	var out []Store
	if err := c.do(ctx, "list_stores", http.MethodGet, "/v1/stores", sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListInvoices returns invoices, optionally scoped to one store.
// Admin sessions may pass an empty storeID for a cross-store view.
func (c *Client) ListInvoices(ctx context.Context, sessionToken, storeID string, limit int) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	q := url.Values{}
	if storeID != "" {
		q.Set("storeId", storeID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/invoices"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	if err := c.do(ctx, "list_invoices", http.MethodGet, path, sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStoreCurrency toggles or re-bounds a store currency configuration.
func (c *Client) UpdateStoreCurrency(ctx context.Context, sessionToken, storeID string, sc invoice.StoreCurrency) (*invoice.StoreCurrency, error) {
	var out invoice.StoreCurrency
	path := "/v1/stores/" + url.PathEscape(storeID) + "/currencies/" + url.PathEscape(sc.ID)
	if err := c.do(ctx, "update_store_currency", http.MethodPut, path, sessionToken, sc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
