// Package coreapi is the typed HTTP client for the Blocklytics core API. All
// business logic (pricing, order lifecycle, reconciliation, ticket handling)
// lives upstream; the portal only reads, submits and renders.
package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	api "blocklytics/portal/pkg/api/coreapi"
	"blocklytics/portal/pkg/clients"
	"blocklytics/portal/pkg/logging"
	"blocklytics/portal/pkg/models"
)

// ErrUnavailable wraps transport-level failures. Handlers surface it as a
// generic human-readable message instead of the raw dial error.
var ErrUnavailable = errors.New("core API unavailable")

// APIError is a non-2xx response whose error field is surfaced to the user
// verbatim, matching how the portal has always displayed backend messages.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// UpstreamMetrics instruments core API calls. Both fields come from
// monitoring.CreateUpstreamMetrics; nil disables instrumentation.
type UpstreamMetrics struct {
	Requests *prometheus.CounterVec   // labels: operation, status
	Duration *prometheus.HistogramVec // labels: operation
}

// Client represents a core API client
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      logging.Logger
	retryConfig clients.RetryConfig
	metrics     *UpstreamMetrics
}

// Config represents the configuration for the core API client
type Config struct {
	BaseURL              string
	Timeout              time.Duration
	Logger               logging.Logger
	RetryConfig          *clients.RetryConfig
	CircuitBreakerConfig *clients.CircuitBreakerConfig
	Metrics              *UpstreamMetrics
}

// NewClient creates a new core API client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	retryConfig := clients.DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}

	if config.CircuitBreakerConfig != nil {
		retryConfig.CircuitBreaker = clients.NewCircuitBreaker(*config.CircuitBreakerConfig)
	}

	httpClient := &http.Client{
		Timeout:   config.Timeout,
		Transport: clients.DefaultTransport(),
	}

	return &Client{
		baseURL:     config.BaseURL,
		httpClient:  httpClient,
		logger:      config.Logger,
		retryConfig: retryConfig,
		metrics:     config.Metrics,
	}
}

// operationLabel collapses a request path to its first two segments so the
// metric label stays bounded regardless of ticket or order IDs in the path.
func operationLabel(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(segments) > 2 {
		path = "/" + segments[0] + "/" + segments[1]
	}
	return method + " " + path
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// do executes one API call and decodes the response into out (when non-nil).
// Non-2xx responses become *APIError with the upstream error field; transport
// failures wrap ErrUnavailable.
func (c *Client) do(ctx context.Context, method, path, token string, body interface{}, out interface{}, retry clients.RetryConfig) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	operation := operationLabel(method, path)
	start := time.Now()
	resp, err := clients.DoWithRetry(ctx, c.httpClient, req, retry)
	if c.metrics != nil {
		c.metrics.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.Requests.WithLabelValues(operation, "error").Inc()
		} else {
			c.metrics.Requests.WithLabelValues(operation, statusClass(resp.StatusCode)).Inc()
		}
	}
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).WithFields(logging.Fields{
				"method": method,
				"path":   path,
			}).Error("Core API call failed")
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp, method, path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) apiError(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var envelope api.ErrorResponse
	message := ""
	if err := json.Unmarshal(raw, &envelope); err == nil {
		message = envelope.Error
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	if c.logger != nil {
		c.logger.WithFields(logging.Fields{
			"status_code": resp.StatusCode,
			"method":      method,
			"path":        path,
			"response":    string(raw),
		}).Warn("Core API returned error")
	}

	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

// Authentication

// Login exchanges credentials for a session token, or a 2FA challenge.
func (c *Client) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	var out api.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/login", "", req, &out, clients.NoRetryConfig()); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify2FA completes a pending second-factor challenge.
func (c *Client) Verify2FA(ctx context.Context, req *api.Verify2FARequest) (*api.LoginResponse, error) {
	var out api.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/verify-2fa", "", req, &out, clients.NoRetryConfig()); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resend2FAOTP asks for a fresh one-time code.
func (c *Client) Resend2FAOTP(ctx context.Context, req *api.Resend2FARequest) error {
	return c.do(ctx, http.MethodPost, "/api/users/resend-2fa-otp", "", req, nil, clients.NoRetryConfig())
}

// ForgotPassword starts password recovery for an email address.
func (c *Client) ForgotPassword(ctx context.Context, req *api.ForgotPasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/api/users/forgot-password", "", req, nil, clients.NoRetryConfig())
}

// ResetPassword sets a new password via the emailed recovery token.
func (c *Client) ResetPassword(ctx context.Context, recoveryToken string, req *api.ResetPasswordRequest) error {
	path := "/api/users/reset-password/" + url.PathEscape(recoveryToken)
	return c.do(ctx, http.MethodPost, path, "", req, nil, clients.NoRetryConfig())
}

// Profile

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context, token string) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", token, nil, &out, c.retryConfig); err != nil {
		return nil, err
	}
	return &out, nil
}

// SecurityPreferences returns the user's security preference flags.
func (c *Client) SecurityPreferences(ctx context.Context, token string) (*models.SecurityPreferences, error) {
	var out models.SecurityPreferences
	if err := c.do(ctx, http.MethodGet, "/api/users/preferences/security", token, nil, &out, c.retryConfig); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreditBalance returns the remaining prepaid credit.
func (c *Client) CreditBalance(ctx context.Context, token string) (*models.CreditBalance, error) {
	var out models.CreditBalance
	if err := c.do(ctx, http.MethodGet, "/api/credit-balance", token, nil, &out, c.retryConfig); err != nil {
		return nil, err
	}
	return &out, nil
}

// Orders

// ListOrders returns all orders for the user. The upstream has returned both
// a bare array and an {"orders": [...]} wrapper over time; both are handled.
func (c *Client) ListOrders(ctx context.Context, token string) ([]models.Order, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/orders", token, nil, &raw, c.retryConfig); err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := json.Unmarshal(raw, &orders); err == nil {
		return orders, nil
	}

	var wrapped api.ListOrdersResponse
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode order list: %w", err)
	}
	return wrapped.Orders, nil
}

// PreviewOrder returns the price breakdown for a quantity of API calls.
// Never retried: a preview is cheap for the caller to re-request explicitly.
func (c *Client) PreviewOrder(ctx context.Context, token string, apiCalls int64) (*models.PricingPreview, error) {
	var out models.PricingPreview
	req := &api.PreviewOrderRequest{APICalls: apiCalls}
	if err := c.do(ctx, http.MethodPost, "/api/orders/preview", token, req, &out, clients.NoRetryConfig()); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder creates a pending order and returns the gateway redirect key.
// Never retried: there is no idempotency key, so a replay could create a
// duplicate pending order upstream.
func (c *Client) CreateOrder(ctx context.Context, token string, req *api.CreateOrderRequest) (*api.CreateOrderResponse, error) {
	var out api.CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, "/api/orders", token, req, &out, clients.NoRetryConfig()); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetInvoice clears the invoice number of an order whose payment window
// expired. The key is the same opaque key the gateway callback carries.
func (c *Client) ResetInvoice(ctx context.Context, key string) error {
	path := "/api/orders/reset-invoice?key=" + url.QueryEscape(key)
	return c.do(ctx, http.MethodPatch, path, "", nil, nil, clients.NoRetryConfig())
}

// ConfirmPayment finalizes an order after a successful gateway payment.
func (c *Client) ConfirmPayment(ctx context.Context, key string) error {
	path := "/payment/success?key=" + url.QueryEscape(key)
	return c.do(ctx, http.MethodGet, path, "", nil, nil, clients.NoRetryConfig())
}

// Reconciliations

// ListReconciliations returns all monthly reconciliations for the user.
func (c *Client) ListReconciliations(ctx context.Context, token string) ([]models.Reconciliation, error) {
	var out []models.Reconciliation
	if err := c.do(ctx, http.MethodGet, "/api/reconciliations", token, nil, &out, c.retryConfig); err != nil {
		return nil, err
	}
	return out, nil
}

// GetReconciliation returns one reconciliation with its order difference lines.
func (c *Client) GetReconciliation(ctx context.Context, token, id string) (*models.Reconciliation, error) {
	var out models.Reconciliation
	path := "/api/reconciliations/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out, c.retryConfig); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tickets

// ListTickets returns the user's support tickets.
func (c *Client) ListTickets(ctx context.Context, token string) ([]models.Ticket, error) {
	var out []models.Ticket
	if err := c.do(ctx, http.MethodGet, "/api/tickets", token, nil, &out, c.retryConfig); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTicket opens a new ticket with an initial message.
func (c *Client) CreateTicket(ctx context.Context, token string, req *api.CreateTicketRequest) (*models.Ticket, error) {
	var out api.CreateTicketResponse
	if err := c.do(ctx, http.MethodPost, "/api/tickets", token, req, &out, clients.NoRetryConfig()); err != nil {
		return nil, err
	}
	return &out.Ticket, nil
}

// GetTicket returns a ticket with its message history.
func (c *Client) GetTicket(ctx context.Context, token, id string) (*api.TicketDetailResponse, error) {
	var out api.TicketDetailResponse
	path := "/api/tickets/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out, c.retryConfig); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTicketStatus changes a ticket's status (e.g. closing it).
func (c *Client) UpdateTicketStatus(ctx context.Context, token, id, status string) error {
	path := "/api/tickets/" + url.PathEscape(id)
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPut, path, token, body, nil, clients.NoRetryConfig())
}

// DeleteTicket removes a ticket.
func (c *Client) DeleteTicket(ctx context.Context, token, id string) error {
	path := "/api/tickets/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, token, nil, nil, clients.NoRetryConfig())
}

// AddTicketMessage appends a user message to a ticket.
func (c *Client) AddTicketMessage(ctx context.Context, token, id string, req *api.TicketMessageRequest) error {
	path := "/api/tickets/" + url.PathEscape(id) + "/messages"
	return c.do(ctx, http.MethodPost, path, token, req, nil, clients.NoRetryConfig())
}

// RequestAssistantReply triggers the upstream automated reply assistant for a
// ticket. The reply lands in the ticket's message history; fetch it afterwards.
func (c *Client) RequestAssistantReply(ctx context.Context, token, id string) error {
	path := "/api/tickets/" + url.PathEscape(id) + "/chatgpt-reply"
	return c.do(ctx, http.MethodPost, path, token, struct{}{}, nil, clients.NoRetryConfig())
}

// Notifications

// ListNotifications returns the user's notification feed.
func (c *Client) ListNotifications(ctx context.Context, token string) ([]models.Notification, error) {
	var out []models.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", token, nil, &out, c.retryConfig); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkAllNotificationsRead marks every notification as seen.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/mark-all-read", token, nil, nil, clients.NoRetryConfig())
}

// MarkNotificationSeen marks one notification as seen.
func (c *Client) MarkNotificationSeen(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/seen", token, nil, nil, clients.NoRetryConfig())
}

// ArchiveNotification moves a notification to the archive.
func (c *Client) ArchiveNotification(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/archive", token, nil, nil, clients.NoRetryConfig())
}

// UnarchiveNotification restores an archived notification.
func (c *Client) UnarchiveNotification(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/unarchive", token, nil, nil, clients.NoRetryConfig())
}

// DeleteNotification permanently removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), token, nil, nil, clients.NoRetryConfig())
}
