package coreapi

import "blocklytics/portal/pkg/models"

// ErrorResponse is the core API's standard error envelope. The error string is
// surfaced verbatim to the user for 4xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginResponse carries the session token, or a pending 2FA challenge when
// the account has a second factor enabled.
type LoginResponse struct {
	Token       string `json:"token,omitempty"`
	Requires2FA bool   `json:"requires_2fa,omitempty"`
	Error       string `json:"error,omitempty"`
}

// MessageResponse is a bare acknowledgement used by password recovery and
// notification mutations.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PreviewOrderResponse is the price breakdown for a quantity of API calls.
type PreviewOrderResponse = models.PricingPreview

// CreateOrderResponse returns the opaque key the payment gateway redirect
// carries as a query parameter.
type CreateOrderResponse struct {
	OrderID      string `json:"order_id,omitempty"`
	EncryptedKey string `json:"encrypted_key"`
}

// ListOrdersResponse is the order listing. The core API has returned both a
// bare array and a wrapped object over time; the client normalizes both.
type ListOrdersResponse struct {
	Orders []models.Order `json:"orders"`
}

// TicketDetailResponse is a ticket with its full message history.
type TicketDetailResponse struct {
	Ticket   models.Ticket          `json:"ticket"`
	Messages []models.TicketMessage `json:"messages"`
}

// CreateTicketResponse wraps a freshly created ticket.
type CreateTicketResponse struct {
	Ticket models.Ticket `json:"ticket"`
}
