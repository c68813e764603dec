package coreapi

import "github.com/shopspring/decimal"

// LoginRequest is the credential exchange payload for POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Verify2FARequest completes a pending second-factor challenge.
type Verify2FARequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Resend2FARequest asks for a fresh OTP for a pending challenge.
type Resend2FARequest struct {
	Email string `json:"email"`
}

// ForgotPasswordRequest starts password recovery.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest sets a new password via a recovery token.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// PreviewOrderRequest asks for a price breakdown for a number of API calls.
type PreviewOrderRequest struct {
	APICalls int64 `json:"apiCalls"`
}

// CreateOrderRequest creates an order from the last previewed price. Amount is
// always 1 and currency always EUR - the quantity lives in APICallsQuantity.
type CreateOrderRequest struct {
	Amount           int             `json:"amount"`
	Currency         string          `json:"currency"`
	PriceEur         decimal.Decimal `json:"price_eur"`
	PriceBtc         decimal.Decimal `json:"price_btc"`
	APICallsQuantity int64           `json:"api_calls_quantity"`
}

// CreateTicketRequest opens a new support ticket.
type CreateTicketRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// TicketMessageRequest appends a message to an existing ticket.
type TicketMessageRequest struct {
	Message string `json:"message"`
}
