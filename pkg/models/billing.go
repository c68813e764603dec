package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status values as reported by the core API. Status alone decides which
// affordances (invoice download, retry) the portal offers.
const (
	OrderStatusPending  = "pending"
	OrderStatusPaid     = "paid"
	OrderStatusCanceled = "canceled"
	OrderStatusTimeout  = "timeout"
	OrderStatusFailed   = "failed"
)

// PricingPreview is the core API's price breakdown for a requested number of
// API calls. It is transient wizard state and never persisted.
type PricingPreview struct {
	APICalls      int64           `json:"apiCalls"`
	UnitPriceEur  decimal.Decimal `json:"unitPrice"`
	SubtotalEur   decimal.Decimal `json:"subtotal"`
	TaxPercentage decimal.Decimal `json:"taxPercentage"`
	TotalEur      decimal.Decimal `json:"total"`
	TotalBtc      decimal.Decimal `json:"btc"`
}

// Order represents a backend-owned order record, read-only on the portal side.
type Order struct {
	ID               string          `json:"id"`
	OrderNumber      string          `json:"order_number"`
	InvoiceNumber    string          `json:"invoice_number,omitempty"`
	Status           string          `json:"status"`
	PriceEur         decimal.Decimal `json:"price_eur"`
	PriceBtc         decimal.Decimal `json:"price_btc"`
	APICallsQuantity int64           `json:"api_calls_quantity"`
	EncryptedKey     string          `json:"encrypted_key,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Reconciliation status values
const (
	ReconciliationStatusCredited        = "credited"
	ReconciliationStatusSettled         = "settled"
	ReconciliationStatusPaymentRequired = "payment_required"
	ReconciliationStatusPending         = "pending"
)

// Reconciliation is a monthly BTC/EUR reconciliation owned by the core API.
// The month is formatted YYYY-MM.
type Reconciliation struct {
	ID                 string                `json:"id"`
	Month              string                `json:"month"`
	TotalOrders        int                   `json:"total_orders"`
	TotalOrderEur      decimal.Decimal       `json:"total_order_eur"`
	TotalOrderBtc      decimal.Decimal       `json:"total_order_btc"`
	TotalWalletBtc     decimal.Decimal       `json:"total_wallet_btc"`
	AvgBtcRate         decimal.Decimal       `json:"avg_btc_rate"`
	TotalDifferenceEur decimal.Decimal       `json:"total_difference_eur"`
	Status             string                `json:"status"`
	InvoiceURL         string                `json:"invoice_url,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	Orders             []OrderDifferenceLine `json:"orders,omitempty"`
}

// OrderDifferenceLine is one order's contribution to a reconciliation:
// the BTC requested at checkout versus the BTC that arrived on-chain.
type OrderDifferenceLine struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	OrderDate     time.Time       `json:"order_date"`
	OrderBtc      decimal.Decimal `json:"order_btc"`
	WalletBtc     decimal.Decimal `json:"wallet_btc"`
	BtcRate       decimal.Decimal `json:"btc_rate"`
	DifferenceEur decimal.Decimal `json:"difference_eur"`
}

// CreditBalance is the remaining prepaid API-call credit for a user.
type CreditBalance struct {
	Credits   int64     `json:"credits"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
