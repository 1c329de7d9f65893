// Package invoice defines the gateway-owned payment data model as seen by the
// console: invoices with a status lifecycle, store currency configurations,
// and locked exchange-rate snapshots. All of it is read from the backend;
// the console never mutates an invoice except through the generate-address call.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the backend-driven invoice lifecycle state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusConfirming      Status = "confirming"
	StatusPaid            Status = "paid"
	StatusExpired         Status = "expired"
	StatusCancelled       Status = "cancelled"
	StatusRefunded        Status = "refunded"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAwaitingPayment, StatusConfirming,
		StatusPaid, StatusExpired, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether the backend will drive no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusExpired, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Invoice is a merchant-issued payment request tracked by the gateway backend.
// PaymentAddress and ExpiresAt are immutable once set for a payment attempt;
// a fresh attempt requires a fresh address-generation call.
type Invoice struct {
	ID             string           `json:"id"`
	OrderID        string           `json:"orderId"`
	StoreID        string           `json:"storeId"`
	FiatAmount     decimal.Decimal  `json:"fiatAmount"`
	FiatCurrency   string           `json:"fiatCurrency"`
	CryptoAmount   *decimal.Decimal `json:"cryptoAmount,omitempty"`
	CryptoCurrency string           `json:"cryptoCurrency,omitempty"`
	Status         Status           `json:"status"`
	PaymentAddress string           `json:"paymentAddress,omitempty"`
	NetworkID      string           `json:"networkId,omitempty"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
	Rates          []Rate           `json:"rates,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// HasAddress reports whether a deposit address has been minted for the
// current payment attempt.
func (inv *Invoice) HasAddress() bool {
	return inv.PaymentAddress != ""
}

// Rate is an exchange rate locked by the backend at invoice-rate-lock time.
// PayerAmount is the authoritative payer-facing crypto amount and takes
// display precedence over anything computed client-side.
type Rate struct {
	CurrencyID  string          `json:"currencyId"`
	NetworkID   string          `json:"networkId"`
	Rate        decimal.Decimal `json:"rate"`
	PayerAmount decimal.Decimal `json:"payerAmount"`
}

// StoreCurrency is a store's configuration for accepting one currency on one
// network, with fiat-equivalent amount bounds.
type StoreCurrency struct {
	ID         string          `json:"id"`
	CurrencyID string          `json:"currencyId"`
	Symbol     string          `json:"symbol"`
	NetworkID  string          `json:"networkId"`
	Decimals   int32           `json:"decimals"`
	MinAmount  decimal.Decimal `json:"minAmount"`
	MaxAmount  decimal.Decimal `json:"maxAmount"`
	Enabled    bool            `json:"isEnabled"`
}
