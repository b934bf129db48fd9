package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPaid           OrderStatus = "paid"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusConfirmed, OrderStatusPaid:
		return true
	}
	return false
}

// User is keyed by the identity provider's subject claim.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthToken struct {
	Token     string     `json:"-"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type OrderItem struct {
	ProductKey string         `json:"product_type"`
	Quantity   int            `json:"quantity"`
	Options    map[string]any `json:"options,omitempty"`
}

// OrderRequest is a candidate order as submitted by a customer, before it
// has an identifier or a status.
type OrderRequest struct {
	Customer       CustomerInfo `json:"customer"`
	PickupDatetime time.Time    `json:"pickup_datetime"`
	Items          []OrderItem  `json:"items"`
}

type Order struct {
	ID               string       `json:"id"`
	Customer         CustomerInfo `json:"customer"`
	PickupDatetime   time.Time    `json:"pickup_datetime"`
	Items            []OrderItem  `json:"items"`
	CreatedAt        time.Time    `json:"created_at"`
	Status           OrderStatus  `json:"status"`
	UserID           *string      `json:"user_id"`
	PaymentReference *string      `json:"payment_reference"`
}

type PaymentSessionStatus string

const PaymentSessionPending PaymentSessionStatus = "pending"

// PaymentProviderManual marks sessions settled through the confirm endpoint.
const PaymentProviderManual = "manual"

// PaymentSession is handed back from checkout. No external payment provider
// sits behind it; the session only carries the amount due.
type PaymentSession struct {
	SessionID string               `json:"session_id"`
	Provider  string               `json:"provider"`
	Status    PaymentSessionStatus `json:"status"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  string               `json:"currency"`
}
