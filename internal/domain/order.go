package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentQRCode         PaymentMethod = "QR Code"
	PaymentCashOnDelivery PaymentMethod = "Cash on Delivery"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentQRCode || m == PaymentCashOnDelivery
}

// OrderSubmission is built once per checkout attempt and never mutated
// after the API accepts it.
type OrderSubmission struct {
	IdempotencyKey  string
	LineItems       []CartLineItem
	ShippingAddress ShippingAddressDraft
	PaymentMethod   PaymentMethod
	PaymentProofRef string
	ItemsTotal      decimal.Decimal
	GrandTotal      decimal.Decimal
}

type Order struct {
	ID              string               `json:"_id"`
	Items           []CartLineItem       `json:"orderItems"`
	ShippingAddress ShippingAddressDraft `json:"shippingAddress"`
	PaymentMethod   PaymentMethod        `json:"paymentMethod"`
	PaymentProof    string               `json:"paymentProof,omitempty"`
	ItemsPrice      decimal.Decimal      `json:"itemsPrice"`
	TotalPrice      decimal.Decimal      `json:"totalPrice"`
	IsPaid          bool                 `json:"isPaid"`
	IsDelivered     bool                 `json:"isDelivered"`
	Status          string               `json:"status,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
}
