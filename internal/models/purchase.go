package models

import "time"

type PurchaseStatus string

const (
	PurchasePending  PurchaseStatus = "pending"
	PurchasePaid     PurchaseStatus = "paid"
	PurchaseActive   PurchaseStatus = "active"
	PurchaseCanceled PurchaseStatus = "canceled"
)

// Purchase records one report sale or subscription, keyed by an opaque id
// that travels through billing metadata.
type Purchase struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	Plan           string         `json:"plan"`
	Status         PurchaseStatus `json:"status"`
	StripeCustomer string         `json:"stripe_customer,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Chattable reports whether the purchase grants chat access.
func (p *Purchase) Chattable() bool {
	return p != nil && (p.Status == PurchasePaid || p.Status == PurchaseActive)
}
