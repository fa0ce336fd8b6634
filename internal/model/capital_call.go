package model

import "time"

// Capital call lifecycle states.
const (
	CallStatusPending    = "pending"
	CallStatusProcessing = "processing"
	CallStatusSettled    = "settled"
	CallStatusFailed     = "failed"
)

// CapitalCall is a request for an LP to wire committed capital, collected
// via ACH debit through Stripe.
type CapitalCall struct {
	ID              string
	OrgID           int64
	InvestorID      int64
	AmountCents     int64
	Currency        string
	Status          string
	PaymentIntentID string
	DueDate         time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
