package model

import "time"

// Terminal subscription status after which no further billing events are
// expected for the subscription.
const SubscriptionStatusCanceled = "canceled"

// Subscription mirrors a Stripe subscription. The Stripe subscription ID is
// the primary key; there is no independent local identity.
type Subscription struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Status             string     `json:"status"`
	PriceID            string     `json:"price_id"`
	Quantity           int64      `json:"quantity"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	CanceledAt         *time.Time `json:"canceled_at"`
	EndedAt            *time.Time `json:"ended_at"`
	TrialStart         *time.Time `json:"trial_start"`
	TrialEnd           *time.Time `json:"trial_end"`
	Metadata           string     `json:"metadata"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Product and Price mirror the Stripe catalog. They are reference data read
// by the pricing pages and never written by the webhook flow.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Price struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Active        bool      `json:"active"`
	Currency      string    `json:"currency"`
	UnitAmount    int64     `json:"unit_amount"`
	Interval      string    `json:"interval"`
	IntervalCount int64     `json:"interval_count"`
	Plan          string    `json:"plan"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
