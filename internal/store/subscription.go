package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tcobb/launchbase/internal/model"
)

type SubscriptionStore struct {
	db DBTX
}

func NewSubscriptionStore(db DBTX) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var cancelAtPeriodEnd int
	var canceledAt, endedAt, trialStart, trialEnd sql.NullTime
	err := scanner.Scan(
		&sub.ID, &sub.UserID, &sub.Status, &sub.PriceID, &sub.Quantity,
		&cancelAtPeriodEnd, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&canceledAt, &endedAt, &trialStart, &trialEnd,
		&sub.Metadata, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd != 0
	if canceledAt.Valid {
		sub.CanceledAt = &canceledAt.Time
	}
	if endedAt.Valid {
		sub.EndedAt = &endedAt.Time
	}
	if trialStart.Valid {
		sub.TrialStart = &trialStart.Time
	}
	if trialEnd.Valid {
		sub.TrialEnd = &trialEnd.Time
	}
	return &sub, nil
}

const subscriptionCols = `id, user_id, status, price_id, quantity, cancel_at_period_end, current_period_start, current_period_end, canceled_at, ended_at, trial_start, trial_end, metadata, created_at, updated_at`

// Upsert inserts the subscription row or, when a row with the same Stripe
// subscription ID exists, overwrites all mutable fields. The invariant is at
// most one row per external subscription ID.
func (s *SubscriptionStore) Upsert(sub *model.Subscription) error {
	metadata := sub.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	cancelAtPeriodEnd := 0
	if sub.CancelAtPeriodEnd {
		cancelAtPeriodEnd = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (
			id, user_id, status, price_id, quantity, cancel_at_period_end,
			current_period_start, current_period_end, canceled_at, ended_at,
			trial_start, trial_end, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			status = excluded.status,
			price_id = excluded.price_id,
			quantity = excluded.quantity,
			cancel_at_period_end = excluded.cancel_at_period_end,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			canceled_at = excluded.canceled_at,
			ended_at = excluded.ended_at,
			trial_start = excluded.trial_start,
			trial_end = excluded.trial_end,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP`,
		sub.ID, sub.UserID, sub.Status, sub.PriceID, sub.Quantity, cancelAtPeriodEnd,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CanceledAt, sub.EndedAt,
		sub.TrialStart, sub.TrialEnd, metadata,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) GetByID(id string) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// GetByUserID returns the user's most recent subscription, or nil.
func (s *SubscriptionStore) GetByUserID(userID string) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		userID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by user: %w", err)
	}
	return sub, nil
}

// MarkCanceled closes the subscription row: terminal status plus an ended_at
// stamp. The row is never physically removed.
func (s *SubscriptionStore) MarkCanceled(id string, endedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET status = ?, ended_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.SubscriptionStatusCanceled, endedAt, id,
	)
	if err != nil {
		return fmt.Errorf("mark subscription canceled: %w", err)
	}
	return nil
}
