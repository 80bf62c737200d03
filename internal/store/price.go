package store

import (
	"database/sql"
	"fmt"

	"github.com/tcobb/launchbase/internal/model"
)

// PlanListing joins a price with its product for the pricing pages.
type PlanListing struct {
	Plan        string
	Name        string
	Description string
	PriceID     string
	UnitAmount  int64
	Currency    string
	Interval    string
}

type PriceStore struct {
	db DBTX
}

func NewPriceStore(db DBTX) *PriceStore {
	return &PriceStore{db: db}
}

func (s *PriceStore) GetByID(id string) (*model.Price, error) {
	row := s.db.QueryRow(
		`SELECT id, product_id, active, currency, unit_amount, interval, interval_count, plan, created_at, updated_at
		 FROM prices WHERE id = ?`, id,
	)
	var p model.Price
	var active int
	err := row.Scan(
		&p.ID, &p.ProductID, &active, &p.Currency, &p.UnitAmount,
		&p.Interval, &p.IntervalCount, &p.Plan, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	p.Active = active != 0
	return &p, nil
}

// ListActivePlans returns the purchasable plans, cheapest first.
func (s *PriceStore) ListActivePlans() ([]*PlanListing, error) {
	rows, err := s.db.Query(
		`SELECT pr.plan, p.name, p.description, pr.id, pr.unit_amount, pr.currency, pr.interval
		 FROM prices pr
		 JOIN products p ON p.id = pr.product_id
		 WHERE pr.active = 1 AND p.active = 1
		 ORDER BY pr.unit_amount ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}
	defer rows.Close()

	var plans []*PlanListing
	for rows.Next() {
		var pl PlanListing
		if err := rows.Scan(&pl.Plan, &pl.Name, &pl.Description, &pl.PriceID, &pl.UnitAmount, &pl.Currency, &pl.Interval); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, &pl)
	}
	return plans, rows.Err()
}
