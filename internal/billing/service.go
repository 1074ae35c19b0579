package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reportchat/internal/models"
)

// Service persists purchases and inbound billing events.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreatePurchase records a pending purchase before payment is attempted.
func (s *Service) CreatePurchase(ctx context.Context, email, plan string) (*models.Purchase, error) {
	if email == "" {
		return nil, errors.New("email required")
	}
	now := time.Now().UTC()
	p := &models.Purchase{
		ID:        uuid.NewString(),
		Email:     email,
		Plan:      plan,
		Status:    models.PurchasePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO purchases (id, email, plan, status, stripe_customer, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.Plan, p.Status, p.StripeCustomer, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}
	return p, nil
}

// GetPurchase loads one purchase. sql.ErrNoRows passes through.
func (s *Service) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	var (
		p        models.Purchase
		customer sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, plan, status, stripe_customer, created_at, updated_at FROM purchases WHERE id = ?`, id,
	).Scan(&p.ID, &p.Email, &p.Plan, &p.Status, &customer, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.StripeCustomer = customer.String
	return &p, nil
}

// UpdateStatus moves a purchase to a new status, optionally attaching the
// processor's customer id.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.PurchaseStatus, stripeCustomer string) error {
	var (
		res sql.Result
		err error
	)
	if stripeCustomer != "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE purchases SET status = ?, stripe_customer = ?, updated_at = ? WHERE id = ?`,
			status, stripeCustomer, time.Now().UTC(), id,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE purchases SET status = ?, updated_at = ? WHERE id = ?`,
			status, time.Now().UTC(), id,
		)
	}
	if err != nil {
		return fmt.Errorf("update purchase %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordEvent stores a billing event once, keyed by the processor's event id.
// A duplicate delivery reports handled=false so the caller can skip it.
func (s *Service) RecordEvent(ctx context.Context, eventID, eventType, payload string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin event tx: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM billing_events WHERE id = ?`, eventID).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check event %s: %w", eventID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO billing_events (id, event_type, payload, received_at) VALUES (?, ?, ?, ?)`,
		eventID, eventType, payload, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("record event %s: %w", eventID, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit event %s: %w", eventID, err)
	}
	return true, nil
}
