package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fundgateapp/fundgate/internal/model"
)

type CapitalCallStore struct {
	db *sql.DB
}

func NewCapitalCallStore(db *sql.DB) *CapitalCallStore {
	return &CapitalCallStore{db: db}
}

func scanCapitalCall(scanner interface{ Scan(...any) error }) (*model.CapitalCall, error) {
	var c model.CapitalCall
	err := scanner.Scan(
		&c.ID, &c.OrgID, &c.InvestorID, &c.AmountCents, &c.Currency,
		&c.Status, &c.PaymentIntentID, &c.DueDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const capitalCallCols = `id, org_id, investor_id, amount_cents, currency, status, payment_intent_id, due_date, created_at, updated_at`

func (s *CapitalCallStore) Create(orgID, investorID, amountCents int64, currency string, dueDate time.Time) (*model.CapitalCall, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO capital_calls (id, org_id, investor_id, amount_cents, currency, due_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, orgID, investorID, amountCents, currency, dueDate.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert capital call: %w", err)
	}
	return s.GetByID(id)
}

func (s *CapitalCallStore) GetByID(id string) (*model.CapitalCall, error) {
	row := s.db.QueryRow(`SELECT `+capitalCallCols+` FROM capital_calls WHERE id = ?`, id)
	c, err := scanCapitalCall(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get capital call: %w", err)
	}
	return c, nil
}

// GetByPaymentIntent maps a Stripe payment intent back to its capital call;
// used by the webhook handler.
func (s *CapitalCallStore) GetByPaymentIntent(paymentIntentID string) (*model.CapitalCall, error) {
	row := s.db.QueryRow(`SELECT `+capitalCallCols+` FROM capital_calls WHERE payment_intent_id = ?`, paymentIntentID)
	c, err := scanCapitalCall(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get capital call by intent: %w", err)
	}
	return c, nil
}

func (s *CapitalCallStore) ListByOrg(orgID int64) ([]*model.CapitalCall, error) {
	return s.list(`SELECT `+capitalCallCols+` FROM capital_calls WHERE org_id = ? ORDER BY created_at DESC, id`, orgID)
}

func (s *CapitalCallStore) ListByInvestor(investorID int64) ([]*model.CapitalCall, error) {
	return s.list(`SELECT `+capitalCallCols+` FROM capital_calls WHERE investor_id = ? ORDER BY created_at DESC, id`, investorID)
}

func (s *CapitalCallStore) list(query string, arg any) ([]*model.CapitalCall, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("list capital calls: %w", err)
	}
	defer rows.Close()

	var out []*model.CapitalCall
	for rows.Next() {
		c, err := scanCapitalCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan capital call: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetPaymentIntent records the Stripe intent and moves the call to processing.
func (s *CapitalCallStore) SetPaymentIntent(id, paymentIntentID string) error {
	_, err := s.db.Exec(
		`UPDATE capital_calls SET payment_intent_id = ?, status = ?, updated_at = datetime('now') WHERE id = ?`,
		paymentIntentID, model.CallStatusProcessing, id,
	)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}
	return nil
}

func (s *CapitalCallStore) UpdateStatus(id, status string) error {
	_, err := s.db.Exec(
		`UPDATE capital_calls SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update capital call status: %w", err)
	}
	return nil
}
