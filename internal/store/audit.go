package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fundgateapp/fundgate/internal/model"
)

type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Insert writes one immutable audit row. Callers that must not fail on audit
// errors (rate limiter, webhook handlers) wrap this and swallow the error.
func (s *AuditStore) Insert(entry *model.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Severity == "" {
		entry.Severity = model.SeverityInfo
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var orgID sql.NullInt64
	if entry.OrgID != nil {
		orgID = sql.NullInt64{Int64: *entry.OrgID, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO audit_logs (id, org_id, actor, kind, severity, ip, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, orgID, entry.Actor, entry.Kind, entry.Severity, entry.IP, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func scanAuditLog(scanner interface{ Scan(...any) error }) (*model.AuditLog, error) {
	var a model.AuditLog
	var orgID sql.NullInt64
	err := scanner.Scan(&a.ID, &orgID, &a.Actor, &a.Kind, &a.Severity, &a.IP, &a.Detail, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if orgID.Valid {
		a.OrgID = &orgID.Int64
	}
	return &a, nil
}

// ListRecent returns the most recent audit rows, newest first.
func (s *AuditStore) ListRecent(limit int) ([]*model.AuditLog, error) {
	rows, err := s.db.Query(
		`SELECT id, org_id, actor, kind, severity, ip, detail, created_at
		 FROM audit_logs ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByKind reports how many rows of a kind exist; used by tests and the
// ops dashboard.
func (s *AuditStore) CountByKind(kind string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE kind = ?`, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return n, nil
}
