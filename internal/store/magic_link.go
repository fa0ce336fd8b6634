package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fundgateapp/fundgate/internal/model"
)

type MagicLinkStore struct {
	db *sql.DB
}

func NewMagicLinkStore(db *sql.DB) *MagicLinkStore {
	return &MagicLinkStore{db: db}
}

func scanMagicLink(scanner interface{ Scan(...any) error }) (*model.MagicLink, error) {
	var ml model.MagicLink
	err := scanner.Scan(&ml.ID, &ml.Identifier, &ml.Token, &ml.ExpiresAt, &ml.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ml, nil
}

const magicLinkCols = `id, identifier, token, expires_at, created_at`

// Create generates a new magic link with a crypto-random opaque token.
// Any previous rows for the same identifier are purged first, so at most one
// live link exists per identifier at a time.
func (s *MagicLinkStore) Create(identifier string, ttl time.Duration) (*model.MagicLink, error) {
	if _, err := s.db.Exec(`DELETE FROM magic_links WHERE identifier = ?`, identifier); err != nil {
		return nil, fmt.Errorf("purge previous links: %w", err)
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)
	expiresAt := time.Now().UTC().Add(ttl)

	result, err := s.db.Exec(
		`INSERT INTO magic_links (identifier, token, expires_at) VALUES (?, ?, ?)`,
		identifier, token, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert magic link: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+magicLinkCols+` FROM magic_links WHERE id = ?`, id)
	return scanMagicLink(row)
}

// GetByToken returns the magic link for the token regardless of expiry, or
// nil if it does not exist. Expiry is the caller's decision so expired rows
// can be deleted on presentation.
func (s *MagicLinkStore) GetByToken(token string) (*model.MagicLink, error) {
	row := s.db.QueryRow(`SELECT `+magicLinkCols+` FROM magic_links WHERE token = ?`, token)
	ml, err := scanMagicLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get magic link by token: %w", err)
	}
	return ml, nil
}

// Delete removes the row and reports whether it was still present. The
// boolean is the single-use guarantee: under concurrent verification only
// one caller observes true.
func (s *MagicLinkStore) Delete(id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM magic_links WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete magic link: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *MagicLinkStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM magic_links WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired magic links: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
