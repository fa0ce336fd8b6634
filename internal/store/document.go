package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fundgateapp/fundgate/internal/model"
)

type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func scanDocument(scanner interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	err := scanner.Scan(
		&d.ID, &d.OrgID, &d.Title, &d.FileName, &d.ObjectKey,
		&d.Size, &d.ContentType, &d.UploadedBy, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const documentCols = `id, org_id, title, file_name, object_key, size, content_type, uploaded_by, created_at`

func (s *DocumentStore) Create(d *model.Document) (*model.Document, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := s.db.Exec(
		`INSERT INTO documents (id, org_id, title, file_name, object_key, size, content_type, uploaded_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OrgID, d.Title, d.FileName, d.ObjectKey, d.Size, d.ContentType, d.UploadedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return s.GetByID(d.ID, d.OrgID)
}

// GetByID is org-scoped: a document is only visible through its own tenant.
func (s *DocumentStore) GetByID(id string, orgID int64) (*model.Document, error) {
	row := s.db.QueryRow(`SELECT `+documentCols+` FROM documents WHERE id = ? AND org_id = ?`, id, orgID)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *DocumentStore) ListByOrg(orgID int64) ([]*model.Document, error) {
	rows, err := s.db.Query(
		`SELECT `+documentCols+` FROM documents WHERE org_id = ? ORDER BY created_at DESC, id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DocumentStore) Delete(id string, orgID int64) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = ? AND org_id = ?`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
