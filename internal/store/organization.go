package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/fundgateapp/fundgate/internal/model"
)

type OrganizationStore struct {
	db *sql.DB
}

func NewOrganizationStore(db *sql.DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

func scanOrganization(scanner interface{ Scan(...any) error }) (*model.Organization, error) {
	var o model.Organization
	err := scanner.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

const orgCols = `id, name, slug, created_at`

func (s *OrganizationStore) Create(name, slug string) (*model.Organization, error) {
	result, err := s.db.Exec(
		`INSERT INTO organizations (name, slug) VALUES (?, ?)`,
		name, slug,
	)
	if err != nil {
		return nil, fmt.Errorf("insert organization: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *OrganizationStore) GetByID(id int64) (*model.Organization, error) {
	row := s.db.QueryRow(`SELECT `+orgCols+` FROM organizations WHERE id = ?`, id)
	o, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

func (s *OrganizationStore) GetBySlug(slug string) (*model.Organization, error) {
	row := s.db.QueryRow(`SELECT `+orgCols+` FROM organizations WHERE slug = ?`, slug)
	o, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	return o, nil
}

// AddDomain registers a custom hostname for the organization.
func (s *OrganizationStore) AddDomain(orgID int64, host string) (*model.OrgDomain, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	result, err := s.db.Exec(
		`INSERT INTO organization_domains (org_id, host) VALUES (?, ?)`,
		orgID, host,
	)
	if err != nil {
		return nil, fmt.Errorf("insert domain: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT id, org_id, host, verified, created_at FROM organization_domains WHERE id = ?`, id)
	return scanOrgDomain(row)
}

func scanOrgDomain(scanner interface{ Scan(...any) error }) (*model.OrgDomain, error) {
	var d model.OrgDomain
	err := scanner.Scan(&d.ID, &d.OrgID, &d.Host, &d.Verified, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDomainByHost resolves a custom hostname to its organization domain
// record, or nil if the host is not registered.
func (s *OrganizationStore) GetDomainByHost(host string) (*model.OrgDomain, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	row := s.db.QueryRow(
		`SELECT id, org_id, host, verified, created_at FROM organization_domains WHERE host = ?`,
		host,
	)
	d, err := scanOrgDomain(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get domain by host: %w", err)
	}
	return d, nil
}

func (s *OrganizationStore) AddMember(orgID, userID int64, role string) (*model.Member, error) {
	result, err := s.db.Exec(
		`INSERT INTO organization_members (org_id, user_id, role) VALUES (?, ?, ?)`,
		orgID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT id, org_id, user_id, role, created_at FROM organization_members WHERE id = ?`, id)
	return scanMember(row)
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := scanner.Scan(&m.ID, &m.OrgID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *OrganizationStore) GetMember(orgID, userID int64) (*model.Member, error) {
	row := s.db.QueryRow(
		`SELECT id, org_id, user_id, role, created_at FROM organization_members WHERE org_id = ? AND user_id = ?`,
		orgID, userID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// HasTeamRole reports whether the email belongs to a user holding the given
// role in any organization. Backs the admin magic-link authorization check.
func (s *OrganizationStore) HasTeamRole(email, role string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE u.email = ? AND m.role = ?`,
		email, role,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("team role lookup: %w", err)
	}
	return n > 0, nil
}
