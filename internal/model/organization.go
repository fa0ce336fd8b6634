package model

import "time"

type Organization struct {
	ID        int64
	Name      string
	Slug      string
	CreatedAt time.Time
}

// OrgDomain maps a customer-owned hostname to the organization whose branded
// portal it serves. Read-only from the routing layer's perspective.
type OrgDomain struct {
	ID        int64
	OrgID     int64
	Host      string
	Verified  bool
	CreatedAt time.Time
}

type Member struct {
	ID        int64
	OrgID     int64
	UserID    int64
	Role      string
	CreatedAt time.Time
}
