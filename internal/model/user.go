package model

import "time"

// Role values carried in session tokens and membership rows.
const (
	RoleGP = "GP" // general partner — fund manager/admin
	RoleLP = "LP" // limited partner — investor
)

type User struct {
	ID        int64
	Email     string
	Name      string
	Picture   string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
