package model

import "time"

// MagicLink is a single-use, time-limited login token bound to an email
// identity. The identifier may carry a purpose prefix ("admin:bob@x.com").
// At most one live row exists per identifier at a time.
type MagicLink struct {
	ID         int64
	Identifier string
	Token      string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
