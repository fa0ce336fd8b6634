package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fundgateapp/fundgate/internal/model"
)

// CookieName must match between issuance and verification paths. Issuance
// happens in both the magic-link flow and the silent-renewal path.
const CookieName = "fundgate_session"

// Login portals. A GP signing in through the admin surface gets ADMIN; an
// investor signing in through a tenant portal gets VISITOR.
const (
	PortalAdmin   = "ADMIN"
	PortalVisitor = "VISITOR"
)

const (
	// Lifetime is the absolute session lifetime.
	Lifetime = 30 * 24 * time.Hour
	// RenewAfter is the activity interval after which a session token is
	// silently re-issued.
	RenewAfter = 24 * time.Hour
)

var ErrInvalidToken = errors.New("session: invalid token")

// Claims is the only supported session token shape. Tokens missing required
// fields, or carrying a role or portal outside the enumerations below, are
// treated as unauthenticated rather than trusted partially.
type Claims struct {
	jwt.RegisteredClaims

	UserID      int64  `json:"uid"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Role        string `json:"role"`
	LoginPortal string `json:"loginPortal"`
	// AccountCreatedAt is the account creation time in unix seconds, used by
	// the first-login welcome gate.
	AccountCreatedAt int64 `json:"createdAt"`
}

// Manager issues and decodes signed session tokens.
type Manager struct {
	secret     []byte
	production bool
}

func NewManager(secret string, production bool) *Manager {
	return &Manager{secret: []byte(secret), production: production}
}

// Issue mints a session token for the user through the given portal.
func (m *Manager) Issue(u *model.User, portal string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Lifetime)),
		},
		UserID:           u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Picture:          u.Picture,
		Role:             u.Role,
		LoginPortal:      portal,
		AccountCreatedAt: u.CreatedAt.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Decode parses and validates a session token. Any defect — bad signature,
// expiry, missing identity, unknown role or portal — yields ErrInvalidToken.
func (m *Manager) Decode(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	if claims.Role != model.RoleGP && claims.Role != model.RoleLP {
		return nil, ErrInvalidToken
	}
	if claims.LoginPortal != PortalAdmin && claims.LoginPortal != PortalVisitor {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// FromRequest decodes the session cookie on the request, if any.
func (m *Manager) FromRequest(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrInvalidToken
	}
	return m.Decode(cookie.Value)
}

// Reissue mints a fresh token carrying the same identity claims, resetting
// the issued-at and expiry. Used for silent renewal during activity.
func (m *Manager) Reissue(c *Claims) (string, error) {
	now := time.Now().UTC()
	fresh := *c
	fresh.IssuedAt = jwt.NewNumericDate(now)
	fresh.ExpiresAt = jwt.NewNumericDate(now.Add(Lifetime))
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, fresh)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("reissue session token: %w", err)
	}
	return signed, nil
}

// ShouldRenew reports whether the token is due for silent re-issue.
func (m *Manager) ShouldRenew(c *Claims) bool {
	if c.IssuedAt == nil {
		return true
	}
	return time.Since(c.IssuedAt.Time) >= RenewAfter
}

// SetCookie writes the session cookie. Secure is set in production or when
// the request arrived over TLS.
func (m *Manager) SetCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(Lifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.production || r.TLS != nil,
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
