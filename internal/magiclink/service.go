// Package magiclink implements single-use, time-limited login links:
// issuance gated by an authorization check, and a verification lifecycle
// that consumes each token exactly once.
package magiclink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/session"
	"github.com/fundgateapp/fundgate/internal/store"
)

// TTL is the fixed lifetime of an issued link.
const TTL = 15 * time.Minute

// Purposes prefix the identifier so an admin link can never be redeemed
// through the investor flow or vice versa.
const (
	PurposeAdmin = "admin"
	PurposeLogin = "login"
)

// DefaultRedirect is where verification lands when no safe redirect was
// supplied.
const DefaultRedirect = "/hub"

// redirectAllowlist holds the path prefixes a caller-supplied redirect may
// target. Anything else falls back to DefaultRedirect.
var redirectAllowlist = []string{"/hub", "/dashboard", "/settings", "/datarooms", "/admin"}

// ErrInvalid covers every verification failure — absent, expired, reused, or
// mismatched tokens are deliberately indistinguishable to the caller.
var ErrInvalid = errors.New("magiclink: invalid or expired")

// ErrNotAuthorized is returned when issuance is requested for an email that
// passes neither the static allow-list nor the team-role lookup. The message
// never reveals which check failed.
var ErrNotAuthorized = errors.New("magiclink: not authorized")

type Service struct {
	links     *store.MagicLinkStore
	users     *store.UserStore
	orgs      *store.OrganizationStore
	sessions  *session.Manager
	secret    []byte
	baseURL   string
	allowlist map[string]struct{}
	logger    *slog.Logger
}

func NewService(
	links *store.MagicLinkStore,
	users *store.UserStore,
	orgs *store.OrganizationStore,
	sessions *session.Manager,
	secret, baseURL string,
	adminAllowlist []string,
	logger *slog.Logger,
) *Service {
	allow := make(map[string]struct{}, len(adminAllowlist))
	for _, e := range adminAllowlist {
		allow[strings.ToLower(e)] = struct{}{}
	}
	return &Service{
		links:     links,
		users:     users,
		orgs:      orgs,
		sessions:  sessions,
		secret:    []byte(secret),
		baseURL:   baseURL,
		allowlist: allow,
		logger:    logger,
	}
}

func identifier(purpose, email string) string {
	return purpose + ":" + strings.ToLower(email)
}

// Checksum computes the integrity checksum embedded in verification URLs.
func (s *Service) Checksum(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// IssueAdmin authorizes the email against the static allow-list union the
// GP team-role lookup, then creates a link and returns the verification URL.
// Fails closed without revealing which check denied.
func (s *Service) IssueAdmin(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrNotAuthorized
	}

	if _, ok := s.allowlist[email]; !ok {
		hasRole, err := s.orgs.HasTeamRole(email, model.RoleGP)
		if err != nil {
			s.logger.Error("team role lookup", "error", err)
			return "", ErrNotAuthorized
		}
		if !hasRole {
			return "", ErrNotAuthorized
		}
	}

	ml, err := s.links.Create(identifier(PurposeAdmin, email), TTL)
	if err != nil {
		return "", fmt.Errorf("create magic link: %w", err)
	}

	return fmt.Sprintf("%s/verify?token=%s&email=%s&checksum=%s",
		s.baseURL, ml.Token, url.QueryEscape(email), s.Checksum(ml.Token)), nil
}

// IssueLogin creates an investor login link for an existing user.
func (s *Service) IssueLogin(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(email)
	if err != nil {
		return "", fmt.Errorf("user lookup: %w", err)
	}
	if u == nil {
		return "", ErrNotAuthorized
	}

	ml, err := s.links.Create(identifier(PurposeLogin, email), TTL)
	if err != nil {
		return "", fmt.Errorf("create magic link: %w", err)
	}

	return fmt.Sprintf("%s/verify?token=%s&email=%s&checksum=%s",
		s.baseURL, ml.Token, url.QueryEscape(email), s.Checksum(ml.Token)), nil
}

// verify runs the shared lifecycle: look up the token, confirm it belongs to
// the expected identifier, enforce expiry (deleting on the way out), and
// consume it exactly once.
func (s *Service) verify(token, purpose, email string) error {
	ml, err := s.links.GetByToken(token)
	if err != nil {
		s.logger.Error("magic link lookup", "error", err)
		return ErrInvalid
	}
	if ml == nil {
		return ErrInvalid
	}
	if ml.Identifier != identifier(purpose, strings.ToLower(email)) {
		// Token swapped across identities — refuse without detail.
		return ErrInvalid
	}
	if time.Now().UTC().After(ml.ExpiresAt) {
		s.links.Delete(ml.ID)
		return ErrInvalid
	}
	consumed, err := s.links.Delete(ml.ID)
	if err != nil {
		s.logger.Error("magic link consume", "error", err)
		return ErrInvalid
	}
	if !consumed {
		return ErrInvalid
	}
	return nil
}

// VerifyAdmin validates checksum and token, upserts the user with the GP
// role, and mints a signed ADMIN-portal session token.
func (s *Service) VerifyAdmin(token, email, checksum string) (*model.User, string, error) {
	if !hmac.Equal([]byte(checksum), []byte(s.Checksum(token))) {
		return nil, "", ErrInvalid
	}
	if err := s.verify(token, PurposeAdmin, email); err != nil {
		return nil, "", err
	}

	u, err := s.users.UpsertGP(strings.ToLower(email))
	if err != nil {
		return nil, "", fmt.Errorf("upsert admin user: %w", err)
	}
	sessTok, err := s.sessions.Issue(u, session.PortalAdmin)
	if err != nil {
		return nil, "", fmt.Errorf("issue session: %w", err)
	}
	return u, sessTok, nil
}

// VerifyLogin validates an investor login link and mints a VISITOR-portal
// session token.
func (s *Service) VerifyLogin(token, email, checksum string) (*model.User, string, error) {
	if !hmac.Equal([]byte(checksum), []byte(s.Checksum(token))) {
		return nil, "", ErrInvalid
	}
	if err := s.verify(token, PurposeLogin, email); err != nil {
		return nil, "", err
	}

	u, err := s.users.GetByEmail(strings.ToLower(email))
	if err != nil || u == nil {
		return nil, "", ErrInvalid
	}
	sessTok, err := s.sessions.Issue(u, session.PortalVisitor)
	if err != nil {
		return nil, "", fmt.Errorf("issue session: %w", err)
	}
	return u, sessTok, nil
}

// SafeRedirect validates a caller-supplied post-verification redirect: it
// must be a same-origin relative path with a single leading slash, under an
// allow-listed prefix. Everything else gets the default destination.
func SafeRedirect(redirect string) string {
	if redirect == "" || !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") {
		return DefaultRedirect
	}
	pathOnly := redirect
	if i := strings.IndexByte(pathOnly, '?'); i >= 0 {
		pathOnly = pathOnly[:i]
	}
	for _, prefix := range redirectAllowlist {
		if pathOnly == prefix || strings.HasPrefix(pathOnly, prefix+"/") {
			return redirect
		}
	}
	return DefaultRedirect
}
