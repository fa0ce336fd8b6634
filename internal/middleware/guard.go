package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fundgateapp/fundgate/internal/auth"
	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/session"
)

// welcomeWindow is how recently an account must have been created for the
// first-login welcome redirect to fire.
const welcomeWindow = 10 * time.Second

// RouteRule is one entry in the ordered route-group table: a path predicate,
// the roles allowed through, and where to send the unauthenticated.
type RouteRule struct {
	Name      string
	Match     func(path string) bool
	Roles     []string
	LoginPath string
}

func prefixRule(name, loginPath string, roles []string, prefixes ...string) RouteRule {
	return RouteRule{
		Name: name,
		Match: func(path string) bool {
			for _, p := range prefixes {
				if path == strings.TrimSuffix(p, "/") || strings.HasPrefix(path, p) {
					return true
				}
			}
			return false
		},
		Roles:     roles,
		LoginPath: loginPath,
	}
}

// DefaultRules returns the route-group table evaluated in priority order.
// The GP rule comes first so /admin never falls through to the LP group.
func DefaultRules() []RouteRule {
	return []RouteRule{
		prefixRule("gp", "/admin/login", []string{model.RoleGP},
			"/admin/", "/dashboard/"),
		prefixRule("lp", "/lp/login", []string{model.RoleLP, model.RoleGP},
			"/hub/", "/portfolio/", "/documents/", "/capital-calls/", "/datarooms/", "/viewer-portal/"),
	}
}

var publicPaths = map[string]struct{}{
	"/":                {},
	"/login":           {},
	"/lp/login":        {},
	"/admin/login":     {},
	"/signup":          {},
	"/onboarding":      {},
	"/health":          {},
	"/viewer-redirect": {}, // performs its own downstream check
}

var publicPrefixes = []string{"/static/", "/view/", "/api/auth/"}

var loginPaths = map[string]struct{}{
	"/login":       {},
	"/lp/login":    {},
	"/admin/login": {},
}

// Guard enforces route-group authorization on the primary app host. It is a
// stateless state machine per request: decode the session cookie, match the
// path against the ordered rule table, and either allow, redirect to a login
// surface, or redirect to the correct portal.
type Guard struct {
	Sessions *session.Manager
	Rules    []RouteRule
	Next     http.Handler
	Logger   *slog.Logger
}

func NewGuard(sessions *session.Manager, next http.Handler, logger *slog.Logger) *Guard {
	return &Guard{Sessions: sessions, Rules: DefaultRules(), Next: next, Logger: logger}
}

func (g *Guard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	claims, err := g.Sessions.FromRequest(r)
	if err != nil {
		claims = nil // absent, expired, or tampered — treat uniformly
	}

	// Authenticated users landing on a login page go to their portal.
	if _, isLogin := loginPaths[path]; isLogin {
		if claims != nil {
			http.Redirect(w, r, postLoginTarget(claims, r.URL.Query().Get("next")), http.StatusSeeOther)
			return
		}
		g.Next.ServeHTTP(w, r)
		return
	}

	if isPublicPath(path) {
		g.serve(w, r, claims)
		return
	}

	for _, rule := range g.Rules {
		if !rule.Match(path) {
			continue
		}
		if claims == nil {
			redirectToLogin(w, r, rule.LoginPath)
			return
		}
		if !roleAllowed(claims.Role, rule.Roles) {
			http.Redirect(w, r, "/viewer-portal", http.StatusSeeOther)
			return
		}
		g.allow(w, r, claims)
		return
	}

	// Any other path requires a session but no particular role.
	if claims == nil {
		redirectToLogin(w, r, "/login")
		return
	}
	g.allow(w, r, claims)
}

// allow admits an authenticated request, first applying the first-login
// welcome gate, then silent renewal.
func (g *Guard) allow(w http.ResponseWriter, r *http.Request, claims *session.Claims) {
	createdAt := time.Unix(claims.AccountCreatedAt, 0)
	if time.Since(createdAt) <= welcomeWindow &&
		r.URL.Path != "/welcome" &&
		r.URL.Query().Get("invitation") == "" {
		http.Redirect(w, r, "/welcome", http.StatusSeeOther)
		return
	}
	g.serve(w, r, claims)
}

func (g *Guard) serve(w http.ResponseWriter, r *http.Request, claims *session.Claims) {
	if claims == nil {
		g.Next.ServeHTTP(w, r)
		return
	}
	if g.Sessions.ShouldRenew(claims) {
		if fresh, err := g.Sessions.Reissue(claims); err == nil {
			g.Sessions.SetCookie(w, r, fresh)
		} else if g.Logger != nil {
			g.Logger.Warn("session renewal failed", "error", err)
		}
	}
	g.Next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
}

func isPublicPath(path string) bool {
	if _, ok := publicPaths[path]; ok {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func roleAllowed(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string) {
	next := r.URL.RequestURI()
	http.Redirect(w, r, loginPath+"?next="+url.QueryEscape(next), http.StatusSeeOther)
}

// postLoginTarget picks where an already-authenticated user lands: the next
// parameter when it is a safe same-origin path that is not itself a login
// page (loop prevention), else the portal default.
func postLoginTarget(claims *session.Claims, next string) string {
	if safeNextPath(next) {
		return next
	}
	if claims.LoginPortal == session.PortalAdmin {
		return "/admin"
	}
	return "/hub"
}

func safeNextPath(next string) bool {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return false
	}
	pathOnly := next
	if i := strings.IndexByte(pathOnly, '?'); i >= 0 {
		pathOnly = pathOnly[:i]
	}
	_, isLogin := loginPaths[pathOnly]
	return !isLogin
}
