package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fundgateapp/fundgate/internal/auth"
	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGuard(next http.Handler) (*Guard, *session.Manager) {
	sessions := session.NewManager("test-secret", false)
	return NewGuard(sessions, next, testLogger()), sessions
}

func issueCookie(t *testing.T, sessions *session.Manager, role, portal string, createdAt time.Time) *http.Cookie {
	t.Helper()
	tok, err := sessions.Issue(&model.User{
		ID:        1,
		Email:     "u@example.com",
		Role:      role,
		CreatedAt: createdAt,
	}, portal)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return &http.Cookie{Name: session.CookieName, Value: tok}
}

func doGuard(g *Guard, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest("GET", path, nil)
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, r)
	return w
}

func TestGuardUnauthenticatedLPPath(t *testing.T) {
	g, _ := newGuard(http.NotFoundHandler())
	w := doGuard(g, "/hub/documents?page=2", nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	want := "/lp/login?next=%2Fhub%2Fdocuments%3Fpage%3D2"
	if loc := w.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func TestGuardUnauthenticatedGPPath(t *testing.T) {
	g, _ := newGuard(http.NotFoundHandler())
	w := doGuard(g, "/admin/funds", nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin/login?next=%2Fadmin%2Ffunds" {
		t.Errorf("Location = %q", loc)
	}
}

func TestGuardLPOnGPPath(t *testing.T) {
	g, sessions := newGuard(http.NotFoundHandler())
	cookie := issueCookie(t, sessions, model.RoleLP, session.PortalVisitor, time.Now().Add(-time.Hour))
	w := doGuard(g, "/admin/funds", cookie)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/viewer-portal" {
		t.Errorf("Location = %q, want /viewer-portal", loc)
	}
}

func TestGuardGPOnLPPath(t *testing.T) {
	served := false
	g, sessions := newGuard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
		if !auth.IsGP(r.Context()) {
			t.Error("claims missing from context")
		}
	}))
	cookie := issueCookie(t, sessions, model.RoleGP, session.PortalAdmin, time.Now().Add(-time.Hour))
	doGuard(g, "/hub/documents", cookie)
	if !served {
		t.Error("GP was not admitted to an LP path")
	}
}

func TestGuardTamperedCookie(t *testing.T) {
	g, sessions := newGuard(http.NotFoundHandler())
	cookie := issueCookie(t, sessions, model.RoleGP, session.PortalAdmin, time.Now().Add(-time.Hour))
	cookie.Value += "x"
	w := doGuard(g, "/admin/funds", cookie)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (treated as unauthenticated)", w.Code)
	}
}

func TestGuardWelcomeGate(t *testing.T) {
	g, sessions := newGuard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// Account created moments ago: redirect to /welcome.
	fresh := issueCookie(t, sessions, model.RoleLP, session.PortalVisitor, time.Now())
	w := doGuard(g, "/hub/documents", fresh)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/welcome" {
		t.Errorf("fresh account: status=%d location=%q, want 303 /welcome", w.Code, w.Header().Get("Location"))
	}

	// /welcome itself must not loop.
	w = doGuard(g, "/welcome", fresh)
	if w.Code == http.StatusSeeOther {
		t.Error("welcome gate redirected /welcome onto itself")
	}

	// Invitation flows skip the gate.
	r := httptest.NewRequest("GET", "/hub/documents?invitation=abc", nil)
	r.AddCookie(fresh)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, r)
	if rec.Code == http.StatusSeeOther {
		t.Error("invitation flow was redirected to /welcome")
	}

	// Old accounts pass.
	old := issueCookie(t, sessions, model.RoleLP, session.PortalVisitor, time.Now().Add(-time.Minute))
	w = doGuard(g, "/hub/documents", old)
	if w.Code == http.StatusSeeOther {
		t.Error("old account hit the welcome gate")
	}
}

func TestGuardAuthedOnLoginPage(t *testing.T) {
	g, sessions := newGuard(http.NotFoundHandler())

	admin := issueCookie(t, sessions, model.RoleGP, session.PortalAdmin, time.Now().Add(-time.Hour))
	w := doGuard(g, "/admin/login", admin)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/admin" {
		t.Errorf("admin on login page: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}

	lp := issueCookie(t, sessions, model.RoleLP, session.PortalVisitor, time.Now().Add(-time.Hour))
	w = doGuard(g, "/lp/login", lp)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/hub" {
		t.Errorf("lp on login page: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}

	// Safe next param is honored.
	w = doGuard(g, "/lp/login?next=%2Fhub%2Fdocs", lp)
	if loc := w.Header().Get("Location"); loc != "/hub/docs" {
		t.Errorf("next param: Location = %q, want /hub/docs", loc)
	}

	// A next pointing at a login page must not loop.
	w = doGuard(g, "/lp/login?next=%2Flp%2Flogin", lp)
	if loc := w.Header().Get("Location"); loc != "/hub" {
		t.Errorf("login-page next: Location = %q, want /hub", loc)
	}

	// Protocol-relative and absolute nexts are rejected.
	w = doGuard(g, "/lp/login?next=%2F%2Fevil.com", lp)
	if loc := w.Header().Get("Location"); loc != "/hub" {
		t.Errorf("//evil.com next: Location = %q, want /hub", loc)
	}
}

func TestGuardPublicPaths(t *testing.T) {
	g, _ := newGuard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, path := range []string{"/", "/login", "/signup", "/health", "/view/domains/x/y", "/api/auth/admin-login", "/static/app.js"} {
		w := doGuard(g, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200 without a session", path, w.Code)
		}
	}
}

func TestGuardSilentRenewal(t *testing.T) {
	g, sessions := newGuard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// Issue directly with a stale IssuedAt by minting and aging the claims.
	tok, err := sessions.Issue(&model.User{ID: 1, Email: "u@example.com", Role: model.RoleLP, CreatedAt: time.Now().Add(-time.Hour)}, session.PortalVisitor)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := sessions.Decode(tok)
	if err != nil {
		t.Fatal(err)
	}
	if sessions.ShouldRenew(claims) {
		t.Fatal("fresh token should not need renewal")
	}

	w := doGuard(g, "/hub/documents", &http.Cookie{Name: session.CookieName, Value: tok})
	if len(w.Result().Cookies()) != 0 {
		t.Error("fresh session was renewed")
	}
}
