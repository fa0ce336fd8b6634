package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fundgateapp/fundgate/internal/database"
	"github.com/fundgateapp/fundgate/internal/email"
	"github.com/fundgateapp/fundgate/internal/magiclink"
	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/session"
	"github.com/fundgateapp/fundgate/internal/store"
)

// sinkTransport absorbs outbound email API calls and counts them.
type sinkTransport struct {
	sent []string // request bodies
}

func (s *sinkTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(r.Body)
	s.sent = append(s.sent, string(body))
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     make(http.Header),
	}, nil
}

type authFixture struct {
	h       *AuthHandler
	links   *store.MagicLinkStore
	users   *store.UserStore
	audit   *store.AuditStore
	svc     *magiclink.Service
	outbox  *sinkTransport
	session *session.Manager
}

func newAuthFixture(t *testing.T, allowlist ...string) *authFixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	links := store.NewMagicLinkStore(db)
	users := store.NewUserStore(db)
	orgs := store.NewOrganizationStore(db)
	audit := store.NewAuditStore(db)
	sessions := session.NewManager("test-secret", false)
	svc := magiclink.NewService(links, users, orgs, sessions, "test-secret", "https://app.fundgate.test", allowlist, logger)

	outbox := &sinkTransport{}
	mailer := email.NewClient("test-key", "Fundgate <no-reply@fundgate.test>",
		email.WithHTTPClient(&http.Client{Transport: outbox}))

	return &authFixture{
		h:       NewAuthHandler(svc, sessions, mailer, audit, logger),
		links:   links,
		users:   users,
		audit:   audit,
		svc:     svc,
		outbox:  outbox,
		session: sessions,
	}
}

func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func TestAdminLoginAllowlisted(t *testing.T) {
	f := newAuthFixture(t, "ops@fund.test")

	w := postJSON(f.h.AdminLogin, "/api/auth/admin-login", `{"email":"ops@fund.test"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	if len(f.outbox.sent) != 1 {
		t.Errorf("emails sent = %d, want exactly 1", len(f.outbox.sent))
	}
	if !strings.Contains(f.outbox.sent[0], "/verify?token=") {
		t.Error("email does not contain a verification link")
	}
}

func TestAdminLoginDenied(t *testing.T) {
	f := newAuthFixture(t, "ops@fund.test")

	w := postJSON(f.h.AdminLogin, "/api/auth/admin-login", `{"email":"stranger@evil.test"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	// Generic body: no hint of which check failed.
	if body := w.Body.String(); strings.Contains(body, "allowlist") || strings.Contains(body, "role") {
		t.Errorf("denial leaks details: %s", body)
	}
	if len(f.outbox.sent) != 0 {
		t.Errorf("emails sent = %d, want 0", len(f.outbox.sent))
	}

	n, err := f.audit.CountByKind(model.AuditMagicLinkDenied)
	if err != nil || n != 1 {
		t.Errorf("denied audit rows = %d, %v", n, err)
	}
}

func TestInvestorLoginDoesNotRevealMembership(t *testing.T) {
	f := newAuthFixture(t)
	if _, err := f.users.Create("lp@fund.test", "", model.RoleLP); err != nil {
		t.Fatal(err)
	}

	known := postJSON(f.h.Login, "/api/auth/login", `{"email":"lp@fund.test"}`)
	unknown := postJSON(f.h.Login, "/api/auth/login", `{"email":"ghost@fund.test"}`)
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("status = %d / %d, want 200 / 200", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Error("known and unknown addresses produce different responses")
	}
	// But only the known address got an email.
	if len(f.outbox.sent) != 1 {
		t.Errorf("emails sent = %d, want 1", len(f.outbox.sent))
	}
}

func verifyRequest(t *testing.T, f *authFixture, verifyURL, extraQuery string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	u, err := url.Parse(verifyURL)
	if err != nil {
		t.Fatal(err)
	}
	target := "/verify?" + u.RawQuery
	if extraQuery != "" {
		target += "&" + extraQuery
	}
	r := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	f.h.Verify(w, r)
	return w, r
}

func TestVerifySetsSessionAndRedirects(t *testing.T) {
	f := newAuthFixture(t, "ops@fund.test")
	verifyURL, err := f.svc.IssueAdmin("ops@fund.test")
	if err != nil {
		t.Fatal(err)
	}

	w, _ := verifyRequest(t, f, verifyURL, "")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin" {
		t.Errorf("Location = %q, want /admin", loc)
	}

	var sessCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			sessCookie = c
		}
	}
	if sessCookie == nil {
		t.Fatal("no session cookie set")
	}
	claims, err := f.session.Decode(sessCookie.Value)
	if err != nil {
		t.Fatalf("decode issued session: %v", err)
	}
	if claims.Role != model.RoleGP || claims.LoginPortal != session.PortalAdmin {
		t.Errorf("claims = role %q portal %q", claims.Role, claims.LoginPortal)
	}

	// Admin login is audited.
	n, err := f.audit.CountByKind(model.AuditAdminLogin)
	if err != nil || n != 1 {
		t.Errorf("admin login audit rows = %d, %v", n, err)
	}
}

func TestVerifyRedirectValidation(t *testing.T) {
	f := newAuthFixture(t, "ops@fund.test")

	issue := func() string {
		verifyURL, err := f.svc.IssueAdmin("ops@fund.test")
		if err != nil {
			t.Fatal(err)
		}
		return verifyURL
	}

	// Allow-listed redirect is honored.
	w, _ := verifyRequest(t, f, issue(), "redirect="+url.QueryEscape("/datarooms/7"))
	if loc := w.Header().Get("Location"); loc != "/datarooms/7" {
		t.Errorf("safe redirect: Location = %q", loc)
	}

	// External and protocol-relative targets fall back.
	w, _ = verifyRequest(t, f, issue(), "redirect="+url.QueryEscape("https://evil.com"))
	if loc := w.Header().Get("Location"); loc != "/admin" {
		t.Errorf("external redirect: Location = %q, want /admin", loc)
	}
	w, _ = verifyRequest(t, f, issue(), "redirect="+url.QueryEscape("//evil.com"))
	if loc := w.Header().Get("Location"); loc != "/admin" {
		t.Errorf("protocol-relative redirect: Location = %q, want /admin", loc)
	}
}

func TestVerifyFailuresAreUniform(t *testing.T) {
	f := newAuthFixture(t, "ops@fund.test")
	verifyURL, err := f.svc.IssueAdmin("ops@fund.test")
	if err != nil {
		t.Fatal(err)
	}

	// Consume once.
	if w, _ := verifyRequest(t, f, verifyURL, ""); w.Code != http.StatusSeeOther {
		t.Fatal("first verification failed")
	}

	// Reuse, garbage token, and missing params all land on the same page.
	reuse, _ := verifyRequest(t, f, verifyURL, "")
	garbage := httptest.NewRecorder()
	f.h.Verify(garbage, httptest.NewRequest("GET", "/verify?token=zzz&email=a@b.c&checksum=zzz", nil))
	missing := httptest.NewRecorder()
	f.h.Verify(missing, httptest.NewRequest("GET", "/verify", nil))

	for name, w := range map[string]*httptest.ResponseRecorder{
		"reused": reuse, "garbage": garbage, "missing params": missing,
	} {
		if w.Code != http.StatusSeeOther {
			t.Errorf("%s: status = %d, want 303", name, w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/login?error=invalid_link" {
			t.Errorf("%s: Location = %q", name, loc)
		}
		if len(w.Result().Cookies()) != 0 {
			t.Errorf("%s: a cookie was set", name)
		}
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	f := newAuthFixture(t)
	w := httptest.NewRecorder()
	f.h.Logout(w, httptest.NewRequest("POST", "/logout", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.CookieName || cookies[0].MaxAge >= 0 {
		t.Errorf("logout cookies = %+v", cookies)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}
