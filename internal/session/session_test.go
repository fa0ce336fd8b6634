package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fundgateapp/fundgate/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:        42,
		Email:     "gp@fund.test",
		Name:      "Pat",
		Role:      model.RoleGP,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
}

func TestIssueDecodeRoundtrip(t *testing.T) {
	m := NewManager("secret", false)
	tok, err := m.Issue(testUser(), PortalAdmin)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.Decode(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Email != "gp@fund.test" {
		t.Errorf("identity claims = %+v", claims)
	}
	if claims.Role != model.RoleGP || claims.LoginPortal != PortalAdmin {
		t.Errorf("role/portal = %q/%q", claims.Role, claims.LoginPortal)
	}
	if claims.AccountCreatedAt == 0 {
		t.Error("AccountCreatedAt not set")
	}
}

func TestDecodeRejectsTampered(t *testing.T) {
	m := NewManager("secret", false)
	tok, err := m.Issue(testUser(), PortalAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Decode(tok + "x"); err != ErrInvalidToken {
		t.Errorf("tampered token error = %v, want ErrInvalidToken", err)
	}
	if _, err := m.Decode("not-a-jwt"); err != ErrInvalidToken {
		t.Errorf("garbage token error = %v, want ErrInvalidToken", err)
	}

	other := NewManager("different-secret", false)
	if _, err := other.Decode(tok); err != ErrInvalidToken {
		t.Errorf("wrong-key token error = %v, want ErrInvalidToken", err)
	}
}

// signWith mints a token with arbitrary claims under the manager's secret, to
// exercise validation of well-signed but malformed tokens.
func signWith(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestDecodeRejectsMalformedClaims(t *testing.T) {
	m := NewManager("secret", false)
	base := Claims{UserID: 1, Email: "a@b.c", Role: model.RoleLP, LoginPortal: PortalVisitor}

	unknownRole := base
	unknownRole.Role = "SUPERUSER"
	unknownPortal := base
	unknownPortal.LoginPortal = "ROOT"
	noUser := base
	noUser.UserID = 0
	noEmail := base
	noEmail.Email = ""

	for name, c := range map[string]Claims{
		"unknown role":   unknownRole,
		"unknown portal": unknownPortal,
		"missing uid":    noUser,
		"missing email":  noEmail,
	} {
		if _, err := m.Decode(signWith(t, "secret", c)); err != ErrInvalidToken {
			t.Errorf("%s: error = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestDecodeRejectsExpired(t *testing.T) {
	m := NewManager("secret", false)
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		UserID: 1, Email: "a@b.c", Role: model.RoleLP, LoginPortal: PortalVisitor,
	}
	if _, err := m.Decode(signWith(t, "secret", c)); err != ErrInvalidToken {
		t.Errorf("expired token error = %v, want ErrInvalidToken", err)
	}
}

func TestShouldRenew(t *testing.T) {
	m := NewManager("secret", false)

	fresh := &Claims{RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())}}
	if m.ShouldRenew(fresh) {
		t.Error("fresh claims flagged for renewal")
	}

	stale := &Claims{RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now().Add(-25 * time.Hour))}}
	if !m.ShouldRenew(stale) {
		t.Error("25h-old claims not flagged for renewal")
	}

	if !m.ShouldRenew(&Claims{}) {
		t.Error("claims without IssuedAt not flagged for renewal")
	}
}

func TestReissueKeepsIdentity(t *testing.T) {
	m := NewManager("secret", false)
	tok, err := m.Issue(testUser(), PortalVisitor)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.Decode(tok)
	if err != nil {
		t.Fatal(err)
	}

	fresh, err := m.Reissue(claims)
	if err != nil {
		t.Fatal(err)
	}
	renewed, err := m.Decode(fresh)
	if err != nil {
		t.Fatal(err)
	}
	if renewed.UserID != claims.UserID || renewed.Email != claims.Email ||
		renewed.Role != claims.Role || renewed.LoginPortal != claims.LoginPortal {
		t.Errorf("identity changed on reissue: %+v vs %+v", renewed, claims)
	}
}

func TestCookieAttributes(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)

	dev := NewManager("secret", false)
	w := httptest.NewRecorder()
	dev.SetCookie(w, r, "tok")
	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Errorf("cookie attributes = %+v", c)
	}
	if c.MaxAge != int(Lifetime.Seconds()) {
		t.Errorf("MaxAge = %d, want %d", c.MaxAge, int(Lifetime.Seconds()))
	}
	if c.Secure {
		t.Error("Secure set for plain-HTTP development request")
	}

	prod := NewManager("secret", true)
	w = httptest.NewRecorder()
	prod.SetCookie(w, r, "tok")
	if !w.Result().Cookies()[0].Secure {
		t.Error("Secure not set in production")
	}

	w = httptest.NewRecorder()
	dev.ClearCookie(w)
	if got := w.Result().Cookies()[0].MaxAge; got >= 0 {
		t.Errorf("ClearCookie MaxAge = %d, want negative", got)
	}
}

func TestFromRequest(t *testing.T) {
	m := NewManager("secret", false)
	tok, err := m.Issue(testUser(), PortalAdmin)
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	claims, err := m.FromRequest(r)
	if err != nil || claims.UserID != 42 {
		t.Errorf("FromRequest = %+v, %v", claims, err)
	}

	if _, err := m.FromRequest(httptest.NewRequest("GET", "/", nil)); err != ErrInvalidToken {
		t.Errorf("no cookie error = %v, want ErrInvalidToken", err)
	}
}
