package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fundgateapp/fundgate/internal/email"
	"github.com/fundgateapp/fundgate/internal/magiclink"
	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/session"
	"github.com/fundgateapp/fundgate/internal/store"
)

// AuthHandler serves the magic-link login flows for both portals and the
// verification endpoint that consumes the links.
type AuthHandler struct {
	links    *magiclink.Service
	sessions *session.Manager
	mailer   *email.Client
	audit    *store.AuditStore
	logger   *slog.Logger
}

func NewAuthHandler(
	links *magiclink.Service,
	sessions *session.Manager,
	mailer *email.Client,
	audit *store.AuditStore,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		links:    links,
		sessions: sessions,
		mailer:   mailer,
		audit:    audit,
		logger:   logger.With("component", "auth"),
	}
}

type loginRequest struct {
	Email string `json:"email"`
}

// AdminLogin handles POST /api/auth/admin-login. Unauthorized emails get a
// generic denial with no link created and no email sent.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeLogin(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	verifyURL, err := h.links.IssueAdmin(req.Email)
	if err != nil {
		if errors.Is(err, magiclink.ErrNotAuthorized) {
			h.recordDenied(req.Email, clientIP(r))
			writeError(w, http.StatusForbidden, "Access denied")
			return
		}
		h.logger.Error("issue admin link", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	if err := h.mailer.SendMagicLink(r.Context(), strings.ToLower(req.Email), verifyURL, magiclink.PurposeAdmin); err != nil {
		h.logger.Error("send admin link", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not send sign-in email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Login handles POST /api/auth/login for investors. The response does not
// reveal whether the address belongs to a known user.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeLogin(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	verifyURL, err := h.links.IssueLogin(req.Email)
	if err != nil {
		if !errors.Is(err, magiclink.ErrNotAuthorized) {
			h.logger.Error("issue login link", "error", err)
		}
		// Same response either way.
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
		return
	}

	if err := h.mailer.SendMagicLink(r.Context(), strings.ToLower(req.Email), verifyURL, magiclink.PurposeLogin); err != nil {
		h.logger.Error("send login link", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Verify handles GET /verify: it consumes the token, sets the session cookie,
// and redirects to a validated destination. Every failure looks the same.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("token")
	addr := q.Get("email")
	checksum := q.Get("checksum")
	redirect := magiclink.SafeRedirect(q.Get("redirect"))

	if token == "" || addr == "" || checksum == "" {
		http.Redirect(w, r, "/login?error=invalid_link", http.StatusSeeOther)
		return
	}

	// Admin links and investor links share the endpoint; the purpose-prefixed
	// identifier keeps the two pools disjoint, so trying both is safe.
	u, sessTok, err := h.links.VerifyAdmin(token, addr, checksum)
	if err == nil {
		h.audit.Insert(&model.AuditLog{
			Actor: u.Email,
			Kind:  model.AuditAdminLogin,
			IP:    clientIP(r),
		})
		h.sessions.SetCookie(w, r, sessTok)
		if redirect == magiclink.DefaultRedirect {
			redirect = "/admin"
		}
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}

	if _, sessTok, err = h.links.VerifyLogin(token, addr, checksum); err != nil {
		h.logger.Warn("verification failed", "ip", clientIP(r))
		http.Redirect(w, r, "/login?error=invalid_link", http.StatusSeeOther)
		return
	}
	h.sessions.SetCookie(w, r, sessTok)
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) recordDenied(email, ip string) {
	if err := h.audit.Insert(&model.AuditLog{
		Actor:    strings.ToLower(strings.TrimSpace(email)),
		Kind:     model.AuditMagicLinkDenied,
		Severity: model.SeverityWarning,
		IP:       ip,
	}); err != nil {
		h.logger.Warn("audit write failed", "error", err)
	}
}

// decodeLogin accepts both JSON bodies and form posts.
func decodeLogin(r *http.Request, req *loginRequest) error {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		return decodeJSON(r, req)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	req.Email = r.PostFormValue("email")
	return nil
}
