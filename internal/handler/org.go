package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/fundgateapp/fundgate/internal/auth"
	"github.com/fundgateapp/fundgate/internal/middleware"
	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/store"
)

// OrgHandler serves the GP console's organization management API: creating
// funds, registering custom domains, and adding investor members.
type OrgHandler struct {
	orgs   *store.OrganizationStore
	users  *store.UserStore
	logger *slog.Logger
}

func NewOrgHandler(orgs *store.OrganizationStore, users *store.UserStore, logger *slog.Logger) *OrgHandler {
	return &OrgHandler{orgs: orgs, users: users, logger: logger.With("component", "orgs")}
}

type createOrgRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !auth.IsGP(r.Context()) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req createOrgRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Name == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "Name and slug are required")
		return
	}

	org, err := h.orgs.Create(req.Name, req.Slug)
	if err != nil {
		h.logger.Error("create organization", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not create organization")
		return
	}

	// The creator becomes the fund's first team member.
	if uid := auth.UserID(r.Context()); uid != 0 {
		if _, err := h.orgs.AddMember(org.ID, uid, model.RoleGP); err != nil {
			h.logger.Error("add founding member", "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, org)
}

type addDomainRequest struct {
	Host string `json:"host"`
}

func (h *OrgHandler) AddDomain(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization")
		return
	}
	if !h.requireGPMember(w, r, orgID) {
		return
	}

	var req addDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	host := middleware.StripPort(strings.ToLower(strings.TrimSpace(req.Host)))
	if !middleware.ValidHost(host) {
		writeError(w, http.StatusBadRequest, "Invalid hostname")
		return
	}

	domain, err := h.orgs.AddDomain(orgID, host)
	if err != nil {
		h.logger.Error("add domain", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Could not register domain")
		return
	}
	writeJSON(w, http.StatusCreated, domain)
}

type addMemberRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AddMember registers an investor (or another GP) with the fund, creating
// the user record on first contact.
func (h *OrgHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization")
		return
	}
	if !h.requireGPMember(w, r, orgID) {
		return
	}

	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if req.Role != model.RoleGP {
		req.Role = model.RoleLP
	}

	u, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("member lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not add member")
		return
	}
	if u == nil {
		u, err = h.users.Create(req.Email, req.Name, req.Role)
		if err != nil {
			h.logger.Error("create member user", "error", err)
			writeError(w, http.StatusInternalServerError, "Could not add member")
			return
		}
	}

	member, err := h.orgs.AddMember(orgID, u.ID, req.Role)
	if err != nil {
		h.logger.Error("add member", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Could not add member")
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// requireGPMember enforces that the caller is a GP member of the org. It
// writes the error response itself and reports whether to proceed.
func (h *OrgHandler) requireGPMember(w http.ResponseWriter, r *http.Request, orgID int64) bool {
	if !auth.IsGP(r.Context()) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return false
	}
	m, err := h.orgs.GetMember(orgID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("member check", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return false
	}
	if m == nil || m.Role != model.RoleGP {
		writeError(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}
