package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fundgateapp/fundgate/internal/auth"
	"github.com/fundgateapp/fundgate/internal/email"
	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/payments"
	"github.com/fundgateapp/fundgate/internal/store"
	"github.com/fundgateapp/fundgate/internal/websocket"
)

// CapitalCallHandler serves the capital-call lifecycle: GPs issue calls,
// investors review and pay them via ACH.
type CapitalCallHandler struct {
	calls    *store.CapitalCallStore
	orgs     *store.OrganizationStore
	users    *store.UserStore
	payments *payments.Client
	mailer   *email.Client
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewCapitalCallHandler(
	calls *store.CapitalCallStore,
	orgs *store.OrganizationStore,
	users *store.UserStore,
	pay *payments.Client,
	mailer *email.Client,
	hub *websocket.Hub,
	logger *slog.Logger,
) *CapitalCallHandler {
	return &CapitalCallHandler{
		calls:    calls,
		orgs:     orgs,
		users:    users,
		payments: pay,
		mailer:   mailer,
		hub:      hub,
		logger:   logger.With("component", "capital-calls"),
	}
}

type createCallRequest struct {
	InvestorID  int64  `json:"investor_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	DueDate     string `json:"due_date"` // YYYY-MM-DD
}

// Create handles POST /api/orgs/{org_id}/capital-calls. GP members only.
// The investor is notified by email; a send failure does not undo the call.
func (h *CapitalCallHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization")
		return
	}
	if !h.requireGPMember(w, r, orgID) {
		return
	}

	var req createCallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.InvestorID <= 0 || req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "Investor and positive amount are required")
		return
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due date")
		return
	}

	investor, err := h.users.GetByID(req.InvestorID)
	if err != nil {
		h.logger.Error("investor lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if investor == nil {
		writeError(w, http.StatusBadRequest, "Unknown investor")
		return
	}
	membership, err := h.orgs.GetMember(orgID, investor.ID)
	if err != nil {
		h.logger.Error("investor membership check", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if membership == nil {
		writeError(w, http.StatusBadRequest, "Investor is not a member of this fund")
		return
	}

	call, err := h.calls.Create(orgID, investor.ID, req.AmountCents, req.Currency, dueDate)
	if err != nil {
		h.logger.Error("create capital call", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Could not create capital call")
		return
	}

	org, err := h.orgs.GetByID(orgID)
	if err == nil && org != nil {
		if err := h.mailer.SendCapitalCallNotice(r.Context(), investor.Email, org.Name, call.AmountCents, call.DueDate); err != nil {
			h.logger.Warn("capital call notice", "error", err, "call_id", call.ID)
		}
	}

	h.hub.Broadcast(websocket.Event{
		Type:   "capital_call.created",
		OrgID:  orgID,
		Actor:  auth.Email(r.Context()),
		Detail: map[string]any{"call_id": call.ID, "amount_cents": call.AmountCents},
	})
	writeJSON(w, http.StatusCreated, call)
}

// ListByOrg handles GET /api/orgs/{org_id}/capital-calls for GP members.
func (h *CapitalCallHandler) ListByOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization")
		return
	}
	if !h.requireGPMember(w, r, orgID) {
		return
	}

	calls, err := h.calls.ListByOrg(orgID)
	if err != nil {
		h.logger.Error("list capital calls", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Could not list capital calls")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"capital_calls": calls})
}

// ListMine handles GET /api/capital-calls: the signed-in investor's calls
// across all funds.
func (h *CapitalCallHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())
	if uid == 0 {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	calls, err := h.calls.ListByInvestor(uid)
	if err != nil {
		h.logger.Error("list investor calls", "error", err, "user_id", uid)
		writeError(w, http.StatusInternalServerError, "Could not list capital calls")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"capital_calls": calls})
}

// Pay handles POST /api/capital-calls/{id}/pay: the investor the call is
// addressed to opens an ACH debit. Returns the Stripe client secret the
// portal needs to collect bank details.
func (h *CapitalCallHandler) Pay(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())
	if uid == 0 {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	call, err := h.calls.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get capital call", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if call == nil || call.InvestorID != uid {
		// Not found and not-yours are indistinguishable.
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if call.Status != model.CallStatusPending {
		writeError(w, http.StatusConflict, "Capital call is not payable")
		return
	}

	investor, err := h.users.GetByID(uid)
	if err != nil || investor == nil {
		h.logger.Error("investor lookup", "error", err, "user_id", uid)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	customerID, err := h.payments.CreateCustomer(investor.Email, investor.Name)
	if err != nil {
		h.logger.Error("create customer", "error", err, "call_id", call.ID)
		writeError(w, http.StatusBadGateway, "Payment provider unavailable")
		return
	}
	intentID, clientSecret, err := h.payments.CreateACHPaymentIntent(customerID, call.ID, call.AmountCents, call.Currency)
	if err != nil {
		h.logger.Error("create payment intent", "error", err, "call_id", call.ID)
		writeError(w, http.StatusBadGateway, "Payment provider unavailable")
		return
	}

	if err := h.calls.SetPaymentIntent(call.ID, intentID); err != nil {
		h.logger.Error("record payment intent", "error", err, "call_id", call.ID)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	h.hub.Broadcast(websocket.Event{
		Type:   "capital_call.processing",
		OrgID:  call.OrgID,
		Actor:  investor.Email,
		Detail: map[string]any{"call_id": call.ID},
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"payment_intent_id": intentID,
		"client_secret":     clientSecret,
	})
}

func (h *CapitalCallHandler) requireGPMember(w http.ResponseWriter, r *http.Request, orgID int64) bool {
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
