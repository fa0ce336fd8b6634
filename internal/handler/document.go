package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fundgateapp/fundgate/internal/auth"
	"github.com/fundgateapp/fundgate/internal/docstore"
	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/store"
	"github.com/fundgateapp/fundgate/internal/websocket"
)

const maxUploadBytes = 32 << 20 // 32 MiB

// DocumentHandler serves the fund document API: GP uploads, member listing
// and download, and e-sign acknowledgments.
type DocumentHandler struct {
	docs    *store.DocumentStore
	orgs    *store.OrganizationStore
	objects *docstore.Store
	audit   *store.AuditStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewDocumentHandler(
	docs *store.DocumentStore,
	orgs *store.OrganizationStore,
	objects *docstore.Store,
	audit *store.AuditStore,
	hub *websocket.Hub,
	logger *slog.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		docs:    docs,
		orgs:    orgs,
		objects: objects,
		audit:   audit,
		hub:     hub,
		logger:  logger.With("component", "documents"),
	}
}

// Upload handles POST /api/orgs/{org_id}/documents (multipart). GP only.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization")
		return
	}
	member, ok := h.requireMember(w, r, orgID)
	if !ok {
		return
	}
	if member.Role != model.RoleGP {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read file")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = header.Filename
	}

	objectKey, err := h.objects.Put(r.Context(), orgID, header.Filename, body)
	if err != nil {
		h.logger.Error("upload document", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Could not store document")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := h.docs.Create(&model.Document{
		OrgID:       orgID,
		Title:       title,
		FileName:    header.Filename,
		ObjectKey:   objectKey,
		Size:        int64(len(body)),
		ContentType: contentType,
		UploadedBy:  auth.UserID(r.Context()),
	})
	if err != nil {
		h.logger.Error("record document", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Could not store document")
		return
	}

	h.recordAudit(orgID, auth.Email(r.Context()), model.AuditDocumentUploaded, clientIP(r), doc.Title)
	h.hub.Broadcast(websocket.Event{
		Type:   "document.uploaded",
		OrgID:  orgID,
		Actor:  auth.Email(r.Context()),
		Detail: map[string]any{"document_id": doc.ID, "title": doc.Title},
	})

	writeJSON(w, http.StatusCreated, doc)
}

// List handles GET /api/orgs/{org_id}/documents for any member.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization")
		return
	}
	if _, ok := h.requireMember(w, r, orgID); !ok {
		return
	}

	docs, err := h.docs.ListByOrg(orgID)
	if err != nil {
		h.logger.Error("list documents", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Could not list documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Download handles GET /api/orgs/{org_id}/documents/{id} and streams the
// decrypted body to any member.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization")
		return
	}
	if _, ok := h.requireMember(w, r, orgID); !ok {
		return
	}

	doc, err := h.docs.GetByID(r.PathValue("id"), orgID)
	if err != nil {
		h.logger.Error("get document", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	body, err := h.objects.Get(r.Context(), doc.ObjectKey)
	if err != nil {
		h.logger.Error("fetch document body", "error", err, "document_id", doc.ID)
		writeError(w, http.StatusInternalServerError, "Could not fetch document")
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	w.Write(body)
}

// Sign handles POST /api/orgs/{org_id}/documents/{id}/signature: an investor
// acknowledges a document. The acknowledgment is an audit record; rendering
// signed PDFs is out of scope.
func (h *DocumentHandler) Sign(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization")
		return
	}
	if _, ok := h.requireMember(w, r, orgID); !ok {
		return
	}

	doc, err := h.docs.GetByID(r.PathValue("id"), orgID)
	if err != nil {
		h.logger.Error("get document", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	actor := auth.Email(r.Context())
	if err := h.audit.Insert(&model.AuditLog{
		OrgID:  &orgID,
		Actor:  actor,
		Kind:   model.AuditDocumentSigned,
		IP:     clientIP(r),
		Detail: doc.Title,
	}); err != nil {
		h.logger.Error("record signature", "error", err, "document_id", doc.ID)
		writeError(w, http.StatusInternalServerError, "Could not record signature")
		return
	}

	h.hub.Broadcast(websocket.Event{
		Type:   "document.signed",
		OrgID:  orgID,
		Actor:  actor,
		Detail: map[string]any{"document_id": doc.ID, "title": doc.Title},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed"})
}

// Delete handles DELETE /api/orgs/{org_id}/documents/{id}. GP only. The
// object-store delete is best-effort once the row is gone.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization")
		return
	}
	member, ok := h.requireMember(w, r, orgID)
	if !ok {
		return
	}
	if member.Role != model.RoleGP {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	doc, err := h.docs.GetByID(r.PathValue("id"), orgID)
	if err != nil {
		h.logger.Error("get document", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	if err := h.docs.Delete(doc.ID, orgID); err != nil {
		h.logger.Error("delete document", "error", err, "document_id", doc.ID)
		writeError(w, http.StatusInternalServerError, "Could not delete document")
		return
	}
	if err := h.objects.Delete(r.Context(), doc.ObjectKey); err != nil {
		h.logger.Warn("delete document object", "error", err, "document_id", doc.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) requireMember(w http.ResponseWriter, r *http.Request, orgID int64) (*model.Member, bool) {
	uid := auth.UserID(r.Context())
	if uid == 0 {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	m, err := h.orgs.GetMember(orgID, uid)
	if err != nil {
		h.logger.Error("member check", "error", err, "org_id", orgID)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return nil, false
	}
	if m == nil {
		writeError(w, http.StatusForbidden, "Forbidden")
		return nil, false
	}
	return m, true
}

func (h *DocumentHandler) recordAudit(orgID int64, actor, kind, ip, detail string) {
	if err := h.audit.Insert(&model.AuditLog{
		OrgID:  &orgID,
		Actor:  actor,
		Kind:   kind,
		IP:     ip,
		Detail: detail,
	}); err != nil {
		h.logger.Warn("audit write failed", "error", err)
	}
}
