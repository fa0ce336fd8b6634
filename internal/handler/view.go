package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/fundgateapp/fundgate/internal/store"
)

// ViewHandler serves the public tenant pages reached through custom domains.
// The entry proxy rewrites acme-capital.com/overview to
// /view/domains/acme-capital.com/overview before it lands here.
type ViewHandler struct {
	orgs   *store.OrganizationStore
	docs   *store.DocumentStore
	logger *slog.Logger
}

func NewViewHandler(orgs *store.OrganizationStore, docs *store.DocumentStore, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{orgs: orgs, docs: docs, logger: logger.With("component", "view")}
}

var tenantPageTmpl = template.Must(template.New("tenant").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.OrgName}}</title></head>
<body>
<h1>{{.OrgName}}</h1>
<h2>Fund documents</h2>
<ul>
{{range .Documents}}<li>{{.Title}}</li>
{{else}}<li>No documents published yet.</li>
{{end}}</ul>
</body>
</html>
`))

// Domain handles GET /view/domains/{host}/{path...}.
func (h *ViewHandler) Domain(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")
	if host == "" {
		http.NotFound(w, r)
		return
	}

	domain, err := h.orgs.GetDomainByHost(host)
	if err != nil {
		h.logger.Error("domain lookup", "error", err, "host", host)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}
	if domain == nil {
		http.NotFound(w, r)
		return
	}

	org, err := h.orgs.GetByID(domain.OrgID)
	if err != nil || org == nil {
		h.logger.Error("org lookup", "error", err, "host", host)
		http.NotFound(w, r)
		return
	}

	docs, err := h.docs.ListByOrg(org.ID)
	if err != nil {
		h.logger.Error("list documents", "error", err, "org_id", org.ID)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tenantPageTmpl.Execute(w, map[string]any{
		"OrgName":   org.Name,
		"Documents": docs,
	})
}

// Unsubscribe handles GET /unsubscribe: exempt from tenant routing so the
// link works from any host an email was opened on.
func (h *ViewHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<p>You have been unsubscribed from fund notifications.</p>"))
}
