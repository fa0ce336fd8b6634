package handler

import (
	"html/template"
	"net/http"

	"github.com/fundgateapp/fundgate/internal/auth"
)

// Pages serves the minimal server-rendered shells behind each route group.
// The real UI is a client app; these keep every guarded path addressable.
type Pages struct{}

func NewPages() *Pages { return &Pages{} }

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Email}}<p>Signed in as {{.Email}}</p>{{end}}
{{if .Body}}<p>{{.Body}}</p>{{end}}
</body>
</html>
`))

func (p *Pages) render(w http.ResponseWriter, r *http.Request, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	pageTmpl.Execute(w, map[string]string{
		"Title": title,
		"Email": auth.Email(r.Context()),
		"Body":  body,
	})
}

func (p *Pages) Landing(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	p.render(w, r, "Fundgate", "Investor relations for private funds.")
}

func (p *Pages) Login(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "Sign in", "Enter your email to receive a sign-in link.")
}

func (p *Pages) LPLogin(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "Investor sign in", "Enter your email to receive a sign-in link.")
}

func (p *Pages) AdminLogin(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "Admin sign in", "Enter your team email to receive a sign-in link.")
}

func (p *Pages) Signup(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "Create your fund", "Set up a new fund workspace.")
}

func (p *Pages) Onboarding(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "Onboarding", "Finish setting up your fund.")
}

func (p *Pages) Welcome(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "Welcome", "Your account was just created.")
}

func (p *Pages) Hub(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "Investor hub", "Your funds, documents, and capital calls.")
}

func (p *Pages) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "Admin console", "Manage funds, investors, and documents.")
}

func (p *Pages) ViewerPortal(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "Viewer portal", "You have view-only access.")
}

func (p *Pages) ViewerRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/viewer-portal", http.StatusSeeOther)
}

func (p *Pages) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
