package middleware

import (
	"net/http"
	"strings"
)

// DomainConfig drives the custom-domain middleware.
type DomainConfig struct {
	SignupHost   string
	LoginHost    string
	MarketingURL string
	// LegacyRedirects maps retired tenant hosts to their new URLs; consulted
	// only for root-path requests.
	LegacyRedirects map[string]string
}

// Pathnames that must 404 on tenant domains rather than hit the view route.
var blockedPathnames = map[string]struct{}{
	"/favicon.ico": {},
	"/robots.txt":  {},
	"/sitemap.xml": {},
	"/wp-login.php": {},
	"/wp-admin":    {},
	"/.env":        {},
}

// Domain resolves a tenant custom-domain or platform-subdomain request to
// its destination: a redirect for platform subdomains and tenant roots, or
// an internal rewrite to the tenant-scoped view route.
type Domain struct {
	Config DomainConfig
	// App serves platform-subdomain passthrough (signup/login surfaces).
	App http.Handler
	// View serves requests rewritten to the tenant-scoped view route.
	View http.Handler
}

func (d *Domain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := StripPort(r.Host)
	path := r.URL.Path

	switch host {
	case d.Config.SignupHost:
		if path == "/" {
			http.Redirect(w, r, "/signup", http.StatusTemporaryRedirect)
			return
		}
		d.App.ServeHTTP(w, r)
		return
	case d.Config.LoginHost:
		if path == "/" {
			http.Redirect(w, r, "/admin/login", http.StatusTemporaryRedirect)
			return
		}
		d.App.ServeHTTP(w, r)
		return
	}

	if path == "/" {
		if target, ok := d.Config.LegacyRedirects[host]; ok {
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		http.Redirect(w, r, d.Config.MarketingURL, http.StatusTemporaryRedirect)
		return
	}

	if _, blocked := blockedPathnames[path]; blocked || strings.Contains(path, ".") {
		// Static-asset-looking paths on tenant domains are not served.
		http.NotFound(w, r)
		return
	}

	// Rewrite to the tenant-scoped view route, keyed by the literal hostname.
	w.Header().Set("X-Robots-Tag", "noindex")
	r.URL.Path = "/view/domains/" + host + path
	d.View.ServeHTTP(w, r)
}
