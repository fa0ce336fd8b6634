package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fundgateapp/fundgate/internal/errorreport"
)

// Entry is the single entry proxy every inbound request passes through. It
// validates the Host header and client IP, sanitizes the path, classifies
// the request, and dispatches to exactly one downstream pipeline.
type Entry struct {
	Classifier *Classifier

	// Analytics handles ingest passthrough (vendor proxy or no-op).
	Analytics http.Handler
	// Webhook is the vendor webhook mux.
	Webhook http.Handler
	// Domain is the tenant/platform custom-domain middleware.
	Domain http.Handler
	// App is the guard-wrapped application router.
	App http.Handler
	// Passthrough serves exempt paths without the guard.
	Passthrough http.Handler

	Reporter errorreport.Reporter
	Logger   *slog.Logger
}

func (e *Entry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", rec)
			}
			if e.Reporter != nil {
				e.Reporter.Report(err, map[string]string{
					"path":   r.URL.Path,
					"method": r.Method,
					"host":   r.Host,
				})
			}
			// Generic 500 — never leak internals to the client.
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		}
	}()

	host := StripPort(r.Host)
	if !ValidHost(host) {
		writeJSONError(w, http.StatusBadRequest, "Invalid Host header")
		return
	}

	// Replace any client-supplied value with the sanitized IP.
	r.Header.Set(ClientIPHeader, RealIP(r))
	r.URL.Path = SanitizePath(r.URL.Path)

	securityHeaders(w)

	switch e.Classifier.Classify(host, r.URL.Path) {
	case ClassAnalytics:
		e.Analytics.ServeHTTP(w, r)
	case ClassWebhook:
		e.Webhook.ServeHTTP(w, r)
	case ClassDomain:
		e.Domain.ServeHTTP(w, r)
	case ClassApp:
		e.App.ServeHTTP(w, r)
	default:
		e.Passthrough.ServeHTTP(w, r)
	}
}

func securityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
