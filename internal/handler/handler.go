// Package handler contains the HTTP handlers behind the entry proxy: auth
// flows, tenant views, document and capital-call APIs, and webhooks.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fundgateapp/fundgate/internal/middleware"
)

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// clientIP reads the address resolved by the entry proxy.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get(middleware.ClientIPHeader); ip != "" {
		return ip
	}
	return middleware.UnknownIP
}

// orgIDFromPath parses the {org_id} path value.
func orgIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("org_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
