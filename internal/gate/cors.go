package gate

import "net/http"

// Fixed CORS grant. The origin is echoed per request; everything else is
// static so preflight responses are cacheable for a full day.
const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "content-type, authorization, x-client-info, apikey, x-requested-with"
	corsMaxAge       = "86400"
)

// writeCORS sets the shared CORS headers on every gated response. The
// Origin header is echoed back verbatim; Vary prevents caches from serving
// one origin's grant to another.
func writeCORS(w http.ResponseWriter, origin string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	if origin == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
}

// writePreflight answers an OPTIONS request in full. No session or tenant
// state is consulted; preflights are anonymous by definition.
func writePreflight(w http.ResponseWriter, origin string) {
	writeCORS(w, origin)
	h := w.Header()
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
	w.WriteHeader(http.StatusNoContent)
}
