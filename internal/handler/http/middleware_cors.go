package http

import (
	"net/http"
)

const corsAllowMethods = "GET,HEAD,PUT,POST,DELETE,PATCH"

// withCORS allows any origin. Preflight requests are answered with 204 and
// never reach the router.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Expose-Headers", traceIDHeader)

		if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
			h.Set("Access-Control-Allow-Headers", requested)
			h.Add("Vary", "Access-Control-Request-Headers")
		}
		h.Del("Content-Length")
		h.Del("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	})
}
