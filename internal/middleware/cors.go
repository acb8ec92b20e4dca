package middleware

import (
	"net/http"
	"strings"

	h "github.com/gorilla/handlers"
)

var (
	allowedMethods = []string{http.MethodPost, http.MethodGet, http.MethodOptions}
	allowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}
)

// CORS admits browser callers from any origin. Preflight requests are passed
// through to the router so they can be answered with a body.
func CORS() func(http.Handler) http.Handler {
	cors := h.CORS(
		h.AllowedOrigins([]string{"*"}),
		h.AllowedMethods(allowedMethods),
		h.AllowedHeaders(allowedHeaders),
		h.IgnoreOptions(),
	)
	return func(next http.Handler) http.Handler {
		inner := cors(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				hdr := w.Header()
				hdr.Set("Access-Control-Allow-Origin", "*")
				hdr.Set("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
				hdr.Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
			}
			inner.ServeHTTP(w, r)
		})
	}
}
