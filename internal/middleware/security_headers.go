package middleware

import "net/http"

// SecurityHeaders sets response headers suited to a JSON API that
// handles health data.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		// responses carry health data
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
