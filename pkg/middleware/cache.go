package middleware

import "net/http"

// NoStore marks every response as uncacheable. Mount it on routes that
// return credentials so no intermediary or browser cache keeps a copy.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
