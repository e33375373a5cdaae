package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the storefront's browser origins call the API with credentials.
// An empty list refuses every cross-origin caller. Webhooks come server to
// server and are unaffected.
func CORS(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}
	if len(origins) == 0 {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return cors.Handler(opts)
}
