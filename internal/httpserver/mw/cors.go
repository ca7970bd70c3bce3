package mw

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// CORS allows browser clients on other origins to call the API with a bearer
// token. Preflight requests are answered directly.
func CORS() func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodHead, http.MethodPost,
			http.MethodPut, http.MethodDelete, http.MethodOptions,
		}),
		handlers.ExposedHeaders([]string{"Location", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"}),
		handlers.MaxAge(600), // the library caps it at 10 minutes
		handlers.OptionStatusCode(http.StatusNoContent),
	)
}
