package mw

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/utils"
)

type ctxKey int

const authKey ctxKey = iota

// Auth marks the request as authenticated when it carries
// "Authorization: Bearer <secret>". Requests without the header go through as
// anonymous; a wrong token is rejected with 401.
func Auth(secret string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	want := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || len(want) == 0 || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), want) != 1 {
				log.Warn("rejected bearer token",
					logger.String("remote_ip", utils.ClientIP(r, trustProxy)),
					logger.String("path", r.URL.Path))
				w.Header().Set("WWW-Authenticate", `Bearer realm="marks"`)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthenticated(r.Context())))
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Authenticated(r.Context()) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="marks"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticated reports whether Auth accepted the request token.
func Authenticated(ctx context.Context) bool {
	ok, _ := ctx.Value(authKey).(bool)
	return ok
}

// WithAuthenticated returns ctx flagged as authenticated.
func WithAuthenticated(ctx context.Context) context.Context {
	return context.WithValue(ctx, authKey, true)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}` + "\n"))
}
