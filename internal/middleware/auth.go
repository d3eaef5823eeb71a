package middleware

import (
	"net/http"
	"strings"

	"github.com/dukerupert/linkshelf/internal/auth"
	"github.com/dukerupert/linkshelf/internal/response"
)

// SessionResolver looks up the username behind a session token.
type SessionResolver interface {
	Resolve(token string) (string, bool)
}

// RequireSession admits requests whose Cookie header carries a live session
// token and attaches the resolved identity to the request context. Every
// other request gets the same 401 envelope, whatever the reason, and the
// wrapped handler is not called.
func RequireSession(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.ParseSessionToken(strings.Join(r.Header.Values("Cookie"), "; "))
			if !ok {
				response.Fail(w, response.Unauthorized, "")
				return
			}

			username, ok := sessions.Resolve(token)
			if !ok {
				response.Fail(w, response.Unauthorized, "")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				Username: username,
				Token:    token,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
