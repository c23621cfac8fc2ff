// --- middleware/auth.go ---
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/abefas/tasktracker/session"
)

// Resolver looks up the identity behind a request.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (session.Identity, bool, error)
}

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/login"

// IsPublic reports whether path may be served without a session.
func IsPublic(path string) bool {
	switch path {
	case "/", "/login", "/forgot", "/favicon.ico":
		return true
	}
	return path == "/auth" ||
		strings.HasPrefix(path, "/auth/") ||
		strings.HasPrefix(path, "/static/")
}

// AuthMiddleware resolves the session on every request and adds the identity
// to the request context. Requests for non-public paths without an identity
// are redirected to the login page.
func AuthMiddleware(guard Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			public := IsPublic(r.URL.Path)
			if strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			id, ok, err := guard.Resolve(r.Context(), r)
			if err != nil {
				log.Error("Session lookup failed", "path", r.URL.Path, "err", err)
				if !public {
					http.Error(w, "Authentication service unavailable", http.StatusInternalServerError)
					return
				}
			}

			if !ok && !public {
				log.Debug("Redirecting unauthenticated request", "path", r.URL.Path)
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}

			// Add the identity to the request context before passing it to the next handler.
			ctx := session.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
