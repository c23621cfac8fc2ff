package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// BrowserCookie identifies a browser across requests, signed in or not.
// Notifications are queued under this key.
const BrowserCookie = "tasks_browser"

type browserKey struct{}

// BrowserID ensures the request carries a browser ID cookie and stores the
// ID on the context.
func BrowserID(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(BrowserCookie); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     BrowserCookie,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), browserKey{}, id)))
		})
	}
}

// BrowserFromContext returns the ID stored by BrowserID, or "" outside it.
func BrowserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(browserKey{}).(string)
	return id
}
