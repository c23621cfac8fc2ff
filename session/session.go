// Package session resolves the caller's identity from the session cookie and
// issues the signed tokens stored in it.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abefas/tasktracker/database"
	"github.com/abefas/tasktracker/models"
)

// CookieName is the session cookie.
const CookieName = "tasks_session"

// TokenLifetime is how long an issued session stays valid.
const TokenLifetime = 24 * time.Hour

// Identity is the authenticated principal of a request. The zero value means
// "unauthenticated".
type Identity struct {
	ID    string
	Email string
}

// Anonymous is the explicit unauthenticated marker.
var Anonymous = Identity{}

// Authenticated reports whether id names a user.
func (id Identity) Authenticated() bool {
	return id.ID != ""
}

// UserLookup confirms that a token's subject still exists.
type UserLookup interface {
	UserByID(ctx context.Context, id string) (models.User, error)
}

// Issuer signs session tokens.
type Issuer struct {
	key    []byte
	secure bool
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with key. secure marks cookies Secure.
func NewIssuer(key []byte, secure bool) *Issuer {
	return &Issuer{key: key, secure: secure, now: time.Now}
}

// Issue creates a signed token for user.
func (i *Issuer) Issue(user models.User) (string, time.Time, error) {
	expirationTime := i.now().Add(TokenLifetime)
	claims := &models.Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expirationTime, nil
}

// SetCookie issues a token for user and stores it on the response.
func (i *Issuer) SetCookie(w http.ResponseWriter, user models.User) error {
	token, expires, err := i.Issue(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie removes the session cookie.
func (i *Issuer) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Guard resolves identities from requests.
type Guard struct {
	key   []byte
	users UserLookup
}

// NewGuard returns a Guard verifying tokens signed with key.
func NewGuard(key []byte, users UserLookup) *Guard {
	return &Guard{key: key, users: users}
}

// Resolve returns the identity behind the request's session cookie.
// A missing, malformed or expired token, or a token whose user no longer
// exists, yields ok=false and a nil error. A non-nil error means the backend
// could not be queried.
func (g *Guard) Resolve(ctx context.Context, r *http.Request) (Identity, bool, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Anonymous, false, nil
	}

	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
		return g.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return Anonymous, false, nil
	}

	user, err := g.users.UserByID(ctx, claims.Subject)
	if errors.Is(err, database.ErrNotFound) {
		return Anonymous, false, nil
	} else if err != nil {
		return Anonymous, false, fmt.Errorf("resolve session: %w", err)
	}

	return Identity{ID: user.ID, Email: user.Email}, true, nil
}

// ContextKey is a custom type to avoid context key collisions.
type ContextKey string

// IdentityKey is the key the middleware stores the Identity under.
const IdentityKey ContextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// FromContext returns the identity stored by WithIdentity, or Anonymous.
func FromContext(ctx context.Context) Identity {
	id, ok := ctx.Value(IdentityKey).(Identity)
	if !ok {
		return Anonymous
	}
	return id
}
