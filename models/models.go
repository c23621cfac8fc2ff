// --- models/models.go ---
package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents an account held by the backend.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Omit from JSON output for security
	CreatedAt    time.Time `json:"createdAt"`
}

// Credentials is the sign-in / sign-up form payload.
type Credentials struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

// Claims defines the information stored in the session JWT.
// The user ID travels in the registered "sub" claim.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}
