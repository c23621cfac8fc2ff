package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/abefas/tasktracker/models"
)

// normalizeEmail lower-cases and trims an email so lookups are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isUniqueViolation reports whether err is a unique-constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// CreateUser registers a new account.
func (s *Store) CreateUser(ctx context.Context, email, password string) (models.User, error) {
	email = normalizeEmail(email)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.HashCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var existing int
	// Check if the email already exists.
	err = s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = $1", email).Scan(&existing)
	if err != nil {
		return models.User{}, fmt.Errorf("check existing user: %w", err)
	}
	if existing > 0 {
		return models.User{}, ErrEmailTaken
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    s.timestamp(),
	}
	_, err = s.DB.ExecContext(ctx,
		"INSERT INTO users(id, email, password_hash, created_at) VALUES($1, $2, $3, $4)",
		user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		// Lost a race with a concurrent sign-up for the same email.
		return models.User{}, ErrEmailTaken
	} else if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// Authenticate checks an email/password pair.
func (s *Store) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.userBy(ctx, "email", normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	} else if err != nil {
		return models.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UserByID looks up an account by ID.
func (s *Store) UserByID(ctx context.Context, id string) (models.User, error) {
	return s.userBy(ctx, "id", id)
}

func (s *Store) userBy(ctx context.Context, column, value string) (models.User, error) {
	var u models.User
	// column is one of two fixed identifiers, never user input.
	query := "SELECT id, email, password_hash, created_at FROM users WHERE " + column + " = $1"
	err := s.DB.QueryRowContext(ctx, query, value).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user: %w", ErrNotFound)
	} else if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateResetToken issues a single-use password reset token for the account
// registered under email.
func (s *Store) CreateResetToken(ctx context.Context, email string) (string, error) {
	user, err := s.userBy(ctx, "email", normalizeEmail(email))
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	_, err = s.DB.ExecContext(ctx,
		"INSERT INTO password_resets(token, user_id, expires_at, used) VALUES($1, $2, $3, $4)",
		token, user.ID, s.timestamp().Add(s.ResetTTL), false)
	if err != nil {
		return "", fmt.Errorf("insert reset token: %w", err)
	}
	return token, nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *Store) ResetPassword(ctx context.Context, token, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.HashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	err = tx.QueryRowContext(ctx,
		"SELECT user_id FROM password_resets WHERE token = $1 AND used = $2 AND expires_at > $3",
		token, false, s.timestamp()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrResetTokenInvalid
	} else if err != nil {
		return fmt.Errorf("lookup reset token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE password_resets SET used = $1 WHERE token = $2", true, token); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", string(hashed), userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return tx.Commit()
}
