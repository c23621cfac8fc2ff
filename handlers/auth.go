package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/abefas/tasktracker/database"
	"github.com/abefas/tasktracker/session"
	"github.com/abefas/tasktracker/views"
)

const minPasswordLength = 6

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendReset(ctx context.Context, email, link string) error
}

// LogMailer writes reset links to the log instead of sending mail.
type LogMailer struct{}

// SendReset implements ResetMailer.
func (LogMailer) SendReset(ctx context.Context, email, link string) error {
	log.Info("Password reset requested", "email", email, "link", link)
	return nil
}

// validateCredentials checks the shape of a sign-in or sign-up form.
func validateCredentials(email, password string) string {
	if _, err := mail.ParseAddress(email); err != nil || strings.TrimSpace(email) == "" {
		return "Enter a valid email address"
	}
	if len(password) < minPasswordLength {
		return "Password must be at least 6 characters"
	}
	return ""
}

// Home sends signed-in users to their tasks and everyone else to the login page.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()).Authenticated() {
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginPage renders the sign-in or sign-up form.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()).Authenticated() {
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, views.PageLogin, &views.AuthPage{
		SignUp:        r.URL.Query().Get("mode") == "signup",
		Notifications: h.Notes.Live(h.owner(r)),
	})
}

// Login handles both sign-in and sign-up submissions.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	page := &views.AuthPage{
		SignUp: r.PostFormValue("mode") == "signup",
		Email:  strings.TrimSpace(r.PostFormValue("email")),
	}
	password := r.PostFormValue("password")
	owner := h.owner(r)

	fail := func(status int, msg string) {
		page.Err = msg
		h.Notes.Error(owner, "Authentication error", msg)
		page.Notifications = h.Notes.Live(owner)
		h.render(w, r, status, views.PageLogin, page)
	}

	if msg := validateCredentials(page.Email, password); msg != "" {
		page.Err = msg
		page.Notifications = h.Notes.Live(owner)
		h.render(w, r, http.StatusUnprocessableEntity, views.PageLogin, page)
		return
	}

	if page.SignUp {
		if password != r.PostFormValue("confirmPassword") {
			page.Err = "Passwords do not match"
			page.Notifications = h.Notes.Live(owner)
			h.render(w, r, http.StatusUnprocessableEntity, views.PageLogin, page)
			return
		}

		user, err := h.Accounts.CreateUser(r.Context(), page.Email, password)
		if errors.Is(err, database.ErrEmailTaken) {
			fail(http.StatusConflict, "An account with this email already exists")
			return
		} else if err != nil {
			log.Error("Sign-up failed", "email", page.Email, "err", err)
			fail(http.StatusInternalServerError, "Could not create account")
			return
		}

		if err := h.Issuer.SetCookie(w, user); err != nil {
			log.Error("Failed to issue session", "user_id", user.ID, "err", err)
			fail(http.StatusInternalServerError, "Could not sign you in")
			return
		}
		log.Info("Account created", "user_id", user.ID)
		h.Notes.Success(owner, "Account created", "Welcome! Add your first task.")
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
		return
	}

	user, err := h.Accounts.Authenticate(r.Context(), page.Email, password)
	if errors.Is(err, database.ErrInvalidCredentials) {
		fail(http.StatusUnauthorized, "Invalid email or password")
		return
	} else if err != nil {
		log.Error("Sign-in failed", "email", page.Email, "err", err)
		fail(http.StatusInternalServerError, "Could not sign you in")
		return
	}

	if err := h.Issuer.SetCookie(w, user); err != nil {
		log.Error("Failed to issue session", "user_id", user.ID, "err", err)
		fail(http.StatusInternalServerError, "Could not sign you in")
		return
	}
	h.Notes.Success(owner, "Signed in", "Redirecting to tasks...")
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

// Logout clears the session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Issuer.ClearCookie(w)
	h.Notes.Info(h.owner(r), "Logged out", "")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// ForgotPage renders the reset request form.
func (h *Handlers) ForgotPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.PageForgot, &views.AuthPage{
		Notifications: h.Notes.Live(h.owner(r)),
	})
}

// Forgot issues a reset link. The response is the same whether or not the
// email is registered.
func (h *Handlers) Forgot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	owner := h.owner(r)

	if _, err := mail.ParseAddress(email); err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, views.PageForgot, &views.AuthPage{
			Email:         email,
			Err:           "Enter a valid email address",
			Notifications: h.Notes.Live(owner),
		})
		return
	}

	token, err := h.Accounts.CreateResetToken(r.Context(), email)
	switch {
	case errors.Is(err, database.ErrNotFound):
		log.Debug("Password reset for unknown email", "email", email)
	case err != nil:
		log.Error("Failed to create reset token", "email", email, "err", err)
		h.Notes.Error(owner, "Reset failed", "Failed to send reset email")
		h.render(w, r, http.StatusInternalServerError, views.PageForgot, &views.AuthPage{
			Email:         email,
			Err:           "Failed to send reset email",
			Notifications: h.Notes.Live(owner),
		})
		return
	default:
		if err := h.Mailer.SendReset(r.Context(), email, "/auth/reset?token="+token); err != nil {
			log.Error("Failed to send reset email", "email", email, "err", err)
		}
	}

	h.Notes.Success(owner, "Check your inbox", "If an account exists you will receive reset instructions")
	http.Redirect(w, r, "/forgot", http.StatusSeeOther)
}

// ResetPage renders the new-password form for a reset token.
func (h *Handlers) ResetPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.PageReset, &views.AuthPage{
		Token:         r.URL.Query().Get("token"),
		Notifications: h.Notes.Live(h.owner(r)),
	})
}

// Reset consumes a reset token and sets the new password.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	owner := h.owner(r)
	page := &views.AuthPage{Token: r.PostFormValue("token")}
	password := r.PostFormValue("password")

	rerender := func(status int, msg string) {
		page.Err = msg
		page.Notifications = h.Notes.Live(owner)
		h.render(w, r, status, views.PageReset, page)
	}

	switch {
	case len(password) < minPasswordLength:
		rerender(http.StatusUnprocessableEntity, "Password must be at least 6 characters")
		return
	case password != r.PostFormValue("confirmPassword"):
		rerender(http.StatusUnprocessableEntity, "Passwords do not match")
		return
	}

	err := h.Accounts.ResetPassword(r.Context(), page.Token, password)
	if errors.Is(err, database.ErrResetTokenInvalid) {
		rerender(http.StatusBadRequest, database.ErrResetTokenInvalid.Error())
		return
	} else if err != nil {
		log.Error("Password reset failed", "err", err)
		rerender(http.StatusInternalServerError, "Could not reset password")
		return
	}

	h.Notes.Success(owner, "Password updated", "Sign in with your new password")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
