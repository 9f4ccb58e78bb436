package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-hq/backoffice/internal/services"
	"github.com/storefront-hq/backoffice/internal/session"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/internal/web"
	"github.com/storefront-hq/backoffice/types"
)

// AuthHandler serves login, registration and logout, and owns the session middleware.
type AuthHandler struct {
	users    *services.UserService
	sessions *session.Manager
	pages    *web.Renderer
	logger   *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, sessions *session.Manager, pages *web.Renderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		pages:    pages,
		logger:   logger,
	}
}

// AuthRouter registers the HTML auth pages.
func AuthRouter(r chi.Router, h *AuthHandler) {
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.LoginSubmit)
	r.Get("/register", h.RegisterPage)
	r.Post("/register", h.RegisterSubmit)
	r.Post("/logout", h.Logout)
}

// AuthAPIRouter registers the JSON auth endpoints.
func AuthAPIRouter(r chi.Router, h *AuthHandler) {
	r.Post("/login", h.LoginJSON)
	r.Post("/logout", h.LogoutJSON)
	r.With(h.RequireAuth).Get("/me", h.MeJSON)
}

// LoadSession attaches the identity of a valid session to the request context.
// Requests without a valid session pass through anonymously.
func (h *AuthHandler) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := h.sessions.TokenFromRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := h.sessions.Parse(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// RequireAuth rejects anonymous requests: pages redirect to /login, API calls get 401.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			h.unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects sessions without the admin role with 403.
func (h *AuthHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			h.unauthorized(w, r)
			return
		}
		if !identity.IsAdmin() {
			if isAPIRequest(r) {
				writeError(w, http.StatusForbidden, "admin access required")
				return
			}
			h.pages.Error(w, http.StatusForbidden, &identity, "Admin access required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AuthHandler) unauthorized(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

type credentialsForm struct {
	Email string
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, http.StatusOK, "login", web.Page{Title: "Log in", Identity: identityPtr(r), Data: credentialsForm{}})
}

// LoginSubmit verifies the form credentials and starts a session.
func (h *AuthHandler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	form := credentialsForm{Email: email}

	if email == "" || password == "" {
		h.pages.Render(w, http.StatusBadRequest, "login", web.Page{Title: "Log in", Error: "Email and password required.", Data: form})
		return
	}

	user, err := h.users.Authenticate(r.Context(), email, password)
	if err != nil {
		status, message := http.StatusUnauthorized, "Invalid email or password."
		if !errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.ErrorContext(r.Context(), "login failed", "error", err)
			status, message = http.StatusInternalServerError, "An error occurred, please try again."
		}
		h.pages.Render(w, status, "login", web.Page{Title: "Log in", Error: message, Data: form})
		return
	}

	if err := h.startSession(w, user); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue session", "error", err)
		h.pages.Error(w, http.StatusInternalServerError, nil, "Failed to start session.")
		return
	}

	target := "/orders"
	if user.IsAdmin() {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, http.StatusOK, "register", web.Page{Title: "Register", Identity: identityPtr(r), Data: credentialsForm{}})
}

// RegisterSubmit creates a customer account and sends the user to the login page.
func (h *AuthHandler) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	form := credentialsForm{Email: email}

	if email == "" || password == "" || password != r.PostFormValue("confirm") {
		h.pages.Render(w, http.StatusBadRequest, "register", web.Page{
			Title: "Register",
			Error: "Invalid input or passwords don't match.",
			Data:  form,
		})
		return
	}

	if _, err := h.users.Register(r.Context(), email, password); err != nil {
		status, message := errorStatus(err, "")
		switch {
		case errors.Is(err, store.ErrConflict):
			message = "That email is already registered."
		case status == http.StatusInternalServerError:
			h.logger.ErrorContext(r.Context(), "registration failed", "error", err)
			message = "Registration failed, please try again."
		}
		h.pages.Render(w, status, "register", web.Page{Title: "Register", Error: message, Data: form})
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Logout revokes the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginRequest is the JSON login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued session token for API clients.
type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

func (h *AuthHandler) LoginJSON(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}

	token, expires, err := h.sessions.Issue(user)
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	h.sessions.SetCookie(w, token, expires)
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires, User: user})
}

func (h *AuthHandler) LogoutJSON(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// MeJSON returns the account behind the current session.
func (h *AuthHandler) MeJSON(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	user, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		respondError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user types.User) error {
	token, expires, err := h.sessions.Issue(user)
	if err != nil {
		return err
	}
	h.sessions.SetCookie(w, token, expires)
	return nil
}

func (h *AuthHandler) endSession(w http.ResponseWriter, r *http.Request) {
	if token, err := h.sessions.TokenFromRequest(r); err == nil {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			h.logger.WarnContext(r.Context(), "failed to revoke session", "error", err)
		}
	}
	h.sessions.ClearCookie(w)
}
