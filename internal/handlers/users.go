package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/storefront-hq/backoffice/internal/services"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/internal/web"
	"github.com/storefront-hq/backoffice/types"
)

const userParam = "userID"

// UserHandler serves the admin account pages.
type UserHandler struct {
	users  *services.UserService
	pages  *web.Renderer
	logger *slog.Logger
}

func NewUserHandler(users *services.UserService, pages *web.Renderer, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, pages: pages, logger: logger}
}

// UserRouter registers the account management pages.
func UserRouter(r chi.Router, h *UserHandler) {
	r.Get("/", h.ListUsers)
	r.Get("/add", h.NewUserForm)
	r.Post("/add", h.CreateUser)
	r.Post("/{"+userParam+"}/delete", h.DeleteUser)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		renderPageError(w, r, h.pages, h.logger, err, "")
		return
	}
	h.pages.Render(w, http.StatusOK, "users", web.Page{Title: "Users", Identity: identityPtr(r), Data: users})
}

type userFormData struct {
	Email string
	Role  types.Role
}

func (h *UserHandler) NewUserForm(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, http.StatusOK, "user_form", web.Page{
		Title:    "Add user",
		Identity: identityPtr(r),
		Data:     userFormData{Role: types.RoleCustomer},
	})
}

// CreateUser adds an account with the submitted role.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	input := services.NewUserInput{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Role:     types.Role(strings.TrimSpace(r.PostFormValue("role"))),
	}

	if _, err := h.users.AddUser(r.Context(), input); err != nil {
		status, message := errorStatus(err, "")
		switch {
		case errors.Is(err, store.ErrConflict):
			message = "A user with this email already exists."
		case status == http.StatusInternalServerError:
			renderPageError(w, r, h.pages, h.logger, err, "")
			return
		}
		h.pages.Render(w, status, "user_form", web.Page{
			Title:    "Add user",
			Identity: identityPtr(r),
			Error:    message,
			Data:     userFormData{Email: input.Email, Role: input.Role},
		})
		return
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, userParam))
	if err != nil {
		h.pages.Error(w, http.StatusBadRequest, identityPtr(r), "Invalid user ID.")
		return
	}
	if identity, ok := IdentityFromContext(r.Context()); ok && identity.UserID == id {
		h.pages.Error(w, http.StatusBadRequest, &identity, "You cannot delete your own account.")
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		renderPageError(w, r, h.pages, h.logger, err, "User not found.")
		return
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}
