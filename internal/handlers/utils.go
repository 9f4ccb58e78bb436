package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-hq/backoffice/internal/services"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/types"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func withIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// IdentityFromContext returns the session identity attached by LoadSession.
func IdentityFromContext(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(contextIdentityKey).(types.Identity)
	return identity, ok
}

// identityPtr is the template-friendly form of the request identity.
func identityPtr(r *http.Request) *types.Identity {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	return &identity
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// isAPIRequest reports whether the caller expects JSON rather than HTML.
func isAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func parseIDParam(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// errorStatus maps domain errors to an HTTP status and a client-safe message.
// Unknown errors map to 500 and should be logged by the caller.
func errorStatus(err error, notFound string) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrCategoryNotFound):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrUploadsDisabled):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusUnauthorized, "session user no longer exists"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "already exists"
	case errors.Is(err, store.ErrProductInUse):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondError writes a JSON error for err, logging anything unexpected.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFound string) {
	status, message := errorStatus(err, notFound)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, message)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
