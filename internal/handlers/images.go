package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-hq/backoffice/internal/storage"
)

// ImageOpener reads stored product images.
type ImageOpener interface {
	OpenImage(ctx context.Context, key string) (storage.Object, error)
}

// ImageHandler streams product images out of object storage.
type ImageHandler struct {
	images ImageOpener
	logger *slog.Logger
}

func NewImageHandler(images ImageOpener, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{images: images, logger: logger}
}

// ImageRouter registers GET /* under the images prefix.
func ImageRouter(r chi.Router, h *ImageHandler) {
	r.Get("/*", h.ServeImage)
}

func (h *ImageHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		http.NotFound(w, r)
		return
	}

	obj, err := h.images.OpenImage(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to open image", "path", r.URL.Path, "error", err)
		http.Error(w, "failed to load image", http.StatusInternalServerError)
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.WarnContext(r.Context(), "image stream interrupted", "path", r.URL.Path, "error", err)
	}
}
