package handlers

import (
	"net/http"

	"github.com/storefront-hq/backoffice/internal/web"
)

// Dashboard renders today's, this month's and this year's order figures.
func (h *OrderHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		h.pageError(w, r, err, "")
		return
	}
	h.pages.Render(w, http.StatusOK, "dashboard", web.Page{Title: "Dashboard", Identity: identityPtr(r), Data: stats})
}
