package handler

import (
	"log/slog"
	"net/http"

	"github.com/tcobb/launchbase/internal/auth"
	"github.com/tcobb/launchbase/internal/store"
)

type AdminHandler struct {
	userStore *store.UserStore
	renderer  *Renderer
	logger    *slog.Logger
}

func NewAdminHandler(us *store.UserStore, renderer *Renderer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		userStore: us,
		renderer:  renderer,
		logger:    logger,
	}
}

// adminStat is one headline card on the admin panel.
type adminStat struct {
	Title  string
	Value  string
	Change string
}

// Panel renders the admin overview. The headline numbers are placeholders;
// only the recent-users table reads real rows.
func (h *AdminHandler) Panel(w http.ResponseWriter, r *http.Request) {
	stats := []adminStat{
		{Title: "Total Users", Value: "2,543", Change: "+12.5%"},
		{Title: "Active Subscriptions", Value: "1,234", Change: "+8.2%"},
		{Title: "Monthly Revenue", Value: "$122,430", Change: "+15.3%"},
		{Title: "Growth Rate", Value: "+23.1%", Change: "+4.7%"},
	}

	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	recent, err := h.userStore.Recent(5)
	if err != nil {
		h.logger.Error("list recent users", "error", err)
	}

	h.renderer.Render(w, "admin.html", map[string]any{
		"User":        user,
		"Stats":       stats,
		"RecentUsers": recent,
		"IsAdmin":     true,
		"ActiveNav":   "admin",
	})
}
