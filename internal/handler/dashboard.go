package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/tcobb/launchbase/internal/auth"
	"github.com/tcobb/launchbase/internal/store"
)

type DashboardHandler struct {
	userStore         *store.UserStore
	subscriptionStore *store.SubscriptionStore
	priceStore        *store.PriceStore
	renderer          *Renderer
	logger            *slog.Logger
}

func NewDashboardHandler(
	us *store.UserStore,
	ss *store.SubscriptionStore,
	ps *store.PriceStore,
	renderer *Renderer,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		userStore:         us,
		subscriptionStore: ss,
		priceStore:        ps,
		renderer:          renderer,
		logger:            logger,
	}
}

// Overview renders the dashboard landing page.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	status := "free"
	if user.SubscriptionStatus != nil {
		status = *user.SubscriptionStatus
	}

	h.renderer.Render(w, "dashboard.html", map[string]any{
		"User":               user,
		"SubscriptionStatus": status,
		"SubscriptionPlan":   user.SubscriptionPlan,
		"IsAdmin":            user.Role == "admin",
		"ActiveNav":          "dashboard",
	})
}

// SettingsPage renders the profile and password forms.
func (h *DashboardHandler) SettingsPage(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	data := map[string]any{
		"User":      user,
		"IsAdmin":   user.Role == "admin",
		"ActiveNav": "settings",
	}
	switch r.URL.Query().Get("updated") {
	case "profile":
		data["Notice"] = "Profile updated."
	case "password":
		data["Notice"] = "Password changed."
	}
	h.renderer.Render(w, "settings.html", data)
}

// UpdateProfile changes the user's display name.
func (h *DashboardHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/dashboard/settings", http.StatusSeeOther)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		h.renderer.Render(w, "settings.html", map[string]any{"Error": "Name is required", "ActiveNav": "settings"})
		return
	}

	if err := h.userStore.UpdateName(userID, name); err != nil {
		h.logger.Error("update name", "error", err)
		h.renderer.Render(w, "settings.html", map[string]any{"Error": "Unable to update profile", "ActiveNav": "settings"})
		return
	}
	http.Redirect(w, r, "/dashboard/settings?updated=profile", http.StatusSeeOther)
}

// ChangePassword verifies the current password and stores a new hash.
func (h *DashboardHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	user, err := h.userStore.GetByID(userID)
	if err != nil || user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/dashboard/settings", http.StatusSeeOther)
		return
	}

	current := r.FormValue("current_password")
	next := r.FormValue("new_password")

	_, hash, err := h.userStore.PasswordHash(user.Email)
	if err != nil {
		h.logger.Error("get password hash", "error", err)
		h.renderer.Render(w, "settings.html", map[string]any{"User": user, "Error": "Unable to change password", "ActiveNav": "settings"})
		return
	}
	if !auth.CheckPassword(hash, current) {
		h.renderer.Render(w, "settings.html", map[string]any{"User": user, "Error": "Current password is incorrect", "ActiveNav": "settings"})
		return
	}

	newHash, err := auth.HashPassword(next)
	if err != nil {
		h.renderer.Render(w, "settings.html", map[string]any{"User": user, "Error": err.Error(), "ActiveNav": "settings"})
		return
	}

	if err := h.userStore.UpdatePasswordHash(userID, newHash); err != nil {
		h.logger.Error("update password hash", "error", err)
		h.renderer.Render(w, "settings.html", map[string]any{"User": user, "Error": "Unable to change password", "ActiveNav": "settings"})
		return
	}
	http.Redirect(w, r, "/dashboard/settings?updated=password", http.StatusSeeOther)
}

// SubscriptionPage renders the plan catalog with the user's current plan.
func (h *DashboardHandler) SubscriptionPage(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	plans, err := h.priceStore.ListActivePlans()
	if err != nil {
		h.logger.Error("list plans", "error", err)
	}

	sub, err := h.subscriptionStore.GetByUserID(user.ID)
	if err != nil {
		h.logger.Error("get subscription", "error", err)
	}

	h.renderer.Render(w, "subscription.html", map[string]any{
		"User":         user,
		"Plans":        plans,
		"Subscription": sub,
		"CurrentPlan":  user.SubscriptionPlan,
		"IsAdmin":      user.Role == "admin",
		"ActiveNav":    "subscription",
	})
}
