package handler

import (
	"encoding/json"
	"net/http"
	neturl "net/url"

	"github.com/tcobb/launchbase/internal/auth"
	"github.com/tcobb/launchbase/internal/model"
	"github.com/tcobb/launchbase/internal/store"
	stripeclient "github.com/tcobb/launchbase/internal/stripe"
)

type CheckoutHandler struct {
	stripeClient *stripeclient.Client
	userStore    *store.UserStore
	baseURL      string
}

func NewCheckoutHandler(sc *stripeclient.Client, us *store.UserStore, baseURL string) *CheckoutHandler {
	return &CheckoutHandler{
		stripeClient: sc,
		userStore:    us,
		baseURL:      baseURL,
	}
}

// CreateCheckoutSession creates a Stripe checkout session and returns its URL.
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Plan == "" {
		req.Plan = model.PlanPro
	}

	user, err := h.userStore.GetByID(userID)
	if err != nil || user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	// Ensure a Stripe customer exists before checkout
	customerID := ""
	if user.StripeCustomerID != nil {
		customerID = *user.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = h.stripeClient.CreateCustomer(user.Email, user.Name)
		if err != nil {
			http.Error(w, "failed to create customer", http.StatusInternalServerError)
			return
		}
		if _, err := h.userStore.UpdateStripeCustomerID(user.ID, customerID); err != nil {
			http.Error(w, "failed to save customer", http.StatusInternalServerError)
			return
		}
	}

	priceID := h.stripeClient.PriceIDForPlan(req.Plan)
	url, err := h.stripeClient.CreateCheckoutSession(customerID, priceID, user.ID, req.Plan)
	if err != nil {
		http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// portalReturnURL derives the billing-portal return URL from the Referer
// header, constrained to a local path on our own base URL so the header
// cannot send the user off-site when the portal session ends.
func portalReturnURL(baseURL, referer string) string {
	ref, err := neturl.Parse(referer)
	if err != nil || !isValidRedirect(ref.Path) {
		return baseURL + "/dashboard/subscription"
	}
	return baseURL + ref.Path
}

// BillingPortal creates a Stripe billing portal session and returns its URL.
func (h *CheckoutHandler) BillingPortal(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.userStore.GetByID(userID)
	if err != nil || user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	if user.StripeCustomerID == nil {
		http.Error(w, "no billing account", http.StatusBadRequest)
		return
	}

	returnURL := portalReturnURL(h.baseURL, r.Header.Get("Referer"))

	url, err := h.stripeClient.CreateBillingPortalSession(*user.StripeCustomerID, returnURL)
	if err != nil {
		http.Error(w, "failed to create portal session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}
