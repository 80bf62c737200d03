package handler

import (
	"log/slog"
	"net/http"

	"github.com/tcobb/launchbase/internal/store"
)

type MarketingHandler struct {
	priceStore *store.PriceStore
	renderer   *Renderer
	logger     *slog.Logger
}

func NewMarketingHandler(ps *store.PriceStore, renderer *Renderer, logger *slog.Logger) *MarketingHandler {
	return &MarketingHandler{
		priceStore: ps,
		renderer:   renderer,
		logger:     logger,
	}
}

// LandingPage renders the homepage.
func (h *MarketingHandler) LandingPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, "index.html", map[string]any{
		"ActiveNav": "home",
	})
}

// PricingPage renders the public pricing page from the mirrored catalog.
func (h *MarketingHandler) PricingPage(w http.ResponseWriter, r *http.Request) {
	plans, err := h.priceStore.ListActivePlans()
	if err != nil {
		h.logger.Error("list plans", "error", err)
	}
	h.renderer.Render(w, "pricing.html", map[string]any{
		"Plans":     plans,
		"ActiveNav": "pricing",
	})
}
