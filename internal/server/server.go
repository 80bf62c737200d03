package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tcobb/launchbase/internal/auth"
	"github.com/tcobb/launchbase/internal/email"
	"github.com/tcobb/launchbase/internal/handler"
	"github.com/tcobb/launchbase/internal/middleware"
	"github.com/tcobb/launchbase/internal/store"
	stripeclient "github.com/tcobb/launchbase/internal/stripe"
)

type Server struct {
	db                *sql.DB
	userStore         *store.UserStore
	sessionStore      *store.SessionStore
	subscriptionStore *store.SubscriptionStore
	priceStore        *store.PriceStore
	webhookH          *handler.WebhookHandler
	checkoutH         *handler.CheckoutHandler
	authH             *handler.AuthHandler
	dashboardH        *handler.DashboardHandler
	adminH            *handler.AdminHandler
	marketingH        *handler.MarketingHandler
	rateLimiter       *middleware.RateLimiter
	logger            *slog.Logger
}

type Config struct {
	Stripe       stripeclient.Config
	BaseURL      string
	TokenSecret  string
	EmailClient  *email.Client
	TemplatesDir string
}

var pages = []string{
	"index.html", "pricing.html", "login.html", "register.html",
	"dashboard.html", "settings.html", "subscription.html", "admin.html",
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) (*Server, error) {
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)
	priceStore := store.NewPriceStore(db)

	tmplDir := cfg.TemplatesDir
	if tmplDir == "" {
		tmplDir = "web/templates"
	}
	renderer, err := handler.NewRenderer(tmplDir, cfg.BaseURL, pages, logger.With("component", "render"))
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	var stripeClient *stripeclient.Client
	if cfg.Stripe.SecretKey != "" {
		stripeClient = stripeclient.NewClient(cfg.Stripe)
	}

	var webhookH *handler.WebhookHandler
	var checkoutH *handler.CheckoutHandler
	if stripeClient != nil {
		webhookH = handler.NewWebhookHandler(stripeClient, db, logger.With("component", "webhook"))
		checkoutH = handler.NewCheckoutHandler(stripeClient, userStore, cfg.BaseURL)
	}

	signer := auth.NewTokenSigner(cfg.TokenSecret)
	authH := handler.NewAuthHandler(userStore, sessionStore, signer, cfg.EmailClient, renderer, logger.With("component", "auth"))
	dashboardH := handler.NewDashboardHandler(userStore, subscriptionStore, priceStore, renderer, logger.With("component", "dashboard"))
	adminH := handler.NewAdminHandler(userStore, renderer, logger.With("component", "admin"))
	marketingH := handler.NewMarketingHandler(priceStore, renderer, logger.With("component", "marketing"))

	return &Server{
		db:                db,
		userStore:         userStore,
		sessionStore:      sessionStore,
		subscriptionStore: subscriptionStore,
		priceStore:        priceStore,
		webhookH:          webhookH,
		checkoutH:         checkoutH,
		authH:             authH,
		dashboardH:        dashboardH,
		adminH:            adminH,
		marketingH:        marketingH,
		rateLimiter:       middleware.NewRateLimiter(),
		logger:            logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public marketing routes
	mux.HandleFunc("GET /{$}", s.marketingH.LandingPage)
	mux.HandleFunc("GET /pricing", s.marketingH.PricingPage)
	mux.HandleFunc("GET /health", s.healthCheck)

	// Auth routes (public)
	mux.HandleFunc("GET /login", s.authH.LoginPage)
	mux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("GET /register", s.authH.RegisterPage)
	mux.HandleFunc("POST /register", s.rateLimitedHandler(s.authH.Register))
	mux.HandleFunc("GET /auth/verify", s.authH.Verify)

	// Stripe webhook (public, signature-trusted)
	if s.webhookH != nil {
		mux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)
	}

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))

	// Protected routes
	authMw := middleware.RequireAuth(s.sessionStore, s.userStore)
	mux.Handle("POST /logout", authMw(http.HandlerFunc(s.authH.Logout)))
	mux.Handle("GET /dashboard", authMw(http.HandlerFunc(s.dashboardH.Overview)))
	mux.Handle("GET /dashboard/settings", authMw(http.HandlerFunc(s.dashboardH.SettingsPage)))
	mux.Handle("POST /dashboard/settings/profile", authMw(http.HandlerFunc(s.dashboardH.UpdateProfile)))
	mux.Handle("POST /dashboard/settings/password", authMw(http.HandlerFunc(s.dashboardH.ChangePassword)))
	mux.Handle("GET /dashboard/subscription", authMw(http.HandlerFunc(s.dashboardH.SubscriptionPage)))

	// Admin routes (role-gated)
	mux.Handle("GET /admin", authMw(middleware.RequireAdmin(http.HandlerFunc(s.adminH.Panel))))

	if s.checkoutH != nil {
		mux.Handle("POST /api/checkout", authMw(http.HandlerFunc(s.checkoutH.CreateCheckoutSession)))
		mux.Handle("POST /api/billing-portal", authMw(http.HandlerFunc(s.checkoutH.BillingPortal)))
	}

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
