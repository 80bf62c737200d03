package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tcobb/launchbase/internal/backup"
	"github.com/tcobb/launchbase/internal/config"
	"github.com/tcobb/launchbase/internal/database"
	"github.com/tcobb/launchbase/internal/email"
	"github.com/tcobb/launchbase/internal/logging"
	"github.com/tcobb/launchbase/internal/server"
	stripeclient "github.com/tcobb/launchbase/internal/stripe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", false).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogJSON)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.FromEmail, cfg.BaseURL)

	srvCfg := server.Config{
		Stripe: stripeclient.Config{
			SecretKey:         cfg.Stripe.SecretKey,
			WebhookSecret:     cfg.Stripe.WebhookSecret,
			ProPriceID:        cfg.Stripe.ProPriceID,
			EnterprisePriceID: cfg.Stripe.EnterprisePriceID,
			SuccessURL:        cfg.BaseURL + "/dashboard/subscription?checkout=success",
			CancelURL:         cfg.BaseURL + "/dashboard/subscription",
		},
		BaseURL:     cfg.BaseURL,
		TokenSecret: cfg.TokenSecret,
		EmailClient: emailClient,
	}

	srv, err := server.New(db, srvCfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Background session cleanup
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-bgCtx.Done():
				return
			}
		}
	}()

	// Scheduled encrypted backups, if configured
	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.S3Endpoint,
			Bucket:    cfg.Backup.S3Bucket,
			Region:    cfg.Backup.S3Region,
			AccessKey: cfg.Backup.S3AccessKey,
			SecretKey: cfg.Backup.S3SecretKey,
		},
		Passphrase: cfg.Backup.Passphrase,
	}, db, logger.With("component", "backup"))
	if backupMgr.Enabled() {
		go backupMgr.Run(bgCtx, time.Duration(cfg.Backup.IntervalHrs)*time.Hour)
	}

	go func() {
		logger.Info("launchbase starting", "addr", ":"+cfg.Port, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	bgCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
