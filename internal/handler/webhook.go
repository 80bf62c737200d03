package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/tcobb/launchbase/internal/model"
	"github.com/tcobb/launchbase/internal/store"
)

const maxWebhookBody = 65536

// EventVerifier authenticates a raw webhook payload against its signature
// header and returns the parsed event.
type EventVerifier interface {
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// WebhookHandler reconciles Stripe subscription lifecycle events into the
// local store. Processing always acknowledges with 200 unless the signature
// is invalid (400) or an unexpected store failure occurs (500); Stripe
// retries on non-2xx.
type WebhookHandler struct {
	verifier EventVerifier
	db       *sql.DB
	logger   *slog.Logger
}

func NewWebhookHandler(verifier EventVerifier, db *sql.DB, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		db:       db,
		logger:   logger,
	}
}

func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "read body")
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		writeJSONError(w, http.StatusBadRequest, "missing stripe-signature header")
		return
	}

	event, err := h.verifier.ConstructWebhookEvent(body, sig)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		writeJSONError(w, http.StatusBadRequest, "webhook signature verification failed")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.handleSubscriptionChanged(event)
	case "customer.subscription.deleted":
		err = h.handleSubscriptionDeleted(event)
	default:
		h.logger.Debug("unhandled event type", "type", event.Type)
	}

	if err != nil {
		h.logger.Error("webhook handler failed", "type", event.Type, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "webhook handler failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

// handleCheckoutCompleted links the Stripe customer created at checkout to
// the local user named in the session metadata. Missing metadata or an
// unknown user is logged and skipped: losing the link is recoverable and
// must not make Stripe retry the event forever.
func (h *WebhookHandler) handleCheckoutCompleted(event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	userID := sess.Metadata["userId"]
	if userID == "" || sess.Customer == nil {
		h.logger.Info("checkout session missing user metadata or customer", "session", sess.ID)
		return nil
	}

	users := store.NewUserStore(h.db)
	n, err := users.UpdateStripeCustomerID(userID, sess.Customer.ID)
	if err != nil {
		return fmt.Errorf("link stripe customer: %w", err)
	}
	if n == 0 {
		h.logger.Warn("no user for checkout session metadata", "user_id", userID)
		return nil
	}

	h.logger.Info("linked stripe customer", "user_id", userID, "customer", sess.Customer.ID)
	return nil
}

// handleSubscriptionChanged applies a created/updated event: it refreshes
// the owning user's denormalized status/plan and upserts the subscription
// row keyed by the Stripe subscription ID. Both writes run in one
// transaction so a crash cannot leave the projection out of sync with the
// row.
func (h *WebhookHandler) handleSubscriptionChanged(event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}
	if sub.Customer == nil {
		return fmt.Errorf("subscription event %s has no customer", sub.ID)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return fmt.Errorf("subscription event %s has no items", sub.ID)
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	users := store.NewUserStore(tx)
	user, err := users.GetByStripeCustomerID(sub.Customer.ID)
	if err != nil {
		return fmt.Errorf("lookup user by customer: %w", err)
	}
	if user == nil {
		// Benign race with account linking; Stripe will not redeliver, but
		// the next subscription event re-syncs the row.
		h.logger.Warn("no user for stripe customer", "customer", sub.Customer.ID)
		return nil
	}

	// A subscription event implies a paid plan even when the plan tag was
	// not propagated through checkout metadata.
	plan := sub.Metadata["planId"]
	if plan == "" {
		plan = model.PlanPro
	}

	if err := users.UpdateSubscription(user.ID, string(sub.Status), plan); err != nil {
		return err
	}

	metadata, err := json.Marshal(sub.Metadata)
	if err != nil {
		return fmt.Errorf("marshal subscription metadata: %w", err)
	}

	item := sub.Items.Data[0]
	row := &model.Subscription{
		ID:                 sub.ID,
		UserID:             user.ID,
		Status:             string(sub.Status),
		Quantity:           item.Quantity,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: time.Unix(item.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(item.CurrentPeriodEnd, 0).UTC(),
		CanceledAt:         unixTime(sub.CanceledAt),
		EndedAt:            unixTime(sub.EndedAt),
		TrialStart:         unixTime(sub.TrialStart),
		TrialEnd:           unixTime(sub.TrialEnd),
		Metadata:           string(metadata),
	}
	if item.Price != nil {
		row.PriceID = item.Price.ID
	}

	if err := store.NewSubscriptionStore(tx).Upsert(row); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	h.logger.Info("reconciled subscription", "subscription", sub.ID, "user_id", user.ID, "status", sub.Status, "plan", plan)
	return nil
}

// handleSubscriptionDeleted demotes the user to the free tier and closes
// the subscription row. The end time is the processing time, not any
// provider-supplied timestamp.
func (h *WebhookHandler) handleSubscriptionDeleted(event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}
	if sub.Customer == nil {
		return fmt.Errorf("subscription event %s has no customer", sub.ID)
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	users := store.NewUserStore(tx)
	user, err := users.GetByStripeCustomerID(sub.Customer.ID)
	if err != nil {
		return fmt.Errorf("lookup user by customer: %w", err)
	}
	if user == nil {
		h.logger.Warn("no user for stripe customer", "customer", sub.Customer.ID)
		return nil
	}

	if err := users.UpdateSubscription(user.ID, model.SubscriptionStatusCanceled, model.PlanFree); err != nil {
		return err
	}

	if err := store.NewSubscriptionStore(tx).MarkCanceled(sub.ID, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	h.logger.Info("subscription canceled", "subscription", sub.ID, "user_id", user.ID)
	return nil
}

// unixTime converts optional epoch seconds to UTC time; zero means absent.
func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
