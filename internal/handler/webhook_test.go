package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/tcobb/launchbase/internal/database"
	"github.com/tcobb/launchbase/internal/model"
	"github.com/tcobb/launchbase/internal/store"
	stripeclient "github.com/tcobb/launchbase/internal/stripe"
)

const testWebhookSecret = "whsec_test_secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupWebhookHandler(t *testing.T) (*WebhookHandler, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	verifier := stripeclient.NewClient(stripeclient.Config{WebhookSecret: testWebhookSecret})
	return NewWebhookHandler(verifier, db, testLogger()), db
}

func createLinkedUser(t *testing.T, db *sql.DB, customerID string) *model.User {
	t.Helper()
	us := store.NewUserStore(db)
	user, err := us.Create("Test User", "user@example.com", "h")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if customerID != "" {
		if _, err := us.UpdateStripeCustomerID(user.ID, customerID); err != nil {
			t.Fatalf("link customer: %v", err)
		}
	}
	return user
}

func signedHeader(t *testing.T, payload []byte) string {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	return fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig)
}

func postEvent(h *WebhookHandler, payload []byte, sigHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	if sigHeader != "" {
		req.Header.Set("Stripe-Signature", sigHeader)
	}
	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, req)
	return rec
}

func subscriptionEvent(kind, subID, customerID, status, metadata string, periodStart, periodEnd int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test",
		"type": %q,
		"data": {
			"object": {
				"id": %q,
				"customer": %q,
				"status": %q,
				"cancel_at_period_end": false,
				"metadata": %s,
				"items": {
					"object": "list",
					"data": [
						{
							"id": "si_test",
							"quantity": 1,
							"price": {"id": "price_pro_monthly"},
							"current_period_start": %d,
							"current_period_end": %d
						}
					]
				}
			}
		}
	}`, kind, subID, customerID, status, metadata, periodStart, periodEnd))
}

func TestWebhookMissingSignature(t *testing.T) {
	h, _ := setupWebhookHandler(t)

	rec := postEvent(h, []byte(`{"type":"customer.subscription.created"}`), "")
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookTamperedPayload(t *testing.T) {
	h, db := setupWebhookHandler(t)
	createLinkedUser(t, db, "cus_1")

	payload := subscriptionEvent("customer.subscription.created", "sub_1", "cus_1", "active", "{}", 1700000000, 1702592000)
	sig := signedHeader(t, payload)

	// Flip one byte after signing.
	tampered := bytes.Replace(payload, []byte("active"), []byte("activX"), 1)
	rec := postEvent(h, tampered, sig)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	sub, err := store.NewSubscriptionStore(db).GetByID("sub_1")
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub != nil {
		t.Error("rejected event must not write any rows")
	}
}

func TestWebhookCheckoutCompletedLinksCustomer(t *testing.T) {
	h, db := setupWebhookHandler(t)
	user := createLinkedUser(t, db, "")

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_test",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "customer": "cus_new", "metadata": {"userId": %q}}}
	}`, user.ID))

	rec := postEvent(h, payload, signedHeader(t, payload))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	got, err := store.NewUserStore(db).GetByID(user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.StripeCustomerID == nil || *got.StripeCustomerID != "cus_new" {
		t.Errorf("StripeCustomerID = %v, want cus_new", got.StripeCustomerID)
	}
}

func TestWebhookCheckoutCompletedUnknownUser(t *testing.T) {
	h, _ := setupWebhookHandler(t)

	payload := []byte(`{
		"id": "evt_test",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "customer": "cus_new", "metadata": {"userId": "ghost"}}}
	}`)

	rec := postEvent(h, payload, signedHeader(t, payload))
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200 for unknown user", rec.Code)
	}
}

func TestWebhookCheckoutCompletedMissingMetadata(t *testing.T) {
	h, _ := setupWebhookHandler(t)

	payload := []byte(`{
		"id": "evt_test",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "customer": "cus_new", "metadata": {}}}
	}`)

	rec := postEvent(h, payload, signedHeader(t, payload))
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200 when metadata is absent", rec.Code)
	}
}

func TestWebhookSubscriptionCreated(t *testing.T) {
	h, db := setupWebhookHandler(t)
	user := createLinkedUser(t, db, "cus_1")

	payload := subscriptionEvent("customer.subscription.created", "sub_1", "cus_1", "active", `{"planId": "enterprise"}`, 1700000000, 1702592000)
	rec := postEvent(h, payload, signedHeader(t, payload))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp["received"] {
		t.Errorf("response = %s, want received true", rec.Body.String())
	}

	gotUser, err := store.NewUserStore(db).GetByID(user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if gotUser.SubscriptionStatus == nil || *gotUser.SubscriptionStatus != "active" {
		t.Errorf("user status = %v, want active", gotUser.SubscriptionStatus)
	}
	if gotUser.SubscriptionPlan != model.PlanEnterprise {
		t.Errorf("user plan = %q, want %q", gotUser.SubscriptionPlan, model.PlanEnterprise)
	}

	sub, err := store.NewSubscriptionStore(db).GetByID("sub_1")
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub == nil {
		t.Fatal("expected subscription row")
	}
	wantStart := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	wantEnd := time.Date(2023, 12, 14, 22, 13, 20, 0, time.UTC)
	if !sub.CurrentPeriodStart.UTC().Equal(wantStart) {
		t.Errorf("CurrentPeriodStart = %v, want %v", sub.CurrentPeriodStart, wantStart)
	}
	if !sub.CurrentPeriodEnd.UTC().Equal(wantEnd) {
		t.Errorf("CurrentPeriodEnd = %v, want %v", sub.CurrentPeriodEnd, wantEnd)
	}
	if sub.PriceID != "price_pro_monthly" {
		t.Errorf("PriceID = %q, want price_pro_monthly", sub.PriceID)
	}
}

func TestWebhookSubscriptionDefaultPlan(t *testing.T) {
	h, db := setupWebhookHandler(t)
	user := createLinkedUser(t, db, "cus_1")

	payload := subscriptionEvent("customer.subscription.updated", "sub_1", "cus_1", "active", "{}", 1700000000, 1702592000)
	rec := postEvent(h, payload, signedHeader(t, payload))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	gotUser, err := store.NewUserStore(db).GetByID(user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if gotUser.SubscriptionPlan != model.PlanPro {
		t.Errorf("user plan = %q, want %q when metadata has no plan tag", gotUser.SubscriptionPlan, model.PlanPro)
	}
}

func TestWebhookRedeliveryIdempotent(t *testing.T) {
	h, db := setupWebhookHandler(t)
	createLinkedUser(t, db, "cus_1")

	payload := subscriptionEvent("customer.subscription.created", "sub_1", "cus_1", "active", "{}", 1700000000, 1702592000)
	for i := 0; i < 2; i++ {
		rec := postEvent(h, payload, signedHeader(t, payload))
		if rec.Code != 200 {
			t.Fatalf("delivery %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE id = ?`, "sub_1").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Errorf("subscription rows = %d, want 1 after redelivery", count)
	}
}

func TestWebhookSubscriptionUnknownCustomer(t *testing.T) {
	h, db := setupWebhookHandler(t)

	payload := subscriptionEvent("customer.subscription.created", "sub_1", "cus_ghost", "active", "{}", 1700000000, 1702592000)
	rec := postEvent(h, payload, signedHeader(t, payload))
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200 for unknown customer", rec.Code)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM subscriptions`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Errorf("subscription rows = %d, want 0", count)
	}
}

func TestWebhookSubscriptionDeleted(t *testing.T) {
	h, db := setupWebhookHandler(t)
	user := createLinkedUser(t, db, "cus_1")

	created := subscriptionEvent("customer.subscription.created", "sub_1", "cus_1", "active", `{"planId": "pro"}`, 1700000000, 1702592000)
	if rec := postEvent(h, created, signedHeader(t, created)); rec.Code != 200 {
		t.Fatalf("created event: status = %d", rec.Code)
	}

	deleted := subscriptionEvent("customer.subscription.deleted", "sub_1", "cus_1", "canceled", "{}", 1700000000, 1702592000)
	if rec := postEvent(h, deleted, signedHeader(t, deleted)); rec.Code != 200 {
		t.Fatalf("deleted event: status = %d", rec.Code)
	}

	gotUser, err := store.NewUserStore(db).GetByID(user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if gotUser.SubscriptionStatus == nil || *gotUser.SubscriptionStatus != model.SubscriptionStatusCanceled {
		t.Errorf("user status = %v, want canceled", gotUser.SubscriptionStatus)
	}
	if gotUser.SubscriptionPlan != model.PlanFree {
		t.Errorf("user plan = %q, want %q", gotUser.SubscriptionPlan, model.PlanFree)
	}

	sub, err := store.NewSubscriptionStore(db).GetByID("sub_1")
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub == nil {
		t.Fatal("canceled subscription row should remain")
	}
	if sub.Status != model.SubscriptionStatusCanceled {
		t.Errorf("subscription status = %q, want canceled", sub.Status)
	}
	if sub.EndedAt == nil {
		t.Error("EndedAt should be set on cancellation")
	}
}

func TestWebhookUnhandledEventType(t *testing.T) {
	h, _ := setupWebhookHandler(t)

	payload := []byte(`{"id": "evt_test", "type": "invoice.paid", "data": {"object": {}}}`)
	rec := postEvent(h, payload, signedHeader(t, payload))
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200 for unhandled event type", rec.Code)
	}
}

func TestWebhookStoreFailure(t *testing.T) {
	h, db := setupWebhookHandler(t)
	createLinkedUser(t, db, "cus_1")
	db.Close()

	payload := subscriptionEvent("customer.subscription.created", "sub_1", "cus_1", "active", "{}", 1700000000, 1702592000)
	rec := postEvent(h, payload, signedHeader(t, payload))
	if rec.Code != 500 {
		t.Errorf("status = %d, want 500 when the store fails", rec.Code)
	}
}
