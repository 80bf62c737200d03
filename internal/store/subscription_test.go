package store

import (
	"testing"
	"time"

	"github.com/tcobb/launchbase/internal/model"
)

func testSubscription(userID string) *model.Subscription {
	return &model.Subscription{
		ID:                 "sub_test1",
		UserID:             userID,
		Status:             "active",
		PriceID:            "price_pro_monthly",
		Quantity:           1,
		CurrentPeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Metadata:           `{"planId":"pro"}`,
	}
}

func createTestUser(t *testing.T, us *UserStore, email string) *model.User {
	t.Helper()
	user, err := us.Create("Test User", email, "h")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestSubscriptionUpsertInsert(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ss := NewSubscriptionStore(db)
	user := createTestUser(t, us, "alice@example.com")

	sub := testSubscription(user.ID)
	if err := ss.Upsert(sub); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := ss.GetByID("sub_test1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("expected subscription row")
	}
	if got.Status != "active" || got.PriceID != "price_pro_monthly" {
		t.Errorf("got status=%q price=%q", got.Status, got.PriceID)
	}
	if !got.CurrentPeriodStart.Equal(sub.CurrentPeriodStart) {
		t.Errorf("CurrentPeriodStart = %v, want %v", got.CurrentPeriodStart, sub.CurrentPeriodStart)
	}
	if got.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil", got.EndedAt)
	}
}

func TestSubscriptionUpsertOverwrites(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ss := NewSubscriptionStore(db)
	user := createTestUser(t, us, "alice@example.com")

	sub := testSubscription(user.ID)
	if err := ss.Upsert(sub); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	sub.Status = "past_due"
	sub.CancelAtPeriodEnd = true
	sub.CurrentPeriodEnd = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := ss.Upsert(sub); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := ss.GetByID("sub_test1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != "past_due" {
		t.Errorf("Status = %q, want past_due", got.Status)
	}
	if !got.CancelAtPeriodEnd {
		t.Error("CancelAtPeriodEnd should be true after update")
	}
	if !got.CurrentPeriodEnd.Equal(sub.CurrentPeriodEnd) {
		t.Errorf("CurrentPeriodEnd = %v, want %v", got.CurrentPeriodEnd, sub.CurrentPeriodEnd)
	}

	// Still exactly one row for the subscription ID.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE id = ?`, "sub_test1").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestSubscriptionMarkCanceled(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ss := NewSubscriptionStore(db)
	user := createTestUser(t, us, "alice@example.com")

	if err := ss.Upsert(testSubscription(user.ID)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	endedAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	if err := ss.MarkCanceled("sub_test1", endedAt); err != nil {
		t.Fatalf("MarkCanceled: %v", err)
	}

	got, err := ss.GetByID("sub_test1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != model.SubscriptionStatusCanceled {
		t.Errorf("Status = %q, want %q", got.Status, model.SubscriptionStatusCanceled)
	}
	if got.EndedAt == nil {
		t.Fatal("EndedAt should be set after cancellation")
	}
	if !got.EndedAt.Equal(endedAt) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, endedAt)
	}
}

func TestSubscriptionUpsertWithinTransaction(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, NewUserStore(db), "alice@example.com")

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := NewSubscriptionStore(tx).Upsert(testSubscription(user.ID)); err != nil {
		t.Fatalf("Upsert in tx: %v", err)
	}
	if err := NewUserStore(tx).UpdateSubscription(user.ID, "active", model.PlanPro); err != nil {
		t.Fatalf("UpdateSubscription in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	// Rolled back, so neither write is visible.
	sub, err := NewSubscriptionStore(db).GetByID("sub_test1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if sub != nil {
		t.Error("rolled-back upsert should not be visible")
	}
	got, err := NewUserStore(db).GetByID(user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.SubscriptionStatus != nil {
		t.Error("rolled-back user update should not be visible")
	}
}

func TestSubscriptionGetByUserID(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ss := NewSubscriptionStore(db)
	user := createTestUser(t, us, "alice@example.com")

	got, err := ss.GetByUserID(user.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for user without subscriptions, got %+v", got)
	}

	first := testSubscription(user.ID)
	if err := ss.Upsert(first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second := testSubscription(user.ID)
	second.ID = "sub_test2"
	second.Status = "trialing"
	if err := ss.Upsert(second); err != nil {
		t.Fatalf("Upsert second: %v", err)
	}

	got, err = ss.GetByUserID(user.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if got == nil || got.ID != "sub_test2" {
		t.Errorf("GetByUserID = %+v, want most recent sub_test2", got)
	}
}
