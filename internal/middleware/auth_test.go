package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/tcobb/launchbase/internal/auth"
	"github.com/tcobb/launchbase/internal/database"
	"github.com/tcobb/launchbase/internal/handler"
	"github.com/tcobb/launchbase/internal/model"
	"github.com/tcobb/launchbase/internal/store"
)

func setupAuthMiddlewareDB(t *testing.T) (*store.SessionStore, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSessionStore(db), store.NewUserStore(db)
}

func loginAs(t *testing.T, users *store.UserStore, sessions *store.SessionStore, role string) *http.Cookie {
	t.Helper()
	user, err := users.Create("Test User", role+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if role != model.RoleUser {
		if err := users.UpdateRole(user.ID, role); err != nil {
			t.Fatalf("set role: %v", err)
		}
	}
	sess, err := sessions.Create(user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return &http.Cookie{Name: handler.SessionCookieName, Value: sess.Token}
}

func TestRequireAuthNoCookie(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	mw := RequireAuth(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/dashboard/settings", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	want := "/login?redirect=%2Fdashboard%2Fsettings"
	if loc := rec.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func TestRequireAuthPreservesQueryString(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	mw := RequireAuth(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/dashboard/subscription?checkout=success", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	want := "/login?redirect=" + url.QueryEscape("/dashboard/subscription?checkout=success")
	if loc := rec.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	mw := RequireAuth(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: handler.SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)
	cookie := loginAs(t, us, ss, model.RoleUser)

	var gotUserID string
	mw := RequireAuth(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = auth.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID == "" {
		t.Error("auth context should carry the user id")
	}
}

func TestRequireAdminRedirectsNonAdmin(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)
	cookie := loginAs(t, us, ss, model.RoleUser)

	mw := RequireAuth(ss, us)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("non-admin should not reach handler")
	})))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Location = %q, want %q", loc, "/dashboard")
	}
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)
	cookie := loginAs(t, us, ss, model.RoleAdmin)

	mw := RequireAuth(ss, us)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
