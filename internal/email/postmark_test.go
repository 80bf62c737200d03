package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendVerificationEmail(t *testing.T) {
	var got postmarkEmail
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient("server-token", "no-reply@example.com", "https://app.example.com", WithEndpoint(srv.URL))
	if err := client.SendVerificationEmail("alice@example.com", "tok123"); err != nil {
		t.Fatalf("SendVerificationEmail: %v", err)
	}

	if gotToken != "server-token" {
		t.Errorf("server token header = %q, want %q", gotToken, "server-token")
	}
	if got.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", got.To, "alice@example.com")
	}
	wantLink := "https://app.example.com/auth/verify?token=tok123"
	if !strings.Contains(got.TextBody, wantLink) {
		t.Errorf("text body missing verification link %q:\n%s", wantLink, got.TextBody)
	}
	if !strings.Contains(got.HtmlBody, wantLink) {
		t.Errorf("html body missing verification link %q:\n%s", wantLink, got.HtmlBody)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient("server-token", "no-reply@example.com", "https://app.example.com", WithEndpoint(srv.URL))
	if err := client.SendVerificationEmail("bob@example.com", "tok"); err != nil {
		t.Fatalf("expected retry to succeed, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient("server-token", "no-reply@example.com", "https://app.example.com", WithEndpoint(srv.URL))
	if err := client.SendVerificationEmail("bob@example.com", "tok"); err == nil {
		t.Fatal("expected an error for a 4xx response")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSendUnconfigured(t *testing.T) {
	client := NewClient("", "no-reply@example.com", "https://app.example.com")
	if client.Configured() {
		t.Error("client without a token should not report configured")
	}
	if err := client.SendVerificationEmail("bob@example.com", "tok"); err == nil {
		t.Error("expected an error when sending without a token")
	}
}
