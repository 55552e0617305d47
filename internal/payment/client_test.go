package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_RetrieveIntent(t *testing.T) {
	t.Run("maps succeeded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/payment_intents/pi_123" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer sk_test" {
				t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"pi_123","status":"succeeded"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "sk_test", server.Client())
		intent, err := client.RetrieveIntent(context.Background(), "pi_123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.ID != "pi_123" {
			t.Errorf("expected id pi_123, got %s", intent.ID)
		}
		if intent.Status != StatusSucceeded {
			t.Errorf("expected status succeeded, got %s", intent.Status)
		}
	})

	t.Run("maps processing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"pi_123","status":"processing"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "sk_test", server.Client())
		intent, err := client.RetrieveIntent(context.Background(), "pi_123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Status != StatusProcessing {
			t.Errorf("expected status processing, got %s", intent.Status)
		}
	})

	t.Run("maps unknown statuses to failed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"pi_123","status":"requires_payment_method"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "sk_test", server.Client())
		intent, err := client.RetrieveIntent(context.Background(), "pi_123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Status != StatusFailed {
			t.Errorf("expected status failed, got %s", intent.Status)
		}
	})

	t.Run("rejects an empty reference without calling upstream", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		client := NewClient(server.URL, "sk_test", server.Client())
		_, err := client.RetrieveIntent(context.Background(), "")
		if err != ErrMissingIntentRef {
			t.Fatalf("expected ErrMissingIntentRef, got %v", err)
		}
		if called {
			t.Error("expected no upstream call for empty reference")
		}
	})

	t.Run("errors on non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(server.URL, "sk_test", server.Client())
		if _, err := client.RetrieveIntent(context.Background(), "pi_123"); err == nil {
			t.Fatal("expected error")
		}
	})
}
