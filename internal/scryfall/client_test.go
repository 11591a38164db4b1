package scryfall

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetCard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/sol-ring-id" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Card{
			ID:       "sol-ring-id",
			Name:     "Sol Ring",
			TypeLine: "Artifact",
			CMC:      1,
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	card, err := client.GetCard(context.Background(), "sol-ring-id")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if card.Name != "Sol Ring" {
		t.Errorf("expected Sol Ring, got %s", card.Name)
	}
}

func TestGetCard_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	_, err := client.GetCard(context.Background(), "missing")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestGetCard_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(APIError{
			Object:  "error",
			Code:    "bad_request",
			Status:  400,
			Details: "Invalid card id",
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	_, err := client.GetCard(context.Background(), "???")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Details != "Invalid card id" {
		t.Errorf("unexpected details: %s", apiErr.Details)
	}
}

func TestGetBulkData(t *testing.T) {
	updatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bulk-data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(BulkDataList{
			Object: "list",
			Data: []BulkData{
				{Type: "default_cards", Name: "Default Cards", UpdatedAt: updatedAt},
			},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	list, err := client.GetBulkData(context.Background())
	if err != nil {
		t.Fatalf("GetBulkData: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].Type != "default_cards" {
		t.Errorf("unexpected bulk data list: %+v", list)
	}
	if !list.Data[0].UpdatedAt.Equal(updatedAt) {
		t.Errorf("unexpected updated_at: %v", list.Data[0].UpdatedAt)
	}
}

func TestDoRequest_RateLimiterSpacing(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Card{ID: "x"})
	}))
	defer server.Close()

	delay := 20 * time.Millisecond
	client := NewClient(WithBaseURL(server.URL), WithRateLimit(delay))

	start := time.Now()
	for range 3 {
		if _, err := client.GetCard(context.Background(), "x"); err != nil {
			t.Fatalf("GetCard: %v", err)
		}
	}
	elapsed := time.Since(start)

	// Three calls through a 20ms limiter need at least two full delays.
	if elapsed < 2*delay {
		t.Errorf("expected at least %v between rate-limited calls, elapsed %v", 2*delay, elapsed)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 upstream calls, got %d", calls.Load())
	}
}

func TestDoRequest_RetriesOn429(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Card{ID: "x", Name: "Sol Ring"})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	card, err := client.GetCard(context.Background(), "x")
	if err != nil {
		t.Fatalf("GetCard after 429: %v", err)
	}
	if card.Name != "Sol Ring" {
		t.Errorf("unexpected card: %+v", card)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls (429 then success), got %d", calls.Load())
	}
}
