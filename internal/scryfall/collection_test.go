package scryfall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newCollectionServer returns a test server that resolves identifiers against
// the known set: known names get a Card back, everything else lands in
// not_found. The counter tracks how many collection calls were issued.
func newCollectionServer(t *testing.T, known map[string]Card, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/collection" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		calls.Add(1)

		var req CollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if len(req.Identifiers) > MaxBatchSize {
			t.Errorf("server received oversized batch of %d identifiers", len(req.Identifiers))
		}

		resp := CollectionResponse{Object: "list"}
		for _, id := range req.Identifiers {
			if card, ok := known[id.Name]; ok {
				resp.Data = append(resp.Data, card)
			} else {
				resp.NotFound = append(resp.NotFound, id)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func identifiersForNames(n int, known map[string]Card) []CardIdentifier {
	ids := make([]CardIdentifier, n)
	for i := range ids {
		name := fmt.Sprintf("Card %d", i)
		ids[i] = CardIdentifier{Name: name}
		if i%2 == 0 {
			known[name] = Card{ID: fmt.Sprintf("id-%d", i), Name: name}
		}
	}
	return ids
}

func TestGetCardsByIdentifiers_Batching(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		wantCalls int64
	}{
		{"empty input issues no calls", 0, 0},
		{"single card", 1, 1},
		{"exactly one full batch", 75, 1},
		{"one over the limit", 76, 2},
		{"three batches", 151, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			known := make(map[string]Card)
			var calls atomic.Int64
			server := newCollectionServer(t, known, &calls)
			defer server.Close()

			client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))
			ids := identifiersForNames(tt.count, known)

			cards, notFound, err := client.GetCardsByIdentifiers(context.Background(), ids)
			if err != nil {
				t.Fatalf("GetCardsByIdentifiers: %v", err)
			}

			if calls.Load() != tt.wantCalls {
				t.Errorf("expected %d collection calls, got %d", tt.wantCalls, calls.Load())
			}
			if len(cards)+len(notFound) != tt.count {
				t.Errorf("found (%d) + notFound (%d) != requested (%d)", len(cards), len(notFound), tt.count)
			}
			if len(cards) != len(known) {
				t.Errorf("expected %d found cards, got %d", len(known), len(cards))
			}
		})
	}
}

func TestGetCardsByNames(t *testing.T) {
	known := map[string]Card{
		"Sol Ring": {ID: "sol-ring-id", Name: "Sol Ring", CMC: 1},
	}
	var calls atomic.Int64
	server := newCollectionServer(t, known, &calls)
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	cards, notFound, err := client.GetCardsByNames(context.Background(), []string{"Sol Ring", "Nonexistent Card X"})
	if err != nil {
		t.Fatalf("GetCardsByNames: %v", err)
	}

	if len(cards) != 1 || cards[0].Name != "Sol Ring" {
		t.Errorf("expected Sol Ring to be found, got %v", cards)
	}
	if len(notFound) != 1 || notFound[0] != "Nonexistent Card X" {
		t.Errorf("expected Nonexistent Card X in notFound, got %v", notFound)
	}
}

func TestGetCardsByIdentifiers_PartialChunkFailure(t *testing.T) {
	// Fail the chunk containing "Card 80" (the second chunk), serve the rest.
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req CollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		for _, id := range req.Identifiers {
			if id.Name == "Card 80" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}

		resp := CollectionResponse{Object: "list"}
		for _, id := range req.Identifiers {
			resp.Data = append(resp.Data, Card{Name: id.Name})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	ids := make([]CardIdentifier, 100)
	for i := range ids {
		ids[i] = CardIdentifier{Name: fmt.Sprintf("Card %d", i)}
	}

	cards, notFound, err := client.GetCardsByIdentifiers(context.Background(), ids)
	if err == nil {
		t.Fatal("expected an error for the failed chunk")
	}

	// First chunk (75 cards) still merged.
	if len(cards) != 75 {
		t.Errorf("expected 75 cards from the healthy chunk, got %d", len(cards))
	}
	if len(notFound) != 0 {
		t.Errorf("expected no notFound entries, got %d", len(notFound))
	}
}

func TestFetchChunk_RejectsOversizedBatch(t *testing.T) {
	client := NewClient(WithRateLimit(time.Millisecond))

	ids := make([]CardIdentifier, MaxBatchSize+1)
	for i := range ids {
		ids[i] = CardIdentifier{Name: fmt.Sprintf("Card %d", i)}
	}

	_, _, err := client.fetchChunk(context.Background(), ids)
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestCardIdentifier_String(t *testing.T) {
	tests := []struct {
		id   CardIdentifier
		want string
	}{
		{CardIdentifier{Name: "Sol Ring"}, "Sol Ring"},
		{CardIdentifier{Set: "c21", CollectorNumber: "263"}, "c21#263"},
		{CardIdentifier{ID: "abc-123"}, "abc-123"},
		{CardIdentifier{OracleID: "oracle-1"}, "oracle-1"},
	}

	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
