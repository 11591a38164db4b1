package scryfall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// MaxBatchSize is the maximum number of identifiers per collection request
// (Scryfall limit is 75).
const MaxBatchSize = 75

// ErrBatchTooLarge is returned when a single collection call is asked to
// exceed MaxBatchSize identifiers. Callers should use GetCardsByIdentifiers,
// which chunks transparently.
var ErrBatchTooLarge = errors.New("collection request exceeds maximum batch size")

// CardIdentifier represents a card identifier for the /cards/collection endpoint.
type CardIdentifier struct {
	ID              string `json:"id,omitempty"`               // Scryfall ID
	OracleID        string `json:"oracle_id,omitempty"`        // Oracle ID
	Name            string `json:"name,omitempty"`             // Card name
	Set             string `json:"set,omitempty"`              // Set code (alone only with name)
	CollectorNumber string `json:"collector_number,omitempty"` // Collector number (requires set)
}

// String renders the identifier for error messages and not-found lists.
func (id CardIdentifier) String() string {
	switch {
	case id.Name != "":
		return id.Name
	case id.Set != "" && id.CollectorNumber != "":
		return fmt.Sprintf("%s#%s", id.Set, id.CollectorNumber)
	case id.ID != "":
		return id.ID
	default:
		return id.OracleID
	}
}

// CollectionRequest is the request body for /cards/collection.
type CollectionRequest struct {
	Identifiers []CardIdentifier `json:"identifiers"`
}

// CollectionResponse is the response from /cards/collection.
type CollectionResponse struct {
	Object   string           `json:"object"`
	NotFound []CardIdentifier `json:"not_found"`
	Data     []Card           `json:"data"`
}

// GetCardsByIdentifiers fetches cards using a mixed set of identifiers via
// the batch /cards/collection endpoint. Identifier lists larger than
// MaxBatchSize are split into chunks of at most 75 and the chunk requests are
// issued concurrently; results are merged by concatenation.
//
// A failed chunk does not discard the others: found and notFound always carry
// the merged results of every successful chunk, and the returned error joins
// the failures so callers can record them per chunk.
func (c *Client) GetCardsByIdentifiers(ctx context.Context, identifiers []CardIdentifier) ([]Card, []CardIdentifier, error) {
	if len(identifiers) == 0 {
		return []Card{}, nil, nil
	}

	type chunkResult struct {
		cards    []Card
		notFound []CardIdentifier
		err      error
	}

	var chunks [][]CardIdentifier
	for i := 0; i < len(identifiers); i += MaxBatchSize {
		end := min(i+MaxBatchSize, len(identifiers))
		chunks = append(chunks, identifiers[i:end])
	}

	results := make([]chunkResult, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []CardIdentifier) {
			defer wg.Done()
			cards, notFound, err := c.fetchChunk(ctx, chunk)
			results[i] = chunkResult{cards: cards, notFound: notFound, err: err}
		}(i, chunk)
	}
	wg.Wait()

	var allCards []Card
	var allNotFound []CardIdentifier
	var errs []error
	for i, res := range results {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("chunk %d (%d cards): %w", i, len(chunks[i]), res.err))
			continue
		}
		allCards = append(allCards, res.cards...)
		allNotFound = append(allNotFound, res.notFound...)
	}

	return allCards, allNotFound, errors.Join(errs...)
}

// GetCardsByNames fetches multiple cards by their names. Not-found entries
// are reported back as names.
func (c *Client) GetCardsByNames(ctx context.Context, names []string) ([]Card, []string, error) {
	identifiers := make([]CardIdentifier, len(names))
	for i, name := range names {
		identifiers[i] = CardIdentifier{Name: name}
	}

	cards, notFoundIDs, err := c.GetCardsByIdentifiers(ctx, identifiers)

	notFound := make([]string, 0, len(notFoundIDs))
	for _, id := range notFoundIDs {
		notFound = append(notFound, id.String())
	}

	return cards, notFound, err
}

// fetchChunk performs one rate-limited request to /cards/collection. It
// rejects identifier lists larger than MaxBatchSize instead of sending them.
func (c *Client) fetchChunk(ctx context.Context, identifiers []CardIdentifier) ([]Card, []CardIdentifier, error) {
	if len(identifiers) > MaxBatchSize {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(identifiers), MaxBatchSize)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter error: %w", err)
	}

	reqBody := CollectionRequest{Identifiers: identifiers}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cards/collection", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch cards from Scryfall: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("scryfall API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var collectionResp CollectionResponse
	if err := json.Unmarshal(body, &collectionResp); err != nil {
		return nil, nil, fmt.Errorf("failed to parse Scryfall response: %w", err)
	}

	return collectionResp.Data, collectionResp.NotFound, nil
}
