// Package deck fetches decks from the deck-building service and normalizes
// the two historical response shapes into one internal representation.
package deck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api2.moxfield.com"
	requestTimeout = 30 * time.Second
)

// ErrDeckNotFound indicates the deck service does not know the deck id.
var ErrDeckNotFound = errors.New("deck not found")

// Client fetches decks from the deck service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger attaches a logger to the client.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "deck").Logger()
	}
}

// NewClient creates a new deck service client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL:   defaultBaseURL,
		userAgent: "deckforge/1.0",
		logger:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetDeck fetches a deck by its public id and returns the normalized form.
func (c *Client) GetDeck(ctx context.Context, id string) (*Deck, error) {
	url := fmt.Sprintf("%s/v3/decks/all/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deck %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return nil, fmt.Errorf("deck %s: %w", id, ErrDeckNotFound)
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("deck service returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var deckResp deckResponse
	if err := json.Unmarshal(body, &deckResp); err != nil {
		return nil, fmt.Errorf("failed to parse deck response: %w", err)
	}

	deck := normalize(id, &deckResp)
	c.logger.Debug().Str("deck", id).Int("entries", len(deck.Entries)).
		Msg("deck fetched")
	return deck, nil
}
