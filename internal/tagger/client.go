// Package tagger is a rate-limited client for the Scryfall Tagger service,
// which provides community-maintained functional tags per printing.
package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://tagger.scryfall.com"
	rateLimitDelay = 100 * time.Millisecond
	requestTimeout = 30 * time.Second
)

// fetchCardQuery asks for a card's taggings with tag statuses and ancestry.
const fetchCardQuery = `
query FetchCard($set: String!, $number: String!, $back: Boolean = false) {
  card: cardBySet(set: $set, number: $number, back: $back) {
    name
    oracleId
    taggings {
      status
      tag {
        name
        type
        status
        ancestorTags {
          name
          type
          status
        }
      }
    }
  }
}`

// Client represents a Scryfall Tagger API client with rate limiting.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	userAgent   string
	logger      zerolog.Logger
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

// WithRateLimit overrides the minimum spacing between requests.
func WithRateLimit(delay time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = rate.NewLimiter(rate.Every(delay), 1)
	}
}

// WithLogger attaches a logger to the client.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "tagger").Logger()
	}
}

// NewClient creates a new Tagger API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		rateLimiter: rate.NewLimiter(rate.Every(rateLimitDelay), 1),
		baseURL:     defaultBaseURL,
		userAgent:   "deckforge/1.0",
		logger:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchTags retrieves the valid functional tags for one printing, keyed by
// set code and collector number. It returns (nil, nil) when the tagger does
// not know the card; that is not a failure.
func (c *Client) FetchTags(ctx context.Context, setCode, collectorNumber string) (*TagRecord, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	reqBody := map[string]any{
		"query": fetchCardQuery,
		"variables": map[string]any{
			"set":    setCode,
			"number": collectorNumber,
			"back":   false,
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query tagger: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tagger API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var fetchResp fetchCardResponse
	if err := json.Unmarshal(body, &fetchResp); err != nil {
		return nil, fmt.Errorf("failed to parse tagger response: %w", err)
	}

	if fetchResp.Data.Card == nil {
		c.logger.Debug().Str("set", setCode).Str("number", collectorNumber).
			Msg("card unknown to tagger")
		return nil, nil
	}

	return buildRecord(fetchResp.Data.Card), nil
}

// buildRecord filters a card's taggings down to valid functional tags: the
// assignment, the tag, and every ancestor tag must be in good standing.
func buildRecord(card *cardPayload) *TagRecord {
	seen := make(map[string]struct{})
	tags := make([]string, 0, len(card.Taggings))

	for _, tagging := range card.Taggings {
		if tagging.Status != goodStanding {
			continue
		}
		if !tagging.Tag.isFunctional() || !tagging.Tag.inGoodStanding() {
			continue
		}
		if _, dup := seen[tagging.Tag.Name]; dup {
			continue
		}
		seen[tagging.Tag.Name] = struct{}{}
		tags = append(tags, tagging.Tag.Name)
	}

	// Tag order carries no meaning; sort for stable output.
	sort.Strings(tags)

	return &TagRecord{
		Name:     card.Name,
		OracleID: card.OracleID,
		Tags:     tags,
	}
}
