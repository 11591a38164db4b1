// Package pipeline implements the deck import orchestrator: fetch a deck,
// enrich every card with authoritative card data, then with community
// functional tags, caching along the way and collecting per-card errors
// without aborting the import.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"deckforge/internal/cache"
	"deckforge/internal/deck"
	"deckforge/internal/scryfall"
	"deckforge/internal/tagger"
)

// breakerThreshold is how many consecutive tag-service failures stop further
// tag lookups for the remainder of an import.
const breakerThreshold = 3

const (
	errNotFound      = "not found"
	errMissingPrint  = "missing set or collector number"
	errTaggerStopped = "tag lookup stopped after repeated errors"
	errTaggerUnknown = "card unknown to tagger"
	tagKeyFormat     = "%s_%s"
)

// DeckFetcher fetches a deck by id from the deck service.
type DeckFetcher interface {
	GetDeck(ctx context.Context, id string) (*deck.Deck, error)
}

// CardFetcher fetches card records for a set of identifiers, batching
// transparently.
type CardFetcher interface {
	GetCardsByIdentifiers(ctx context.Context, identifiers []scryfall.CardIdentifier) ([]scryfall.Card, []scryfall.CardIdentifier, error)
}

// TagFetcher fetches functional tags for one printing.
type TagFetcher interface {
	FetchTags(ctx context.Context, setCode, collectorNumber string) (*tagger.TagRecord, error)
}

// Cache is the subset of the persistent store the pipeline uses.
// *cache.Store satisfies it.
type Cache interface {
	Get(ctx context.Context, ns cache.Namespace, key string) *cache.Entry
	Put(ctx context.Context, ns cache.Namespace, key string, payload json.RawMessage)
	GetMany(ctx context.Context, ns cache.Namespace, keys []string) map[string]json.RawMessage
}

// Importer runs deck imports. All collaborators are injected so tests run
// against hermetic stubs.
type Importer struct {
	decks  DeckFetcher
	cards  CardFetcher
	tags   TagFetcher
	cache  Cache
	logger zerolog.Logger
}

// NewImporter creates an import orchestrator.
func NewImporter(decks DeckFetcher, cards CardFetcher, tags TagFetcher, store Cache, logger zerolog.Logger) *Importer {
	return &Importer{
		decks:  decks,
		cards:  cards,
		tags:   tags,
		cache:  store,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// Import runs the full pipeline for one deck id. Only a deck fetch failure is
// fatal; every other failure degrades the affected cards and lands in the
// result's error list. onProgress, when non-nil, receives a snapshot after
// every state change.
func (imp *Importer) Import(ctx context.Context, deckID string, onProgress ProgressFunc) (*Result, error) {
	progress := &Progress{Stage: StageIdle}
	report := func() {
		if onProgress != nil {
			onProgress(progress.snapshot())
		}
	}

	// Stage 1: fetch the deck. Nothing to enrich if this fails.
	progress.Stage = StageFetchDeck
	report()

	d, err := imp.decks.GetDeck(ctx, deckID)
	if err != nil {
		progress.Stage = StageError
		report()
		return nil, fmt.Errorf("fetch deck %s: %w", deckID, err)
	}

	aggregates := make([]*CardAggregate, len(d.Entries))
	for i, entry := range d.Entries {
		aggregates[i] = newAggregate(entry)
	}

	imp.logger.Info().Str("deck", deckID).Str("name", d.Name).
		Int("cards", len(aggregates)).Msg("deck fetched, enriching")

	// Stage 2: card data.
	progress.Stage = StageEnrichCards
	progress.Processed = 0
	progress.Total = len(aggregates)
	report()
	imp.enrichCards(ctx, aggregates, progress, report)

	// Stage 3: functional tags.
	progress.Stage = StageEnrichTags
	progress.Processed = 0
	progress.CurrentCard = ""
	report()
	imp.enrichTags(ctx, aggregates, progress, report)

	progress.Stage = StageComplete
	progress.CurrentCard = ""
	report()

	return &Result{
		DeckID:   deckID,
		DeckName: d.Name,
		Format:   d.Format,
		Author:   d.Author,
		Cards:    aggregates,
		Errors:   progress.Errors,
	}, nil
}

// enrichCards resolves card data for every distinct name: by-name cache
// first, then one batched fetch for the uncached remainder. Fresh records are
// cached under both the by-id and by-name namespaces before merging.
func (imp *Importer) enrichCards(ctx context.Context, aggregates []*CardAggregate, progress *Progress, report func()) {
	var names []string
	seen := make(map[string]struct{})
	for _, agg := range aggregates {
		key := NormalizeName(agg.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, key)
	}

	records := make(map[string]*scryfall.Card, len(names))

	cached := imp.cache.GetMany(ctx, cache.CardByName, names)
	for key, payload := range cached {
		var card scryfall.Card
		if err := json.Unmarshal(payload, &card); err != nil {
			imp.logger.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached card")
			continue
		}
		records[key] = &card
	}

	var uncached []string
	for _, key := range names {
		if _, ok := records[key]; !ok {
			uncached = append(uncached, key)
		}
	}

	if len(uncached) > 0 {
		identifiers := make([]scryfall.CardIdentifier, len(uncached))
		for i, name := range uncached {
			identifiers[i] = scryfall.CardIdentifier{Name: name}
		}

		found, _, err := imp.cards.GetCardsByIdentifiers(ctx, identifiers)
		if err != nil {
			// Partial results may still be present; record one batch-level
			// error and merge whatever arrived.
			imp.logger.Warn().Err(err).Int("requested", len(uncached)).
				Msg("batched card fetch failed")
			progress.Errors = append(progress.Errors, ImportError{
				Stage: StageEnrichCards,
				Err:   fmt.Sprintf("card data fetch failed: %v", err),
			})
		}

		for i := range found {
			card := &found[i]

			payload, err := json.Marshal(card)
			if err != nil {
				imp.logger.Warn().Err(err).Str("card", card.Name).Msg("failed to encode card for cache")
			} else {
				imp.cache.Put(ctx, cache.CardByID, card.ID, payload)
				imp.cache.Put(ctx, cache.CardByName, NormalizeName(card.Name), payload)
			}

			records[NormalizeName(card.Name)] = card
		}
	}

	for _, agg := range aggregates {
		progress.CurrentCard = agg.Name

		if card, ok := records[NormalizeName(agg.Name)]; ok {
			agg.applyCard(card)
		} else {
			progress.Errors = append(progress.Errors, ImportError{
				CardName: agg.Name,
				Stage:    StageEnrichCards,
				Err:      errNotFound,
			})
		}

		progress.Processed++
		report()
	}
}

// enrichTags resolves functional tags per card, strictly sequentially so the
// rate limiter and the consecutive-failure breaker stay meaningful. Tag
// results, including explicit empty lists, are cached by set+number.
func (imp *Importer) enrichTags(ctx context.Context, aggregates []*CardAggregate, progress *Progress, report func()) {
	consecutiveFailures := 0
	tripped := false

	finish := func(agg *CardAggregate) {
		agg.TaggerFetched = true
		progress.Processed++
		report()
	}

	for _, agg := range aggregates {
		progress.CurrentCard = agg.Name

		if agg.SetCode == "" || agg.CollectorNumber == "" {
			agg.TaggerError = errMissingPrint
			progress.Errors = append(progress.Errors, ImportError{
				CardName: agg.Name,
				Stage:    StageEnrichTags,
				Err:      errMissingPrint,
			})
			finish(agg)
			continue
		}

		if tripped {
			agg.TaggerError = errTaggerStopped
			progress.Errors = append(progress.Errors, ImportError{
				CardName: agg.Name,
				Stage:    StageEnrichTags,
				Err:      errTaggerStopped,
			})
			finish(agg)
			continue
		}

		key := fmt.Sprintf(tagKeyFormat, agg.SetCode, agg.CollectorNumber)

		if entry := imp.cache.Get(ctx, cache.TagsBySetNumber, key); entry != nil {
			var record tagger.TagRecord
			if err := json.Unmarshal(entry.Payload, &record); err == nil {
				imp.applyTags(agg, &record)
				finish(agg)
				continue
			}
			imp.logger.Warn().Str("key", key).Msg("discarding unreadable cached tag record")
		}

		record, err := imp.tags.FetchTags(ctx, agg.SetCode, agg.CollectorNumber)
		if err != nil {
			consecutiveFailures++
			agg.TaggerError = err.Error()
			progress.Errors = append(progress.Errors, ImportError{
				CardName: agg.Name,
				Stage:    StageEnrichTags,
				Err:      err.Error(),
			})
			if consecutiveFailures >= breakerThreshold {
				tripped = true
				imp.logger.Warn().Int("failures", consecutiveFailures).
					Msg("tag service circuit breaker tripped, skipping remaining lookups")
			}
			finish(agg)
			continue
		}
		consecutiveFailures = 0

		if record == nil {
			// Card unknown upstream. Cache an explicit empty record so the
			// next import does not re-query it.
			record = &tagger.TagRecord{Name: agg.Name, Tags: []string{}}
			agg.TaggerError = errTaggerUnknown
			progress.Errors = append(progress.Errors, ImportError{
				CardName: agg.Name,
				Stage:    StageEnrichTags,
				Err:      errTaggerUnknown,
			})
		}

		if payload, err := json.Marshal(record); err == nil {
			imp.cache.Put(ctx, cache.TagsBySetNumber, key, payload)
		} else {
			imp.logger.Warn().Err(err).Str("key", key).Msg("failed to encode tag record for cache")
		}

		imp.applyTags(agg, record)
		finish(agg)
	}
}

// applyTags copies one tag snapshot onto the aggregate.
func (imp *Importer) applyTags(agg *CardAggregate, record *tagger.TagRecord) {
	agg.OracleTags = record.Tags
	if agg.OracleID == "" && record.OracleID != "" {
		agg.OracleID = record.OracleID
	}
}
