// Package bulkdata tracks Scryfall bulk data file metadata in the cache's
// bulk_meta namespace, so callers can decide whether a downloaded bulk file
// is stale without hitting the API on every check.
package bulkdata

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"deckforge/internal/cache"
	"deckforge/internal/scryfall"
)

// BulkFetcher fetches the bulk data listing from the card data service.
type BulkFetcher interface {
	GetBulkData(ctx context.Context) (*scryfall.BulkDataList, error)
}

// Service resolves bulk file metadata, cache first.
type Service struct {
	client  BulkFetcher
	store   *cache.Store
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewService creates a bulk metadata service.
func NewService(client BulkFetcher, store *cache.Store, logger zerolog.Logger) *Service {
	return &Service{
		client: client,
		store:  store,
		logger: logger.With().Str("component", "bulkdata").Logger(),
	}
}

// Metadata returns the metadata record for a bulk data type (for example
// "default_cards"), refetching the listing when the cached record is absent
// or expired. All types from a fresh listing are cached in one pass.
func (s *Service) Metadata(ctx context.Context, bulkType string) (*scryfall.BulkData, error) {
	if entry := s.store.Get(ctx, cache.BulkMeta, bulkType); entry != nil {
		var meta scryfall.BulkData
		if err := json.Unmarshal(entry.Payload, &meta); err == nil {
			return &meta, nil
		}
		s.logger.Warn().Str("type", bulkType).Msg("discarding unreadable cached bulk metadata")
	}

	list, err := s.client.GetBulkData(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch bulk data listing: %w", err)
	}

	var wanted *scryfall.BulkData
	for i := range list.Data {
		meta := &list.Data[i]
		if payload, err := json.Marshal(meta); err == nil {
			s.store.Put(ctx, cache.BulkMeta, meta.Type, payload)
		}
		if meta.Type == bulkType {
			wanted = meta
		}
	}

	if wanted == nil {
		return nil, fmt.Errorf("bulk data type %q not offered upstream", bulkType)
	}
	return wanted, nil
}

// Invalidate drops the cached metadata for one bulk type, forcing the next
// Metadata call to refetch.
func (s *Service) Invalidate(ctx context.Context, bulkType string) error {
	return s.store.Delete(ctx, cache.BulkMeta, bulkType)
}

// Watch invalidates cached metadata when a bulk file in dir is rewritten or
// replaced, for example by a manual download. The watch loop runs until the
// context is cancelled or Close is called.
func (s *Service) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.watcher = watcher

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				s.handleEvent(ctx, event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Msg("bulk file watcher error")
			}
		}
	}()

	return nil
}

// Close stops the watch loop, if one is running.
func (s *Service) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func (s *Service) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}

	bulkType := bulkTypeFromFilename(event.Name)
	if bulkType == "" {
		return
	}

	s.logger.Info().Str("file", event.Name).Str("type", bulkType).
		Msg("bulk file changed on disk, invalidating cached metadata")
	if err := s.Invalidate(ctx, bulkType); err != nil {
		s.logger.Warn().Err(err).Str("type", bulkType).Msg("failed to invalidate bulk metadata")
	}
}

// bulkTypeFromFilename maps a downloaded bulk file name back to its bulk data
// type: "default-cards-20260829102045.json" -> "default_cards". Trailing
// all-digit segments (the timestamp) are dropped.
func bulkTypeFromFilename(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != ".json" {
		return ""
	}
	base = strings.TrimSuffix(base, ext)

	segments := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for len(segments) > 0 && isDigits(segments[len(segments)-1]) {
		segments = segments[:len(segments)-1]
	}
	if len(segments) == 0 {
		return ""
	}
	return strings.Join(segments, "_")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
