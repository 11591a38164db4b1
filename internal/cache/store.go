package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Namespace identifies an isolated keyspace with its own TTL policy.
type Namespace string

const (
	// CardByID stores card data records keyed by Scryfall id.
	CardByID Namespace = "card_by_id"

	// CardByName stores card data records keyed by normalized card name.
	// On key collision the most recently captured entry wins.
	CardByName Namespace = "card_by_name"

	// TagsBySetNumber stores functional tag records keyed by "{set}_{number}".
	TagsBySetNumber Namespace = "tags_by_set_number"

	// BulkMeta stores bulk data file metadata keyed by bulk data type.
	BulkMeta Namespace = "bulk_meta"
)

// Default validity windows per namespace.
const (
	DefaultCardTTL = 24 * time.Hour
	DefaultTagTTL  = 12 * time.Hour
	DefaultBulkTTL = 24 * time.Hour
)

// Entry is a single cached record. Entries are immutable once written; a
// refetch overwrites the row at the same key.
type Entry struct {
	Namespace  Namespace
	Key        string
	Payload    json.RawMessage
	CapturedAt time.Time
}

// NamespaceStats reports entry counts for one namespace.
type NamespaceStats struct {
	Valid   int
	Expired int
}

// Stats reports entry counts by namespace and validity.
type Stats struct {
	Namespaces map[Namespace]NamespaceStats
}

// Total returns the overall number of entries across namespaces.
func (s Stats) Total() int {
	total := 0
	for _, ns := range s.Namespaces {
		total += ns.Valid + ns.Expired
	}
	return total
}

// Store is the persistent TTL cache. Expiry is lazy: reads treat expired
// entries as absent; SweepExpired actually deletes them.
//
// Reads and writes absorb storage failures: a broken cache degrades to a
// cache that always misses, it never fails the import.
type Store struct {
	db     *DB
	ttls   map[Namespace]time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL overrides the validity window for one namespace.
func WithTTL(ns Namespace, ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttls[ns] = ttl
	}
}

// WithClock overrides the time source. Used by tests to age entries.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a cache store on top of an open database.
func NewStore(db *DB, logger zerolog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		db: db,
		ttls: map[Namespace]time.Duration{
			CardByID:        DefaultCardTTL,
			CardByName:      DefaultCardTTL,
			TagsBySetNumber: DefaultTagTTL,
			BulkMeta:        DefaultBulkTTL,
		},
		logger: logger.With().Str("component", "cache").Logger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TTL returns the validity window for a namespace.
func (s *Store) TTL(ns Namespace) time.Duration {
	if ttl, ok := s.ttls[ns]; ok {
		return ttl
	}
	return DefaultCardTTL
}

// valid reports whether an entry captured at the given time is still within
// its namespace's validity window.
func (s *Store) valid(ns Namespace, capturedAt time.Time) bool {
	return s.now().Sub(capturedAt) < s.TTL(ns)
}

// Get returns the entry for (namespace, key), or nil when the entry is
// absent, expired, or unreadable.
func (s *Store) Get(ctx context.Context, ns Namespace, key string) *Entry {
	query := `
		SELECT payload, captured_at
		FROM cache_entries
		WHERE namespace = ? AND key = ?
	`

	var payload []byte
	var capturedAt time.Time
	err := s.db.Conn().QueryRowContext(ctx, query, string(ns), key).Scan(&payload, &capturedAt)
	if err == sql.ErrNoRows {
		cacheMisses.WithLabelValues(string(ns)).Inc()
		return nil
	}
	if err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).
			Msg("cache read failed, treating as miss")
		return nil
	}

	if !s.valid(ns, capturedAt) {
		cacheMisses.WithLabelValues(string(ns)).Inc()
		return nil
	}

	cacheHits.WithLabelValues(string(ns)).Inc()
	return &Entry{
		Namespace:  ns,
		Key:        key,
		Payload:    payload,
		CapturedAt: capturedAt,
	}
}

// Put writes payload under (namespace, key), overwriting any previous entry.
// Storage failures are logged and swallowed.
func (s *Store) Put(ctx context.Context, ns Namespace, key string, payload json.RawMessage) {
	query := `
		INSERT INTO cache_entries (namespace, key, payload, captured_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			payload = excluded.payload,
			captured_at = excluded.captured_at
	`

	_, err := s.db.Conn().ExecContext(ctx, query, string(ns), key, []byte(payload), s.now().UTC())
	if err != nil {
		cacheErrors.WithLabelValues("put").Inc()
		s.logger.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).
			Msg("cache write failed")
	}
}

// GetMany returns payloads for all valid entries among keys. Absent, expired,
// and unreadable keys are simply missing from the result map.
func (s *Store) GetMany(ctx context.Context, ns Namespace, keys []string) map[string]json.RawMessage {
	result := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return result
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	query := `
		SELECT key, payload, captured_at
		FROM cache_entries
		WHERE namespace = ? AND key IN (` + placeholders + `)
	`

	args := make([]any, 0, len(keys)+1)
	args = append(args, string(ns))
	for _, k := range keys {
		args = append(args, k)
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		cacheErrors.WithLabelValues("get_many").Inc()
		s.logger.Warn().Err(err).Str("namespace", string(ns)).Int("keys", len(keys)).
			Msg("cache batch read failed, treating as miss")
		return result
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var payload []byte
		var capturedAt time.Time
		if err := rows.Scan(&key, &payload, &capturedAt); err != nil {
			cacheErrors.WithLabelValues("get_many").Inc()
			s.logger.Warn().Err(err).Str("namespace", string(ns)).Msg("cache row scan failed")
			continue
		}
		if s.valid(ns, capturedAt) {
			result[key] = payload
		}
	}
	if err := rows.Err(); err != nil {
		cacheErrors.WithLabelValues("get_many").Inc()
		s.logger.Warn().Err(err).Str("namespace", string(ns)).Msg("cache batch read aborted")
	}

	for range len(result) {
		cacheHits.WithLabelValues(string(ns)).Inc()
	}
	for range len(keys) - len(result) {
		cacheMisses.WithLabelValues(string(ns)).Inc()
	}

	return result
}

// SweepExpired deletes all expired entries in a namespace and returns how
// many were removed.
func (s *Store) SweepExpired(ctx context.Context, ns Namespace) (int, error) {
	cutoff := s.now().Add(-s.TTL(ns)).UTC()

	res, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND captured_at <= ?`,
		string(ns), cutoff,
	)
	if err != nil {
		cacheErrors.WithLabelValues("sweep").Inc()
		return 0, err
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	cacheSweeps.WithLabelValues(string(ns)).Add(float64(removed))
	return int(removed), nil
}

// Stats returns entry counts by namespace and validity.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Namespaces: make(map[Namespace]NamespaceStats)}

	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT namespace, captured_at FROM cache_entries`,
	)
	if err != nil {
		return stats, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ns string
		var capturedAt time.Time
		if err := rows.Scan(&ns, &capturedAt); err != nil {
			return stats, err
		}

		nsStats := stats.Namespaces[Namespace(ns)]
		if s.valid(Namespace(ns), capturedAt) {
			nsStats.Valid++
		} else {
			nsStats.Expired++
		}
		stats.Namespaces[Namespace(ns)] = nsStats
	}

	return stats, rows.Err()
}

// Delete removes one entry. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, ns Namespace, key string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`,
		string(ns), key,
	)
	return err
}

// Clear removes every entry in a namespace.
func (s *Store) Clear(ctx context.Context, ns Namespace) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ?`, string(ns),
	)
	return err
}
