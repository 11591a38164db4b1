// Package main provides the deckforge command line tool. It imports a deck
// from the configured deck service, enriches every card with authoritative
// card data and community functional tags, and prints the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"deckforge/internal/bulkdata"
	"deckforge/internal/cache"
	"deckforge/internal/config"
	"deckforge/internal/deck"
	"deckforge/internal/logging"
	"deckforge/internal/pipeline"
	"deckforge/internal/scryfall"
	"deckforge/internal/tagger"
)

var (
	deckID      = flag.String("deck", "", "Deck ID to import (required unless -refresh-bulk or -sweep is given)")
	dbPath      = flag.String("db", "", "Cache database path (default: ~/.deckforge/cache.db)")
	logLevel    = flag.String("log-level", "", "Minimum log level (overrides config)")
	pretty      = flag.Bool("pretty", false, "Human-readable log output")
	showStats   = flag.Bool("stats", false, "Print cache statistics after the run")
	sweep       = flag.Bool("sweep", false, "Remove expired cache entries before the run")
	refreshBulk = flag.String("refresh-bulk", "", "Refresh and print metadata for a bulk data type (e.g. default_cards)")
)

func main() {
	flag.Parse()

	if *deckID == "" && *refreshBulk == "" && !*sweep {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level := cfg.Log.Level
	if *logLevel != "" {
		level = *logLevel
	}
	logger := logging.New(logging.Config{
		Level:  level,
		Pretty: *pretty || cfg.Log.Pretty,
	})

	// Resolve the cache database path and make sure its directory exists.
	cachePath := *dbPath
	if cachePath == "" {
		cachePath, err = cfg.CachePath()
		if err != nil {
			log.Fatalf("Failed to resolve cache path: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		log.Fatalf("Failed to create cache directory: %v", err)
	}

	db, err := cache.Open(cache.DefaultDBConfig(cachePath))
	if err != nil {
		log.Fatalf("Failed to open cache database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing cache database: %v", err)
		}
	}()

	cardTTL, err := cfg.CardTTL()
	if err != nil {
		log.Fatalf("Invalid card TTL: %v", err)
	}
	tagTTL, err := cfg.TagTTL()
	if err != nil {
		log.Fatalf("Invalid tag TTL: %v", err)
	}

	store := cache.NewStore(db, logger,
		cache.WithTTL(cache.CardByID, cardTTL),
		cache.WithTTL(cache.CardByName, cardTTL),
		cache.WithTTL(cache.TagsBySetNumber, tagTTL),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *sweep {
		sweepCache(ctx, store, logger)
	}

	scryfallClient := scryfall.NewClient(
		scryfall.WithBaseURL(cfg.Scryfall.BaseURL),
		scryfall.WithRateLimit(time.Duration(cfg.Scryfall.RateLimitMS)*time.Millisecond),
		scryfall.WithLogger(logger),
	)

	if *refreshBulk != "" {
		if err := refreshBulkMeta(ctx, scryfallClient, store, logger, *refreshBulk); err != nil {
			log.Fatalf("Failed to refresh bulk metadata: %v", err)
		}
	}

	if *deckID != "" {
		if err := runImport(ctx, cfg, scryfallClient, store, logger); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
	}

	if *showStats {
		printStats(ctx, store)
	}
}

func runImport(ctx context.Context, cfg *config.Config, cards *scryfall.Client, store *cache.Store, logger zerolog.Logger) error {
	decks := deck.NewClient(
		deck.WithBaseURL(cfg.Deck.BaseURL),
		deck.WithLogger(logger),
	)
	tags := tagger.NewClient(
		tagger.WithBaseURL(cfg.Tagger.BaseURL),
		tagger.WithRateLimit(time.Duration(cfg.Tagger.RateLimitMS)*time.Millisecond),
		tagger.WithLogger(logger),
	)

	importer := pipeline.NewImporter(decks, cards, tags, store, logger)

	fmt.Printf("Importing deck %s...\n", *deckID)
	start := time.Now()

	result, err := importer.Import(ctx, *deckID, func(p pipeline.Progress) {
		switch p.Stage {
		case pipeline.StageFetchDeck:
			fmt.Println("Fetching deck...")
		case pipeline.StageEnrichCards:
			fmt.Printf("\rEnriching cards... %d/%d", p.Processed, p.Total)
			if p.Processed == p.Total {
				fmt.Println()
			}
		case pipeline.StageEnrichTags:
			if p.CurrentCard != "" {
				fmt.Printf("\rFetching tags... %d/%d (%s)\033[K", p.Processed, p.Total, p.CurrentCard)
			}
			if p.Processed == p.Total {
				fmt.Println()
			}
		}
	})
	if err != nil {
		return err
	}

	printResult(result, time.Since(start))
	return nil
}

func printResult(result *pipeline.Result, elapsed time.Duration) {
	fmt.Println()
	fmt.Printf("Deck: %s", result.DeckName)
	if result.Format != "" {
		fmt.Printf(" [%s]", result.Format)
	}
	if result.Author != "" {
		fmt.Printf(" by %s", result.Author)
	}
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))

	for _, board := range []deck.Board{deck.BoardCommanders, deck.BoardCompanion, deck.BoardMainboard, deck.BoardSideboard} {
		var lines []string
		for _, card := range result.Cards {
			if card.Board != board {
				continue
			}
			line := fmt.Sprintf("%2dx %-32s", card.Quantity, card.Name)
			if card.SetCode != "" {
				line += fmt.Sprintf(" (%s) %s", strings.ToUpper(card.SetCode), card.CollectorNumber)
			}
			if card.Prices.USD != nil {
				line += fmt.Sprintf("  $%s", *card.Prices.USD)
			}
			if len(card.OracleTags) > 0 {
				line += "  [" + strings.Join(card.OracleTags, ", ") + "]"
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		sort.Strings(lines)
		fmt.Printf("\n%s (%d)\n", boardTitle(board), len(lines))
		for _, line := range lines {
			fmt.Println(line)
		}
	}

	fmt.Println()
	fmt.Printf("%d cards enriched in %s\n", len(result.Cards), elapsed.Round(time.Millisecond))

	if len(result.Errors) > 0 {
		fmt.Printf("\n%d problem(s):\n", len(result.Errors))
		for _, e := range result.Errors {
			if e.CardName != "" {
				fmt.Printf("  - [%s] %s: %s\n", e.Stage, e.CardName, e.Err)
			} else {
				fmt.Printf("  - [%s] %s\n", e.Stage, e.Err)
			}
		}
	}
}

func boardTitle(board deck.Board) string {
	s := string(board)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sweepCache(ctx context.Context, store *cache.Store, logger zerolog.Logger) {
	total := 0
	for _, ns := range []cache.Namespace{cache.CardByID, cache.CardByName, cache.TagsBySetNumber, cache.BulkMeta} {
		n, err := store.SweepExpired(ctx, ns)
		if err != nil {
			logger.Warn().Err(err).Str("namespace", string(ns)).Msg("cache sweep failed")
			continue
		}
		total += n
	}
	fmt.Printf("Swept %d expired cache entries\n", total)
}

func refreshBulkMeta(ctx context.Context, client *scryfall.Client, store *cache.Store, logger zerolog.Logger, bulkType string) error {
	svc := bulkdata.NewService(client, store, logger)
	if err := svc.Invalidate(ctx, bulkType); err != nil {
		return err
	}

	meta, err := svc.Metadata(ctx, bulkType)
	if err != nil {
		return err
	}

	fmt.Printf("Bulk data %q: %s\n", meta.Type, meta.Name)
	fmt.Printf("  Updated: %s\n", meta.UpdatedAt.Format(time.RFC3339))
	if meta.CompressedSize > 0 {
		fmt.Printf("  Size:    %.1f MB\n", float64(meta.CompressedSize)/(1024*1024))
	}
	if meta.DownloadURI != "" {
		fmt.Printf("  URI:     %s\n", meta.DownloadURI)
	}
	return nil
}

func printStats(ctx context.Context, store *cache.Store) {
	stats, err := store.Stats(ctx)
	if err != nil {
		log.Printf("Failed to read cache statistics: %v", err)
		return
	}

	fmt.Println("\nCache statistics:")
	var namespaces []string
	for ns := range stats.Namespaces {
		namespaces = append(namespaces, string(ns))
	}
	sort.Strings(namespaces)
	for _, ns := range namespaces {
		s := stats.Namespaces[cache.Namespace(ns)]
		fmt.Printf("  %-20s %d valid, %d expired\n", ns, s.Valid, s.Expired)
	}
	fmt.Printf("  %-20s %d entries\n", "total", stats.Total())
}
