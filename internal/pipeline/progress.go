package pipeline

// Stage identifies one sequential phase of an import.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageFetchDeck   Stage = "fetch-deck"
	StageEnrichCards Stage = "enrich-cards"
	StageEnrichTags  Stage = "enrich-tags"
	StageComplete    Stage = "complete"
	StageError       Stage = "error"
)

// ImportError records one recoverable failure, tagged with the card it
// concerns and the stage that produced it. A batch-level failure carries an
// empty CardName.
type ImportError struct {
	CardName string
	Stage    Stage
	Err      string
}

// Progress is the mutable state of one running import. The orchestrator
// mutates a single Progress in place and hands immutable snapshots to the
// progress callback after every state change.
type Progress struct {
	Stage       Stage
	Processed   int
	Total       int
	CurrentCard string
	Errors      []ImportError
}

// snapshot returns a copy safe to hand across the callback boundary.
func (p Progress) snapshot() Progress {
	cp := p
	cp.Errors = make([]ImportError, len(p.Errors))
	copy(cp.Errors, p.Errors)
	return cp
}

// ProgressFunc receives progress snapshots. It is invoked synchronously from
// the pipeline; its return is not consumed.
type ProgressFunc func(Progress)

// Result is the terminal artifact of a successful import: every card of the
// deck (enriched or degraded) plus the accumulated error list.
type Result struct {
	DeckID   string
	DeckName string
	Format   string
	Author   string
	Cards    []*CardAggregate
	Errors   []ImportError
}
