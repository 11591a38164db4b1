package pipeline

import (
	"strings"

	"deckforge/internal/deck"
	"deckforge/internal/scryfall"
)

// CardAggregate is the unified per-card record combining deck context,
// authoritative card data, and community functional tags. Each enrichment
// stage owns a field group and overwrites it wholesale from a single upstream
// snapshot; no field group mixes two upstream responses.
type CardAggregate struct {
	// Stable identity: the Scryfall id when known, otherwise a synthesized
	// placeholder id.
	ID string

	// Provenance
	DeckCardID string
	ScryfallID string
	OracleID   string

	// Print identity (required for tag lookups)
	Name            string
	SetCode         string
	SetName         string
	CollectorNumber string

	// Deck context
	Quantity  int
	Board     deck.Board
	Foil      bool
	Condition string
	Language  string

	// Card details (overwritten by the card data stage on match)
	ManaCost      string
	CMC           float64
	TypeLine      string
	OracleText    string
	Power         string
	Toughness     string
	Loyalty       string
	Colors        []string
	ColorIdentity []string

	// Visual / market (overwritten together with details)
	ImageURIs *scryfall.ImageURIs
	Prices    scryfall.Prices

	// Functional tags (populated only by the tag stage)
	OracleTags    []string
	TaggerFetched bool
	TaggerError   string
}

// newAggregate builds a skeleton aggregate carrying only deck-service data.
func newAggregate(e deck.Entry) *CardAggregate {
	agg := &CardAggregate{
		DeckCardID:      e.DeckCardID,
		ScryfallID:      e.ScryfallID,
		Name:            e.Name,
		SetCode:         e.SetCode,
		SetName:         e.SetName,
		CollectorNumber: e.CollectorNumber,
		Quantity:        e.Quantity,
		Board:           e.Board,
		Foil:            e.Foil,
		Condition:       e.Condition,
		Language:        e.Language,
		ManaCost:        e.ManaCost,
		CMC:             e.CMC,
		TypeLine:        e.TypeLine,
		OracleText:      e.OracleText,
		Power:           e.Power,
		Toughness:       e.Toughness,
		Loyalty:         e.Loyalty,
		Colors:          e.Colors,
		ColorIdentity:   e.ColorIdentity,
	}

	if e.ScryfallID != "" {
		agg.ID = e.ScryfallID
	} else {
		agg.ID = placeholderID(e.Name)
	}

	return agg
}

// applyCard overwrites the aggregate's detail, visual, and market fields from
// one card data snapshot. Print identity from the deck service is respected
// when the deck pinned a specific printing; otherwise the snapshot supplies it.
func (a *CardAggregate) applyCard(card *scryfall.Card) {
	a.ID = card.ID
	a.ScryfallID = card.ID
	a.OracleID = card.OracleID

	if a.SetCode == "" || a.CollectorNumber == "" {
		a.SetCode = card.SetCode
		a.SetName = card.SetName
		a.CollectorNumber = card.CollectorNumber
	}

	a.ManaCost = card.ManaCost
	a.CMC = card.CMC
	a.TypeLine = card.TypeLine
	a.OracleText = card.OracleText
	a.Power = card.Power
	a.Toughness = card.Toughness
	a.Loyalty = card.Loyalty
	a.Colors = card.Colors
	a.ColorIdentity = card.ColorIdentity

	a.ImageURIs = card.ImageURIs
	a.Prices = card.Prices
}

// NormalizeName derives the by-name cache key for a card name: lowercased,
// trimmed, front face only for split names.
func NormalizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if front, _, found := strings.Cut(name, " // "); found {
		return strings.TrimSpace(front)
	}
	return name
}

// placeholderID synthesizes a stable id for cards the card data service does
// not know.
func placeholderID(name string) string {
	return "placeholder_" + strings.ReplaceAll(NormalizeName(name), " ", "_")
}
