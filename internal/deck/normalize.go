package deck

import "sort"

// boardOrder fixes the flattening order so an import always visits cards in
// the same sequence: commanders first, then companion, main, side.
var boardOrder = []Board{BoardCommanders, BoardCompanion, BoardMainboard, BoardSideboard}

// normalize resolves whichever wire shape the deck service returned into the
// single internal representation.
func normalize(id string, resp *deckResponse) *Deck {
	d := &Deck{
		ID:     id,
		Name:   resp.Name,
		Format: resp.Format,
	}
	if resp.CreatedByUser != nil {
		d.Author = resp.CreatedByUser.UserName
	}

	if len(resp.Boards) > 0 {
		for _, board := range boardOrder {
			payload, ok := resp.Boards[string(board)]
			if !ok {
				continue
			}
			d.Entries = append(d.Entries, flattenBoard(board, payload.Cards)...)
		}
		return d
	}

	// Legacy flat shape: name-keyed maps per board.
	d.Entries = append(d.Entries, flattenBoard(BoardCommanders, resp.Commanders)...)
	d.Entries = append(d.Entries, flattenBoard(BoardCompanion, resp.Companion)...)
	d.Entries = append(d.Entries, flattenBoard(BoardMainboard, resp.Mainboard)...)
	d.Entries = append(d.Entries, flattenBoard(BoardSideboard, resp.Sideboard)...)
	return d
}

// flattenBoard turns one board's keyed card map into entries. The map key is
// a card name in the flat shape and an opaque id in the nested shape; the
// embedded card object's name wins when present.
func flattenBoard(board Board, cards map[string]cardEntryPayload) []Entry {
	if len(cards) == 0 {
		return nil
	}

	keys := make([]string, 0, len(cards))
	for key := range cards {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(cards))
	for _, key := range keys {
		payload := cards[key]

		entry := Entry{
			Name:      key,
			Quantity:  payload.Quantity,
			Board:     board,
			Foil:      payload.IsFoil,
			Condition: payload.Condition,
			Language:  payload.Language,
		}
		if entry.Quantity <= 0 {
			entry.Quantity = 1
		}

		if card := payload.Card; card != nil {
			if card.Name != "" {
				entry.Name = card.Name
			}
			entry.DeckCardID = card.ID
			entry.ScryfallID = card.ScryfallID
			entry.SetCode = card.SetCode
			entry.SetName = card.SetName
			entry.CollectorNumber = card.CollectorNumber
			entry.ManaCost = card.ManaCost
			entry.CMC = card.CMC
			entry.TypeLine = card.TypeLine
			entry.OracleText = card.OracleText
			entry.Power = card.Power
			entry.Toughness = card.Toughness
			entry.Loyalty = card.Loyalty
			entry.Colors = card.Colors
			entry.ColorIdentity = card.ColorIdentity
		}

		entries = append(entries, entry)
	}

	return entries
}
