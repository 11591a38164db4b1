package deck

// Board classifies where a card sits in the deck.
type Board string

const (
	BoardMainboard  Board = "mainboard"
	BoardSideboard  Board = "sideboard"
	BoardCommanders Board = "commanders"
	BoardCompanion  Board = "companion"
)

// Deck is the normalized deck representation. All downstream code operates on
// this form only; the two wire shapes are resolved at ingestion.
type Deck struct {
	ID      string
	Name    string
	Format  string
	Author  string
	Entries []Entry
}

// Entry is one card line in a deck, flattened across boards. Card detail
// fields are whatever partial data the deck service carries; the enrichment
// pipeline overwrites them from authoritative card data.
type Entry struct {
	Name            string
	Quantity        int
	Board           Board
	Foil            bool
	Condition       string
	Language        string
	DeckCardID      string
	ScryfallID      string
	SetCode         string
	SetName         string
	CollectorNumber string

	ManaCost      string
	CMC           float64
	TypeLine      string
	OracleText    string
	Power         string
	Toughness     string
	Loyalty       string
	Colors        []string
	ColorIdentity []string
}

// deckResponse carries both historical response shapes: the nested id-keyed
// "boards" shape and the legacy flat name-keyed maps. The nested shape wins
// when present.
type deckResponse struct {
	Name          string `json:"name"`
	Format        string `json:"format"`
	CreatedByUser *struct {
		UserName string `json:"userName"`
	} `json:"createdByUser"`

	// Nested shape
	Boards map[string]boardPayload `json:"boards"`

	// Legacy flat shape
	Mainboard  map[string]cardEntryPayload `json:"mainboard"`
	Sideboard  map[string]cardEntryPayload `json:"sideboard"`
	Commanders map[string]cardEntryPayload `json:"commanders"`
	Companion  map[string]cardEntryPayload `json:"companion"`
}

type boardPayload struct {
	Count int                         `json:"count"`
	Cards map[string]cardEntryPayload `json:"cards"`
}

type cardEntryPayload struct {
	Quantity  int              `json:"quantity"`
	IsFoil    bool             `json:"isFoil"`
	Condition string           `json:"condition"`
	Language  string           `json:"language"`
	Card      *cardInfoPayload `json:"card"`
}

type cardInfoPayload struct {
	ID              string   `json:"id"`
	ScryfallID      string   `json:"scryfall_id"`
	Name            string   `json:"name"`
	SetCode         string   `json:"set"`
	SetName         string   `json:"set_name"`
	CollectorNumber string   `json:"cn"`
	ManaCost        string   `json:"mana_cost"`
	CMC             float64  `json:"cmc"`
	TypeLine        string   `json:"type_line"`
	OracleText      string   `json:"oracle_text"`
	Power           string   `json:"power"`
	Toughness       string   `json:"toughness"`
	Loyalty         string   `json:"loyalty"`
	Colors          []string `json:"colors"`
	ColorIdentity   []string `json:"color_identity"`
}
