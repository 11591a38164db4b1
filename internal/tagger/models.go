package tagger

import "encoding/json"

// goodStanding is the status an assignment, its tag, and every ancestor tag
// must all carry for the tag to count as a valid functional tag.
const goodStanding = "GOOD_STANDING"

// TagRecord is the result of a tag lookup for one printing: the set of valid
// functional tags. An empty Tags slice is a meaningful result (the card is
// known but untagged) and is cached like any other.
type TagRecord struct {
	Name     string   `json:"name"`
	OracleID string   `json:"oracleId"`
	Tags     []string `json:"tags"`
}

// fetchCardResponse is the GraphQL response envelope.
type fetchCardResponse struct {
	Data struct {
		Card *cardPayload `json:"card"`
	} `json:"data"`
}

// cardPayload is the tagger's view of one printing.
type cardPayload struct {
	Name     string    `json:"name"`
	OracleID string    `json:"oracleId"`
	Taggings []tagging `json:"taggings"`
}

// tagging is one tag assignment on a card, carrying its own status.
type tagging struct {
	Status string `json:"status"`
	Tag    tag    `json:"tag"`
}

// tag is a community tag. Older responses name the category field
// "namespace" rather than "type"; both are accepted.
type tag struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	AncestorTags []tag  `json:"ancestorTags"`
}

func (t *tag) UnmarshalJSON(data []byte) error {
	type alias tag
	aux := struct {
		*alias
		Namespace string `json:"namespace"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if t.Type == "" {
		t.Type = aux.Namespace
	}
	return nil
}

// inGoodStanding reports whether the tag and all of its ancestors are in good
// standing. A single out-of-standing ancestor invalidates the whole chain.
func (t tag) inGoodStanding() bool {
	if t.Status != goodStanding {
		return false
	}
	for _, ancestor := range t.AncestorTags {
		if !ancestor.inGoodStanding() {
			return false
		}
	}
	return true
}

// isFunctional reports whether the tag describes card function rather than
// artwork. An absent type is treated as functional.
func (t tag) isFunctional() bool {
	switch t.Type {
	case "", "ORACLE_CARD_TAG", "card":
		return true
	default:
		return false
	}
}
