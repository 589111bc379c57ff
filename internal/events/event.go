// Package events consumes entity change events from Kafka and applies them
// to the vector index.
package events

import (
	"errors"
	"fmt"
	"strings"
)

// Actions.
const (
	ActionIndex  = "index"
	ActionDelete = "delete"
)

// Entity kinds.
const (
	EntityProduct  = "product"
	EntityOffer    = "offer"
	EntityFAQ      = "faq"
	EntityBotFAQ   = "bot_faq"
	EntityDocument = "document"
	EntityWeb      = "web"
)

// ErrInvalidEvent marks events that can never be applied. They are
// committed and skipped.
var ErrInvalidEvent = errors.New("invalid event")

// Event is one entity change published by the domain services.
//
// For index events Data holds one entity object or an array of them. For
// delete events IDs name the entities (page URLs for web); with no IDs every
// entity of the merchant is removed.
type Event struct {
	Action     string   `json:"action"`
	Entity     string   `json:"entity"`
	MerchantID string   `json:"merchantId"`
	IDs        []string `json:"ids"`
	Data       any      `json:"data"`
}

// Validate checks the envelope, not the entity data.
func (e Event) Validate() error {
	switch e.Action {
	case ActionIndex, ActionDelete:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, e.Action)
	}

	switch e.Entity {
	case EntityProduct, EntityOffer, EntityFAQ, EntityBotFAQ, EntityDocument, EntityWeb:
	default:
		return fmt.Errorf("%w: unknown entity %q", ErrInvalidEvent, e.Entity)
	}

	if e.Action == ActionIndex && e.Data == nil {
		return fmt.Errorf("%w: index event without data", ErrInvalidEvent)
	}
	if e.Action == ActionDelete && len(e.IDs) == 0 &&
		(e.Entity == EntityBotFAQ || strings.TrimSpace(e.MerchantID) == "") {
		return fmt.Errorf("%w: delete event needs ids or a merchant id", ErrInvalidEvent)
	}
	return nil
}
