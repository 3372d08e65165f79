package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stackcards/revision-engine/internal/progress"
)

// Deck is a named collection of cards sharing one learning policy. Deck
// CRUD and visibility live outside this service; here a deck is the policy
// owner and the transaction scope for recalculation.
type Deck struct {
	ID         uuid.UUID       `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Name       string          `json:"name"`
	Policy     progress.Policy `json:"policy"`
	IsArchived bool            `json:"is_archived"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// OwnedBy reports whether the given subject owns the deck.
func (d *Deck) OwnedBy(userID string) bool {
	return d != nil && userID != "" && d.OwnerID == userID
}
