package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stackcards/revision-engine/internal/progress"
)

// Card is a single learning item with its own progress counters. Cards are
// mutated only through the progress engine, the manual learned toggle, or a
// recalculation pass.
type Card struct {
	ID             uuid.UUID `json:"id"`
	DeckID         uuid.UUID `json:"deck_id"`
	CorrectReviews int       `json:"correct_reviews_count"`
	TotalReviews   int       `json:"total_reviews_count"`
	Learned        bool      `json:"learned"`

	// Version is bumped on every engine write so external writers can do
	// optimistic concurrency; the engine itself relies on row locks.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State extracts the card's progress state for the engine.
func (c *Card) State() progress.State {
	return progress.State{
		CorrectReviews: c.CorrectReviews,
		TotalReviews:   c.TotalReviews,
		Learned:        c.Learned,
	}
}

// ApplyState writes an engine-produced state back onto the card and bumps
// the version.
func (c *Card) ApplyState(s progress.State) {
	c.CorrectReviews = s.CorrectReviews
	c.TotalReviews = s.TotalReviews
	c.Learned = s.Learned
	c.Version++
}

// CardProgress is the review/read response shape: the card plus its derived
// quantities under the owning deck's policy.
type CardProgress struct {
	Card             *Card `json:"card"`
	ProgressPercent  int   `json:"progress_percent"`
	ReviewsRemaining int   `json:"reviews_remaining"`
}

// NewCardProgress derives the read-only quantities for a card under a policy.
func NewCardProgress(p progress.Policy, c *Card) CardProgress {
	s := c.State()
	return CardProgress{
		Card:             c,
		ProgressPercent:  s.Percent(p),
		ReviewsRemaining: s.Remaining(p),
	}
}
