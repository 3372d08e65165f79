// Package progress implements the per-card learning state machine: the
// review transition function, policy presets, mastery recalculation and
// deck-level statistics. Everything here is pure; persistence is the
// caller's concern.
package progress

// State holds one card's progress counters and mastery flag.
type State struct {
	// CorrectReviews counts correct reviews since creation or since the
	// last reset. TotalReviews counts every review ever recorded and is
	// never reset.
	CorrectReviews int  `json:"correct_reviews_count"`
	TotalReviews   int  `json:"total_reviews_count"`
	Learned        bool `json:"learned"`
}

// RecordReview applies one review outcome to a card state under the given
// policy and returns the new state.
//
// The total counter always advances. A correct answer advances the correct
// counter. A wrong answer under reset_on_wrong_answer zeroes the correct
// counter and clears mastery (the counters that justified it no longer
// hold, in auto and manual mode alike). With auto-marking on, mastery turns
// on once the threshold is met; it is never turned off here. With
// auto-marking off, this function never touches the learned flag.
func RecordReview(p Policy, s State, correct bool) State {
	s.TotalReviews++
	if correct {
		s.CorrectReviews++
	} else if p.ResetOnWrongAnswer {
		s.CorrectReviews = 0
		s.Learned = false
	}
	if p.AutoMarkLearned && s.CorrectReviews >= p.RequiredReviewsToLearn {
		s.Learned = true
	}
	return s
}

// Recalculate re-derives the learned flag against the current policy. Used
// in bulk after a policy edit or preset application.
//
// Below the threshold, mastery is retracted unconditionally, manual marks
// included. At or above the threshold, mastery is granted only when
// auto-marking is on; in manual mode reaching the threshold keeps whatever
// mark the owner set. Idempotent.
func Recalculate(p Policy, s State) State {
	if s.CorrectReviews >= p.RequiredReviewsToLearn {
		if p.AutoMarkLearned {
			s.Learned = true
		}
	} else {
		s.Learned = false
	}
	return s
}

// SetLearned overwrites the mastery flag without touching the counters.
func SetLearned(s State, learned bool) State {
	s.Learned = learned
	return s
}

// Percent returns the card's learning progress in whole percent. A learned
// card is always 100. Otherwise the ratio of correct reviews to the
// threshold, floored and clamped to 100. A corrupt threshold below 1 is
// treated as 1 so the computation never divides by zero.
func (s State) Percent(p Policy) int {
	if s.Learned {
		return 100
	}
	required := p.RequiredReviewsToLearn
	if required < 1 {
		required = 1
	}
	pct := s.CorrectReviews * 100 / required
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Remaining returns how many more correct reviews are needed before the
// threshold is met. Zero for learned cards and for counters already past
// the threshold, even on imported data where correct exceeds total.
func (s State) Remaining(p Policy) int {
	if s.Learned {
		return 0
	}
	remaining := p.RequiredReviewsToLearn - s.CorrectReviews
	if remaining < 0 {
		return 0
	}
	return remaining
}
