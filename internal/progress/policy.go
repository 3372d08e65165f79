package progress

import "fmt"

// Policy bounds for RequiredReviewsToLearn
const (
	MinRequiredReviews = 1
	MaxRequiredReviews = 20
)

// Policy holds the per-deck learning knobs that drive the progress engine.
type Policy struct {
	RequiredReviewsToLearn int  `json:"required_reviews_to_learn" yaml:"required_reviews_to_learn"`
	AutoMarkLearned        bool `json:"auto_mark_learned" yaml:"auto_mark_learned"`
	ResetOnWrongAnswer     bool `json:"reset_on_wrong_answer" yaml:"reset_on_wrong_answer"`
}

// DefaultPolicy is applied to decks created without an explicit policy.
func DefaultPolicy() Policy {
	return Policy{
		RequiredReviewsToLearn: 3,
		AutoMarkLearned:        true,
		ResetOnWrongAnswer:     false,
	}
}

// Validate checks the policy against its allowed domain.
func (p Policy) Validate() error {
	if p.RequiredReviewsToLearn < MinRequiredReviews || p.RequiredReviewsToLearn > MaxRequiredReviews {
		return fmt.Errorf("required_reviews_to_learn must be in [%d, %d], got %d",
			MinRequiredReviews, MaxRequiredReviews, p.RequiredReviewsToLearn)
	}
	return nil
}

// PolicyPatch is a partial policy update; nil fields are left unchanged.
type PolicyPatch struct {
	RequiredReviewsToLearn *int  `json:"required_reviews_to_learn,omitempty"`
	AutoMarkLearned        *bool `json:"auto_mark_learned,omitempty"`
	ResetOnWrongAnswer     *bool `json:"reset_on_wrong_answer,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (pp PolicyPatch) IsEmpty() bool {
	return pp.RequiredReviewsToLearn == nil && pp.AutoMarkLearned == nil && pp.ResetOnWrongAnswer == nil
}

// Apply returns a copy of p with the patch's set fields overwritten.
// The result is validated; an out-of-range threshold is rejected before
// anything is persisted.
func (pp PolicyPatch) Apply(p Policy) (Policy, error) {
	if pp.RequiredReviewsToLearn != nil {
		p.RequiredReviewsToLearn = *pp.RequiredReviewsToLearn
	}
	if pp.AutoMarkLearned != nil {
		p.AutoMarkLearned = *pp.AutoMarkLearned
	}
	if pp.ResetOnWrongAnswer != nil {
		p.ResetOnWrongAnswer = *pp.ResetOnWrongAnswer
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
