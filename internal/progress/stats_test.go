package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	policy := Policy{RequiredReviewsToLearn: 4, AutoMarkLearned: true}

	cases := []struct {
		name   string
		states []State
		want   Statistics
	}{
		{
			name:   "empty deck",
			states: nil,
			want:   Statistics{},
		},
		{
			name: "mixed deck",
			states: []State{
				{Learned: true},                 // 100
				{CorrectReviews: 2},             // 50
				{CorrectReviews: 1},             // 25
				{},                              // 0
				{CorrectReviews: 4, Learned: true}, // 100
			},
			want: Statistics{
				TotalCards:         5,
				LearnedCards:       2,
				CardsNeedingReview: 3,
				AverageProgress:    55,
			},
		},
		{
			name:   "all learned",
			states: []State{{Learned: true}, {Learned: true}},
			want: Statistics{
				TotalCards:         2,
				LearnedCards:       2,
				CardsNeedingReview: 0,
				AverageProgress:    100,
			},
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(policy, tt.states))
		})
	}
}

func TestAggregate_Consistency(t *testing.T) {
	policy := Policy{RequiredReviewsToLearn: 3, AutoMarkLearned: true}
	states := []State{
		{CorrectReviews: 7, TotalReviews: 3}, // imported data, correct > total
		{CorrectReviews: 1, TotalReviews: 9},
		{Learned: true},
	}

	stats := Aggregate(policy, states)
	assert.Equal(t, stats.TotalCards, stats.LearnedCards+stats.CardsNeedingReview)
	assert.GreaterOrEqual(t, stats.AverageProgress, 0)
	assert.LessOrEqual(t, stats.AverageProgress, 100)
}
