package progress

// Statistics is a read-only projection over all cards of a deck.
type Statistics struct {
	TotalCards         int `json:"total_cards"`
	LearnedCards       int `json:"learned_cards"`
	CardsNeedingReview int `json:"cards_needing_review"`
	AverageProgress    int `json:"average_progress"`
}

// Aggregate computes deck statistics from card states. An empty deck yields
// all zeroes rather than a division fault.
func Aggregate(p Policy, states []State) Statistics {
	stats := Statistics{TotalCards: len(states)}
	if stats.TotalCards == 0 {
		return stats
	}

	sum := 0
	for _, s := range states {
		if s.Learned {
			stats.LearnedCards++
		}
		sum += s.Percent(p)
	}
	stats.CardsNeedingReview = stats.TotalCards - stats.LearnedCards
	stats.AverageProgress = sum / stats.TotalCards
	return stats
}
