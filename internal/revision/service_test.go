package revision_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackcards/revision-engine/internal/models"
	"github.com/stackcards/revision-engine/internal/progress"
	"github.com/stackcards/revision-engine/internal/revision"
	"github.com/stackcards/revision-engine/internal/storage"
)

func owner() *models.APIClient {
	return &models.APIClient{
		ID:          1,
		Name:        "app-backend",
		UserID:      "user-1",
		IsActive:    true,
		Permissions: []string{"decks:*", "cards:*"},
	}
}

func seedDeck(t *testing.T, repo *storage.MemoryRepository, policy progress.Policy, archived bool) *models.Deck {
	t.Helper()
	deck := &models.Deck{
		OwnerID:    "user-1",
		Name:       "spanish a1",
		Policy:     policy,
		IsArchived: archived,
	}
	require.NoError(t, repo.CreateDeck(context.Background(), deck))
	return deck
}

func seedCard(t *testing.T, repo *storage.MemoryRepository, deckID uuid.UUID, state progress.State) *models.Card {
	t.Helper()
	card := &models.Card{DeckID: deckID}
	card.ApplyState(state)
	card.Version = 0
	require.NoError(t, repo.CreateCard(context.Background(), card))
	return card
}

func TestSubmitReview_ThresholdThroughService(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.Policy{RequiredReviewsToLearn: 3, AutoMarkLearned: true}, false)
	card := seedCard(t, repo, deck.ID, progress.State{})

	for i := 1; i <= 2; i++ {
		cp, err := svc.SubmitReview(ctx, owner(), card.ID, true)
		require.NoError(t, err)
		assert.False(t, cp.Card.Learned, "after %d reviews", i)
	}

	cp, err := svc.SubmitReview(ctx, owner(), card.ID, true)
	require.NoError(t, err)
	assert.True(t, cp.Card.Learned)
	assert.Equal(t, 3, cp.Card.CorrectReviews)
	assert.Equal(t, 3, cp.Card.TotalReviews)
	assert.Equal(t, 100, cp.ProgressPercent)
	assert.Equal(t, 0, cp.ReviewsRemaining)
	assert.Equal(t, 3, cp.Card.Version, "every engine write bumps the version")
}

func TestSubmitReview_ArchivedDeck(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.DefaultPolicy(), true)
	card := seedCard(t, repo, deck.ID, progress.State{CorrectReviews: 1, TotalReviews: 2})

	_, err := svc.SubmitReview(ctx, owner(), card.ID, true)
	require.ErrorIs(t, err, revision.ErrDeckArchived)

	// Nothing was mutated.
	stored, err := repo.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CorrectReviews)
	assert.Equal(t, 2, stored.TotalReviews)
	assert.Equal(t, card.Version, stored.Version)
}

func TestSubmitReview_Errors(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.DefaultPolicy(), false)
	card := seedCard(t, repo, deck.ID, progress.State{})

	_, err := svc.SubmitReview(ctx, owner(), uuid.New(), true)
	assert.ErrorIs(t, err, revision.ErrCardNotFound)

	stranger := &models.APIClient{UserID: "user-2", IsActive: true, Permissions: []string{"cards:*"}}
	_, err = svc.SubmitReview(ctx, stranger, card.ID, true)
	assert.ErrorIs(t, err, revision.ErrForbidden)

	admin := &models.APIClient{UserID: "ops", IsActive: true, Permissions: []string{"decks:admin"}}
	_, err = svc.SubmitReview(ctx, admin, card.ID, true)
	assert.NoError(t, err, "decks:admin may act on any deck")
}

func TestSetLearned_ManualMode(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.Policy{RequiredReviewsToLearn: 2, AutoMarkLearned: false}, false)
	card := seedCard(t, repo, deck.ID, progress.State{})

	for i := 0; i < 5; i++ {
		cp, err := svc.SubmitReview(ctx, owner(), card.ID, true)
		require.NoError(t, err)
		assert.False(t, cp.Card.Learned, "manual mode never auto-marks")
	}

	cp, err := svc.SetLearned(ctx, owner(), card.ID, true)
	require.NoError(t, err)
	assert.True(t, cp.Card.Learned)
	assert.Equal(t, 5, cp.Card.CorrectReviews, "manual toggle leaves counters alone")
	assert.Equal(t, 100, cp.ProgressPercent)
}

func TestUpdateDeckPolicy_TriggersRecalculation(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	// Threshold 2, manually marked learned with only 2 correct reviews.
	deck := seedDeck(t, repo, progress.Policy{RequiredReviewsToLearn: 2, AutoMarkLearned: false}, false)
	card := seedCard(t, repo, deck.ID, progress.State{CorrectReviews: 2, TotalReviews: 3, Learned: true})

	// Raising the threshold to 5 retracts the mark regardless of mode.
	newRequired := 5
	update, err := svc.UpdateDeckPolicy(ctx, owner(), deck.ID, progress.PolicyPatch{RequiredReviewsToLearn: &newRequired})
	require.NoError(t, err)
	assert.Equal(t, 5, update.Policy.RequiredReviewsToLearn)
	assert.False(t, update.Policy.AutoMarkLearned, "unset fields unchanged")
	assert.Equal(t, 1, update.CardsRecalculated)
	assert.Equal(t, 1, update.CardsChanged)

	stored, err := repo.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.False(t, stored.Learned)
	assert.Equal(t, 2, stored.CorrectReviews, "recalculation never touches counters")

	// Idempotence: the same policy again changes nothing.
	update, err = svc.UpdateDeckPolicy(ctx, owner(), deck.ID, progress.PolicyPatch{RequiredReviewsToLearn: &newRequired})
	require.NoError(t, err)
	assert.Equal(t, 1, update.CardsRecalculated)
	assert.Equal(t, 0, update.CardsChanged)
}

func TestUpdateDeckPolicy_LoweringThresholdPromotes(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.Policy{RequiredReviewsToLearn: 10, AutoMarkLearned: true}, false)
	card := seedCard(t, repo, deck.ID, progress.State{CorrectReviews: 4, TotalReviews: 4})

	newRequired := 3
	update, err := svc.UpdateDeckPolicy(ctx, owner(), deck.ID, progress.PolicyPatch{RequiredReviewsToLearn: &newRequired})
	require.NoError(t, err)
	assert.Equal(t, 1, update.CardsChanged)

	stored, err := repo.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, stored.Learned, "auto mode promotes newly qualifying cards")
}

func TestUpdateDeckPolicy_InvalidValue(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.DefaultPolicy(), false)
	card := seedCard(t, repo, deck.ID, progress.State{CorrectReviews: 3, TotalReviews: 3, Learned: true})

	bad := 25
	_, err := svc.UpdateDeckPolicy(ctx, owner(), deck.ID, progress.PolicyPatch{RequiredReviewsToLearn: &bad})
	require.ErrorIs(t, err, revision.ErrInvalidPolicyValue)

	// The rejected write applied nothing.
	stored, err := repo.GetDeck(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.DefaultPolicy(), stored.Policy)
	storedCard, err := repo.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, storedCard.Learned)
}

func TestApplyPreset(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.Policy{RequiredReviewsToLearn: 2, AutoMarkLearned: true}, false)
	qualifying := seedCard(t, repo, deck.ID, progress.State{CorrectReviews: 6, TotalReviews: 8, Learned: true})
	pending := seedCard(t, repo, deck.ID, progress.State{CorrectReviews: 3, TotalReviews: 3, Learned: true})

	update, err := svc.ApplyPreset(ctx, owner(), deck.ID, "intensive")
	require.NoError(t, err)
	assert.Equal(t, progress.Policy{RequiredReviewsToLearn: 5, AutoMarkLearned: true, ResetOnWrongAnswer: true}, update.Policy)
	assert.Equal(t, 2, update.CardsRecalculated)
	assert.Equal(t, 1, update.CardsChanged)

	stored, err := repo.GetCard(ctx, qualifying.ID)
	require.NoError(t, err)
	assert.True(t, stored.Learned)
	stored, err = repo.GetCard(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, stored.Learned, "3 < 5 retracts mastery")
}

func TestApplyPreset_Unknown(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.DefaultPolicy(), false)

	_, err := svc.ApplyPreset(ctx, owner(), deck.ID, "hardcore")
	assert.ErrorIs(t, err, revision.ErrUnknownPreset)

	stored, err := repo.GetDeck(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.DefaultPolicy(), stored.Policy, "rejected before any mutation")
}

func TestGetDeckPolicy(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.Policy{RequiredReviewsToLearn: 4, AutoMarkLearned: true}, false)
	seedCard(t, repo, deck.ID, progress.State{Learned: true, CorrectReviews: 4, TotalReviews: 4})
	seedCard(t, repo, deck.ID, progress.State{CorrectReviews: 2, TotalReviews: 2})

	dp, err := svc.GetDeckPolicy(ctx, owner(), deck.ID)
	require.NoError(t, err)
	assert.Equal(t, deck.ID, dp.DeckID)
	assert.Equal(t, 4, dp.Policy.RequiredReviewsToLearn)
	assert.Len(t, dp.Presets, 4)
	assert.Equal(t, 2, dp.Statistics.TotalCards)
	assert.Equal(t, 1, dp.Statistics.LearnedCards)
	assert.Equal(t, 1, dp.Statistics.CardsNeedingReview)
	assert.Equal(t, 75, dp.Statistics.AverageProgress)

	_, err = svc.GetDeckPolicy(ctx, owner(), uuid.New())
	assert.ErrorIs(t, err, revision.ErrDeckNotFound)
}

func TestGetStatistics(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.Policy{RequiredReviewsToLearn: 3, AutoMarkLearned: true}, false)

	stats, err := svc.GetStatistics(ctx, owner(), deck.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.Statistics{}, *stats, "empty deck yields zeroes")

	seedCard(t, repo, deck.ID, progress.State{CorrectReviews: 1, TotalReviews: 1})
	seedCard(t, repo, deck.ID, progress.State{Learned: true})

	stats, err = svc.GetStatistics(ctx, owner(), deck.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalCards, stats.LearnedCards+stats.CardsNeedingReview)
	assert.Equal(t, 66, stats.AverageProgress, "(33 + 100) / 2")
}

func TestResetPropertyThroughService(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.Policy{RequiredReviewsToLearn: 5, AutoMarkLearned: true, ResetOnWrongAnswer: true}, false)
	card := seedCard(t, repo, deck.ID, progress.State{})

	for i := 0; i < 4; i++ {
		_, err := svc.SubmitReview(ctx, owner(), card.ID, true)
		require.NoError(t, err)
	}

	cp, err := svc.SubmitReview(ctx, owner(), card.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, cp.Card.CorrectReviews)
	assert.Equal(t, 5, cp.Card.TotalReviews)
	assert.False(t, cp.Card.Learned)
	assert.Equal(t, 0, cp.ProgressPercent)
	assert.Equal(t, 5, cp.ReviewsRemaining)
}

func TestSubmitReview_ConcurrentSameDeck(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	svc := revision.NewService(repo, nil)

	deck := seedDeck(t, repo, progress.Policy{RequiredReviewsToLearn: 20, AutoMarkLearned: true}, false)

	const cards = 8
	const reviewsPerCard = 10
	ids := make([]uuid.UUID, cards)
	for i := range ids {
		ids[i] = seedCard(t, repo, deck.ID, progress.State{}).ID
	}

	// Reviews of different cards in the same deck run in parallel; every
	// submission must succeed and land exactly once.
	var wg sync.WaitGroup
	errs := make(chan error, cards*reviewsPerCard)
	for _, id := range ids {
		wg.Add(1)
		go func(cardID uuid.UUID) {
			defer wg.Done()
			for i := 0; i < reviewsPerCard; i++ {
				if _, err := svc.SubmitReview(ctx, owner(), cardID, true); err != nil {
					errs <- err
				}
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent review failed: %v", err)
	}

	for _, id := range ids {
		card, err := repo.GetCard(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, card)
		assert.Equal(t, reviewsPerCard, card.TotalReviews)
		assert.Equal(t, reviewsPerCard, card.CorrectReviews)
		assert.Equal(t, reviewsPerCard, card.Version)
	}

	stats, err := svc.GetStatistics(ctx, owner(), deck.ID)
	require.NoError(t, err)
	assert.Equal(t, cards, stats.TotalCards)
	assert.Equal(t, 50, stats.AverageProgress, "10 of 20 on every card")
}
