// Package revision coordinates the progress engine with persistence,
// authorization and the statistics cache. It owns the domain error
// taxonomy exposed to the API layer.
package revision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stackcards/revision-engine/internal/models"
	"github.com/stackcards/revision-engine/internal/progress"
	"github.com/stackcards/revision-engine/internal/statscache"
	"github.com/stackcards/revision-engine/internal/storage"
)

// Common errors
var (
	ErrDeckNotFound       = errors.New("deck not found")
	ErrCardNotFound       = errors.New("card not found")
	ErrDeckArchived       = errors.New("deck is archived")
	ErrUnknownPreset      = errors.New("unknown preset")
	ErrInvalidPolicyValue = errors.New("invalid policy value")
	ErrForbidden          = errors.New("forbidden")
)

// DeckPolicy is the getDeckPolicy response: the deck's policy together with
// its current statistics and the preset catalogue.
type DeckPolicy struct {
	DeckID     uuid.UUID             `json:"deck_id"`
	Policy     progress.Policy       `json:"policy"`
	IsArchived bool                  `json:"is_archived"`
	Statistics progress.Statistics   `json:"statistics"`
	Presets    []progress.PresetInfo `json:"presets"`
}

// PolicyUpdate is returned by updateDeckPolicy and applyPreset.
type PolicyUpdate struct {
	DeckID            uuid.UUID       `json:"deck_id"`
	Policy            progress.Policy `json:"policy"`
	CardsRecalculated int             `json:"cards_recalculated"`
	CardsChanged      int             `json:"cards_changed"`
}

// Service is the learning-progress engine's operation surface.
type Service interface {
	GetDeckPolicy(ctx context.Context, actor *models.APIClient, deckID uuid.UUID) (*DeckPolicy, error)
	UpdateDeckPolicy(ctx context.Context, actor *models.APIClient, deckID uuid.UUID, patch progress.PolicyPatch) (*PolicyUpdate, error)
	ApplyPreset(ctx context.Context, actor *models.APIClient, deckID uuid.UUID, presetName string) (*PolicyUpdate, error)
	SubmitReview(ctx context.Context, actor *models.APIClient, cardID uuid.UUID, isCorrect bool) (*models.CardProgress, error)
	SetLearned(ctx context.Context, actor *models.APIClient, cardID uuid.UUID, learned bool) (*models.CardProgress, error)
	GetStatistics(ctx context.Context, actor *models.APIClient, deckID uuid.UUID) (*progress.Statistics, error)
	Ping(ctx context.Context) error
}

type service struct {
	repo  storage.Repository
	cache *statscache.Cache // nil when Redis is not configured
}

// NewService creates the progress service. cache may be nil; statistics are
// then always aggregated directly.
func NewService(repo storage.Repository, cache *statscache.Cache) Service {
	return &service{repo: repo, cache: cache}
}

// canAct resolves the authorization question for a deck: the owner may act,
// as may clients holding the decks:admin permission.
func canAct(actor *models.APIClient, deck *models.Deck) bool {
	if actor == nil {
		return false
	}
	return deck.OwnedBy(actor.UserID) || actor.HasPermission("decks:admin")
}

func (s *service) GetDeckPolicy(ctx context.Context, actor *models.APIClient, deckID uuid.UUID) (*DeckPolicy, error) {
	deck, err := s.repo.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, ErrDeckNotFound
	}
	if !canAct(actor, deck) {
		return nil, ErrForbidden
	}

	stats, err := s.statistics(ctx, deck)
	if err != nil {
		return nil, err
	}

	return &DeckPolicy{
		DeckID:     deck.ID,
		Policy:     deck.Policy,
		IsArchived: deck.IsArchived,
		Statistics: stats,
		Presets:    progress.ListPresets(),
	}, nil
}

func (s *service) UpdateDeckPolicy(ctx context.Context, actor *models.APIClient, deckID uuid.UUID, patch progress.PolicyPatch) (*PolicyUpdate, error) {
	return s.updatePolicy(ctx, actor, deckID, func(current progress.Policy) (progress.Policy, error) {
		updated, err := patch.Apply(current)
		if err != nil {
			return progress.Policy{}, fmt.Errorf("%w: %s", ErrInvalidPolicyValue, err)
		}
		return updated, nil
	})
}

func (s *service) ApplyPreset(ctx context.Context, actor *models.APIClient, deckID uuid.UUID, presetName string) (*PolicyUpdate, error) {
	preset, ok := progress.PresetByName(presetName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, presetName)
	}
	return s.updatePolicy(ctx, actor, deckID, func(progress.Policy) (progress.Policy, error) {
		return preset.Policy(), nil
	})
}

// updatePolicy writes a new policy and recalculates every card of the deck
// in one transaction. No review can be judged against a half-applied
// policy: the deck row stays exclusively locked until the recalculation
// commits.
func (s *service) updatePolicy(ctx context.Context, actor *models.APIClient, deckID uuid.UUID, change func(progress.Policy) (progress.Policy, error)) (*PolicyUpdate, error) {
	var result PolicyUpdate

	deck, err := s.repo.MutateDeck(ctx, deckID, func(deck *models.Deck, cards []*models.Card) error {
		if !canAct(actor, deck) {
			return ErrForbidden
		}

		updated, err := change(deck.Policy)
		if err != nil {
			return err
		}
		deck.Policy = updated

		for _, card := range cards {
			state := card.State()
			recalculated := progress.Recalculate(updated, state)
			if recalculated != state {
				card.ApplyState(recalculated)
				result.CardsChanged++
			}
		}
		result.CardsRecalculated = len(cards)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, ErrDeckNotFound
	}

	slog.Info("deck policy updated",
		"deck_id", deck.ID,
		"required_reviews_to_learn", deck.Policy.RequiredReviewsToLearn,
		"auto_mark_learned", deck.Policy.AutoMarkLearned,
		"reset_on_wrong_answer", deck.Policy.ResetOnWrongAnswer,
		"cards_recalculated", result.CardsRecalculated,
		"cards_changed", result.CardsChanged,
	)

	s.invalidateStats(ctx, deck)

	result.DeckID = deck.ID
	result.Policy = deck.Policy
	return &result, nil
}

func (s *service) SubmitReview(ctx context.Context, actor *models.APIClient, cardID uuid.UUID, isCorrect bool) (*models.CardProgress, error) {
	return s.mutateCard(ctx, actor, cardID, func(deck *models.Deck, card *models.Card) error {
		if deck.IsArchived {
			return ErrDeckArchived
		}
		card.ApplyState(progress.RecordReview(deck.Policy, card.State(), isCorrect))
		return nil
	})
}

func (s *service) SetLearned(ctx context.Context, actor *models.APIClient, cardID uuid.UUID, learned bool) (*models.CardProgress, error) {
	return s.mutateCard(ctx, actor, cardID, func(deck *models.Deck, card *models.Card) error {
		card.ApplyState(progress.SetLearned(card.State(), learned))
		return nil
	})
}

func (s *service) mutateCard(ctx context.Context, actor *models.APIClient, cardID uuid.UUID, fn func(deck *models.Deck, card *models.Card) error) (*models.CardProgress, error) {
	deck, card, err := s.repo.MutateCard(ctx, cardID, func(deck *models.Deck, card *models.Card) error {
		if !canAct(actor, deck) {
			return ErrForbidden
		}
		return fn(deck, card)
	})
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrCardNotFound
	}

	s.invalidateStats(ctx, deck)

	cp := models.NewCardProgress(deck.Policy, card)
	return &cp, nil
}

func (s *service) GetStatistics(ctx context.Context, actor *models.APIClient, deckID uuid.UUID) (*progress.Statistics, error) {
	deck, err := s.repo.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, ErrDeckNotFound
	}
	if !canAct(actor, deck) {
		return nil, ErrForbidden
	}

	stats, err := s.statistics(ctx, deck)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// statistics aggregates fresh or serves from the cache. The cache is
// best-effort: any cache failure falls back to direct aggregation.
func (s *service) statistics(ctx context.Context, deck *models.Deck) (progress.Statistics, error) {
	if s.cache != nil {
		if stats, ok := s.cache.Get(ctx, deck.ID, deck.UpdatedAt); ok {
			return stats, nil
		}
	}

	cards, err := s.repo.ListCards(ctx, deck.ID)
	if err != nil {
		return progress.Statistics{}, err
	}

	states := make([]progress.State, len(cards))
	for i, card := range cards {
		states[i] = card.State()
	}
	stats := progress.Aggregate(deck.Policy, states)

	if s.cache != nil {
		s.cache.Set(ctx, deck.ID, deck.UpdatedAt, stats)
	}
	return stats, nil
}

// invalidateStats drops superseded cache entries after a mutation.
func (s *service) invalidateStats(ctx context.Context, deck *models.Deck) {
	if s.cache == nil || deck == nil {
		return
	}
	if err := s.cache.DropStale(ctx, deck.ID, deck.UpdatedAt); err != nil {
		slog.Warn("failed to drop stale statistics cache", "deck_id", deck.ID, "error", err)
	}
}

func (s *service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
