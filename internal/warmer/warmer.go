// Package warmer keeps the statistics cache hot for decks under active
// review, so dashboard reads rarely pay the aggregation query.
package warmer

import (
	"context"
	"log/slog"
	"time"

	"github.com/stackcards/revision-engine/internal/models"
	"github.com/stackcards/revision-engine/internal/progress"
	"github.com/stackcards/revision-engine/internal/statscache"
	"github.com/stackcards/revision-engine/internal/storage"
)

// Warmer periodically recomputes and caches statistics for recently
// modified decks and sweeps their superseded cache entries.
type Warmer struct {
	repo     storage.Repository
	cache    *statscache.Cache
	interval time.Duration
	batch    int
}

// New creates a cache warmer.
func New(repo storage.Repository, cache *statscache.Cache, interval time.Duration, batch int) *Warmer {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &Warmer{repo: repo, cache: cache, interval: interval, batch: batch}
}

// Start begins the warmer loop in a goroutine.
func (w *Warmer) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Warmer) run(ctx context.Context) {
	slog.Info("statistics warmer started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("statistics warmer stopped")
			return
		case <-ticker.C:
			w.warm(ctx)
		}
	}
}

// warm runs one cycle over decks modified during the last two intervals.
func (w *Warmer) warm(ctx context.Context) {
	since := time.Now().Add(-2 * w.interval)

	decks, err := w.repo.ListRecentlyModifiedDecks(ctx, since, w.batch)
	if err != nil {
		slog.Error("failed to list recently modified decks", "error", err)
		return
	}
	if len(decks) == 0 {
		slog.Debug("no recently modified decks")
		return
	}

	warmed := 0
	for _, deck := range decks {
		if err := w.warmDeck(ctx, deck); err != nil {
			slog.Warn("failed to warm deck statistics", "deck_id", deck.ID, "error", err)
			continue
		}
		warmed++
	}
	slog.Debug("statistics warm cycle complete", "decks", len(decks), "warmed", warmed)
}

func (w *Warmer) warmDeck(ctx context.Context, deck *models.Deck) error {
	cards, err := w.repo.ListCards(ctx, deck.ID)
	if err != nil {
		return err
	}

	states := make([]progress.State, len(cards))
	for i, card := range cards {
		states[i] = card.State()
	}

	w.cache.Set(ctx, deck.ID, deck.UpdatedAt, progress.Aggregate(deck.Policy, states))
	return w.cache.DropStale(ctx, deck.ID, deck.UpdatedAt)
}
