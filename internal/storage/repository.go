package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stackcards/revision-engine/internal/models"
)

// Repository defines the persistence boundary for decks, cards and API
// clients. Read methods return (nil, nil) when the row does not exist.
type Repository interface {
	// Decks. Deck CRUD is owned by the surrounding platform; CreateDeck is
	// the seeding/write path for deployments and tests.
	CreateDeck(ctx context.Context, deck *models.Deck) error
	GetDeck(ctx context.Context, id uuid.UUID) (*models.Deck, error)

	// Cards
	CreateCard(ctx context.Context, card *models.Card) error
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	ListCards(ctx context.Context, deckID uuid.UUID) ([]*models.Card, error)

	// MutateCard runs fn against the card and its owning deck inside one
	// transaction, holding an exclusive lock on the card row and a share
	// lock on the deck row, then persists the card and bumps the deck's
	// modification timestamp. Concurrent reviews of the same card are
	// strictly serialized; reviews of different cards proceed in parallel.
	MutateCard(ctx context.Context, cardID uuid.UUID, fn func(deck *models.Deck, card *models.Card) error) (*models.Deck, *models.Card, error)

	// MutateDeck runs fn against the deck and all of its cards inside one
	// transaction, holding an exclusive lock on the deck row. The deck's
	// policy write and every card recalculated by fn commit atomically or
	// not at all.
	MutateDeck(ctx context.Context, deckID uuid.UUID, fn func(deck *models.Deck, cards []*models.Card) error) (*models.Deck, error)

	// ListRecentlyModifiedDecks returns decks whose cards or policy changed
	// since the given time. Used by the statistics cache warmer.
	ListRecentlyModifiedDecks(ctx context.Context, since time.Time, limit int) ([]*models.Deck, error)

	// API clients
	GetClientByAPIKey(ctx context.Context, apiKey string) (*models.APIClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
