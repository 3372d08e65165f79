package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackcards/revision-engine/internal/models"
)

// MemoryRepository is an in-memory Repository for tests and local
// development. The single mutex gives it the same serialization guarantees
// the postgres implementation gets from row locks.
type MemoryRepository struct {
	mu      sync.Mutex
	decks   map[uuid.UUID]*models.Deck
	cards   map[uuid.UUID]*models.Card
	clients map[string]*models.APIClient
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		decks:   make(map[uuid.UUID]*models.Deck),
		cards:   make(map[uuid.UUID]*models.Card),
		clients: make(map[string]*models.APIClient),
	}
}

func copyDeck(d *models.Deck) *models.Deck {
	cp := *d
	return &cp
}

func copyCard(c *models.Card) *models.Card {
	cp := *c
	return &cp
}

// CreateDeck inserts a deck.
func (r *MemoryRepository) CreateDeck(ctx context.Context, deck *models.Deck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if deck.ID == uuid.Nil {
		deck.ID = uuid.New()
	}
	now := time.Now().UTC()
	if deck.CreatedAt.IsZero() {
		deck.CreatedAt = now
	}
	deck.UpdatedAt = now
	r.decks[deck.ID] = copyDeck(deck)
	return nil
}

// GetDeck retrieves a deck; (nil, nil) when absent.
func (r *MemoryRepository) GetDeck(ctx context.Context, id uuid.UUID) (*models.Deck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deck, ok := r.decks[id]
	if !ok {
		return nil, nil
	}
	return copyDeck(deck), nil
}

// CreateCard inserts a card.
func (r *MemoryRepository) CreateCard(ctx context.Context, card *models.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now
	r.cards[card.ID] = copyCard(card)
	return nil
}

// GetCard retrieves a card; (nil, nil) when absent.
func (r *MemoryRepository) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	card, ok := r.cards[id]
	if !ok {
		return nil, nil
	}
	return copyCard(card), nil
}

// ListCards returns all cards of a deck in creation order.
func (r *MemoryRepository) ListCards(ctx context.Context, deckID uuid.UUID) ([]*models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cardsOfLocked(deckID), nil
}

func (r *MemoryRepository) cardsOfLocked(deckID uuid.UUID) []*models.Card {
	var cards []*models.Card
	for _, card := range r.cards {
		if card.DeckID == deckID {
			cards = append(cards, copyCard(card))
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].ID.String() < cards[j].ID.String()
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
	return cards
}

// MutateCard applies fn to copies and persists them only on success.
func (r *MemoryRepository) MutateCard(ctx context.Context, cardID uuid.UUID, fn func(deck *models.Deck, card *models.Card) error) (*models.Deck, *models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.cards[cardID]
	if !ok {
		return nil, nil, nil
	}
	deckStored, ok := r.decks[stored.DeckID]
	if !ok {
		return nil, nil, nil
	}

	card := copyCard(stored)
	deck := copyDeck(deckStored)
	if err := fn(deck, card); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	card.UpdatedAt = now
	deck.UpdatedAt = now
	r.cards[card.ID] = copyCard(card)
	r.decks[deck.ID] = copyDeck(deck)
	return deck, card, nil
}

// MutateDeck applies fn to copies of the deck and its cards and persists
// them only on success.
func (r *MemoryRepository) MutateDeck(ctx context.Context, deckID uuid.UUID, fn func(deck *models.Deck, cards []*models.Card) error) (*models.Deck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.decks[deckID]
	if !ok {
		return nil, nil
	}

	deck := copyDeck(stored)
	cards := r.cardsOfLocked(deckID)
	before := make([]models.Card, len(cards))
	for i, c := range cards {
		before[i] = *c
	}

	if err := fn(deck, cards); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	deck.UpdatedAt = now
	r.decks[deck.ID] = copyDeck(deck)
	for i, card := range cards {
		if *card == before[i] {
			continue
		}
		card.UpdatedAt = now
		r.cards[card.ID] = copyCard(card)
	}
	return deck, nil
}

// ListRecentlyModifiedDecks returns decks touched since the given time.
func (r *MemoryRepository) ListRecentlyModifiedDecks(ctx context.Context, since time.Time, limit int) ([]*models.Deck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	var decks []*models.Deck
	for _, deck := range r.decks {
		if deck.UpdatedAt.After(since) {
			decks = append(decks, copyDeck(deck))
		}
	}
	sort.Slice(decks, func(i, j int) bool {
		return decks[i].UpdatedAt.After(decks[j].UpdatedAt)
	})
	if len(decks) > limit {
		decks = decks[:limit]
	}
	return decks, nil
}

// AddClient registers an API client.
func (r *MemoryRepository) AddClient(client *models.APIClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.APIKey] = client
}

// GetClientByAPIKey resolves an API key; (nil, nil) for unknown keys.
func (r *MemoryRepository) GetClientByAPIKey(ctx context.Context, apiKey string) (*models.APIClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[apiKey]
	if !ok {
		return nil, nil
	}
	return client, nil
}

// UpdateClientLastUsed records key usage.
func (r *MemoryRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[apiKey]; ok {
		now := time.Now().UTC()
		client.LastUsedAt = &now
	}
	return nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (r *MemoryRepository) Close() error {
	return nil
}
