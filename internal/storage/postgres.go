package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackcards/revision-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL via pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds connection pool configuration.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration

	// MigrationsDir, when set, is applied before the repository is returned.
	MigrationsDir string
}

// NewPostgresRepository creates a PostgreSQL repository, verifies
// connectivity, and applies pending schema migrations.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	poolConfig.MaxConns = 25
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	poolConfig.MinConns = 5
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &PostgresRepository{pool: pool}
	if cfg.MigrationsDir != "" {
		if err := repo.Migrate(ctx, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return repo, nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const deckColumns = `id, owner_id, name, required_reviews_to_learn, auto_mark_learned, reset_on_wrong_answer, is_archived, created_at, updated_at`

func scanDeck(row pgx.Row) (*models.Deck, error) {
	var d models.Deck
	err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Name,
		&d.Policy.RequiredReviewsToLearn,
		&d.Policy.AutoMarkLearned,
		&d.Policy.ResetOnWrongAnswer,
		&d.IsArchived,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDeck inserts a deck row.
func (r *PostgresRepository) CreateDeck(ctx context.Context, deck *models.Deck) error {
	if deck.ID == uuid.Nil {
		deck.ID = uuid.New()
	}
	now := time.Now().UTC()
	if deck.CreatedAt.IsZero() {
		deck.CreatedAt = now
	}
	deck.UpdatedAt = now

	query := `
		INSERT INTO decks (` + deckColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		deck.ID,
		deck.OwnerID,
		deck.Name,
		deck.Policy.RequiredReviewsToLearn,
		deck.Policy.AutoMarkLearned,
		deck.Policy.ResetOnWrongAnswer,
		deck.IsArchived,
		deck.CreatedAt,
		deck.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deck: %w", err)
	}
	return nil
}

// GetDeck retrieves a deck by id; (nil, nil) when it does not exist.
func (r *PostgresRepository) GetDeck(ctx context.Context, id uuid.UUID) (*models.Deck, error) {
	query := `SELECT ` + deckColumns + ` FROM decks WHERE id = $1`
	deck, err := scanDeck(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	return deck, nil
}

const cardColumns = `id, deck_id, correct_reviews_count, total_reviews_count, learned, version, created_at, updated_at`

func scanCard(row pgx.Row) (*models.Card, error) {
	var c models.Card
	err := row.Scan(
		&c.ID,
		&c.DeckID,
		&c.CorrectReviews,
		&c.TotalReviews,
		&c.Learned,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCard inserts a card row.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *models.Card) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now

	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		card.ID,
		card.DeckID,
		card.CorrectReviews,
		card.TotalReviews,
		card.Learned,
		card.Version,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// GetCard retrieves a card by id; (nil, nil) when it does not exist.
func (r *PostgresRepository) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	card, err := scanCard(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// ListCards returns all cards of a deck.
func (r *PostgresRepository) ListCards(ctx context.Context, deckID uuid.UUID) ([]*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE deck_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// MutateCard implements the per-card read-modify-write sequence. The card
// row is locked exclusively; the deck row takes FOR NO KEY UPDATE, which
// excludes MutateDeck's FOR UPDATE so a policy write cannot interleave with
// a review. It must not be weakened to FOR SHARE: the transaction later
// touches the deck row, and upgrading a share lock against a peer review in
// the same deck deadlocks.
func (r *PostgresRepository) MutateCard(ctx context.Context, cardID uuid.UUID, fn func(deck *models.Deck, card *models.Card) error) (*models.Deck, *models.Card, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT c.id, c.deck_id, c.correct_reviews_count, c.total_reviews_count, c.learned, c.version, c.created_at, c.updated_at,
		       d.id, d.owner_id, d.name, d.required_reviews_to_learn, d.auto_mark_learned, d.reset_on_wrong_answer, d.is_archived, d.created_at, d.updated_at
		FROM cards c
		JOIN decks d ON d.id = c.deck_id
		WHERE c.id = $1
		FOR UPDATE OF c
		FOR NO KEY UPDATE OF d
	`

	var card models.Card
	var deck models.Deck
	err = tx.QueryRow(ctx, query, cardID).Scan(
		&card.ID,
		&card.DeckID,
		&card.CorrectReviews,
		&card.TotalReviews,
		&card.Learned,
		&card.Version,
		&card.CreatedAt,
		&card.UpdatedAt,
		&deck.ID,
		&deck.OwnerID,
		&deck.Name,
		&deck.Policy.RequiredReviewsToLearn,
		&deck.Policy.AutoMarkLearned,
		&deck.Policy.ResetOnWrongAnswer,
		&deck.IsArchived,
		&deck.CreatedAt,
		&deck.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to lock card: %w", err)
	}

	if err := fn(&deck, &card); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	card.UpdatedAt = now

	update := `
		UPDATE cards
		SET correct_reviews_count = $2, total_reviews_count = $3, learned = $4, version = $5, updated_at = $6
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update,
		card.ID, card.CorrectReviews, card.TotalReviews, card.Learned, card.Version, card.UpdatedAt,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to update card: %w", err)
	}

	// The deck's updated_at doubles as the statistics cache version, so any
	// card change must advance it.
	deck.UpdatedAt = now
	if _, err := tx.Exec(ctx, `UPDATE decks SET updated_at = $2 WHERE id = $1`, deck.ID, deck.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("failed to touch deck: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit review: %w", err)
	}
	return &deck, &card, nil
}

// MutateDeck implements the deck-scoped policy write plus recalculation.
// The deck row is locked exclusively for the whole transaction; the policy
// update and every recalculated card commit as one unit.
func (r *PostgresRepository) MutateDeck(ctx context.Context, deckID uuid.UUID, fn func(deck *models.Deck, cards []*models.Card) error) (*models.Deck, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + deckColumns + ` FROM decks WHERE id = $1 FOR UPDATE`
	deck, err := scanDeck(tx.QueryRow(ctx, query, deckID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock deck: %w", err)
	}

	listQuery := `SELECT ` + cardColumns + ` FROM cards WHERE deck_id = $1 ORDER BY created_at, id FOR UPDATE`
	rows, err := tx.Query(ctx, listQuery, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cards: %w", err)
	}

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}

	before := make([]models.Card, len(cards))
	for i, c := range cards {
		before[i] = *c
	}

	if err := fn(deck, cards); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	deck.UpdatedAt = now

	updateDeck := `
		UPDATE decks
		SET name = $2, required_reviews_to_learn = $3, auto_mark_learned = $4, reset_on_wrong_answer = $5, is_archived = $6, updated_at = $7
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateDeck,
		deck.ID,
		deck.Name,
		deck.Policy.RequiredReviewsToLearn,
		deck.Policy.AutoMarkLearned,
		deck.Policy.ResetOnWrongAnswer,
		deck.IsArchived,
		deck.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to update deck: %w", err)
	}

	// Only rewrite the rows fn actually changed.
	batch := &pgx.Batch{}
	updateCard := `
		UPDATE cards
		SET correct_reviews_count = $2, total_reviews_count = $3, learned = $4, version = $5, updated_at = $6
		WHERE id = $1
	`
	for i, card := range cards {
		if *card == before[i] {
			continue
		}
		card.UpdatedAt = now
		batch.Queue(updateCard, card.ID, card.CorrectReviews, card.TotalReviews, card.Learned, card.Version, card.UpdatedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to update cards: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit deck update: %w", err)
	}
	return deck, nil
}

// ListRecentlyModifiedDecks returns decks touched since the given time,
// newest first.
func (r *PostgresRepository) ListRecentlyModifiedDecks(ctx context.Context, since time.Time, limit int) ([]*models.Deck, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + deckColumns + ` FROM decks WHERE updated_at > $1 ORDER BY updated_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recently modified decks: %w", err)
	}
	defer rows.Close()

	var decks []*models.Deck
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		decks = append(decks, deck)
	}
	return decks, rows.Err()
}

// GetClientByAPIKey resolves an API key; (nil, nil) for unknown keys.
func (r *PostgresRepository) GetClientByAPIKey(ctx context.Context, apiKey string) (*models.APIClient, error) {
	query := `
		SELECT id, name, api_key, user_id, is_active, created_at, last_used_at, permissions
		FROM api_clients
		WHERE api_key = $1
	`
	var c models.APIClient
	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&c.ID,
		&c.Name,
		&c.APIKey,
		&c.UserID,
		&c.IsActive,
		&c.CreatedAt,
		&c.LastUsedAt,
		&c.Permissions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}
	return &c, nil
}

// UpdateClientLastUsed records key usage.
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}
	return nil
}
