// Package client is a Go SDK for the revision-engine API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a revision-engine instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new revision-engine client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a failed response from the server.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Code, e.Message)
}

// Policy mirrors the server's deck policy.
type Policy struct {
	RequiredReviewsToLearn int  `json:"required_reviews_to_learn"`
	AutoMarkLearned        bool `json:"auto_mark_learned"`
	ResetOnWrongAnswer     bool `json:"reset_on_wrong_answer"`
}

// PolicyPatch is a partial policy update; nil fields are left unchanged.
type PolicyPatch struct {
	RequiredReviewsToLearn *int  `json:"required_reviews_to_learn,omitempty"`
	AutoMarkLearned        *bool `json:"auto_mark_learned,omitempty"`
	ResetOnWrongAnswer     *bool `json:"reset_on_wrong_answer,omitempty"`
}

// Statistics mirrors the server's deck statistics.
type Statistics struct {
	TotalCards         int `json:"total_cards"`
	LearnedCards       int `json:"learned_cards"`
	CardsNeedingReview int `json:"cards_needing_review"`
	AverageProgress    int `json:"average_progress"`
}

// PresetInfo is one catalogue entry.
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Policy      Policy `json:"policy"`
}

// DeckPolicy is the getDeckPolicy response.
type DeckPolicy struct {
	DeckID     string       `json:"deck_id"`
	Policy     Policy       `json:"policy"`
	IsArchived bool         `json:"is_archived"`
	Statistics Statistics   `json:"statistics"`
	Presets    []PresetInfo `json:"presets"`
}

// PolicyUpdate is returned by policy edits and preset application.
type PolicyUpdate struct {
	DeckID            string `json:"deck_id"`
	Policy            Policy `json:"policy"`
	CardsRecalculated int    `json:"cards_recalculated"`
	CardsChanged      int    `json:"cards_changed"`
}

// Card mirrors the server's card.
type Card struct {
	ID             string    `json:"id"`
	DeckID         string    `json:"deck_id"`
	CorrectReviews int       `json:"correct_reviews_count"`
	TotalReviews   int       `json:"total_reviews_count"`
	Learned        bool      `json:"learned"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CardProgress is a card with its derived quantities.
type CardProgress struct {
	Card             *Card `json:"card"`
	ProgressPercent  int   `json:"progress_percent"`
	ReviewsRemaining int   `json:"reviews_remaining"`
}

// GetDeckPolicy retrieves a deck's policy, statistics and the preset
// catalogue.
func (c *Client) GetDeckPolicy(ctx context.Context, deckID string) (*DeckPolicy, error) {
	var out DeckPolicy
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/decks/%s/policy", deckID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDeckPolicy partially updates a deck's policy and triggers
// recalculation.
func (c *Client) UpdateDeckPolicy(ctx context.Context, deckID string, patch PolicyPatch) (*PolicyUpdate, error) {
	var out PolicyUpdate
	if err := c.call(ctx, "PATCH", fmt.Sprintf("/api/v1/decks/%s/policy", deckID), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyPreset overwrites a deck's policy with a catalogue preset and
// triggers recalculation.
func (c *Client) ApplyPreset(ctx context.Context, deckID, preset string) (*PolicyUpdate, error) {
	body := struct {
		Preset string `json:"preset"`
	}{Preset: preset}

	var out PolicyUpdate
	if err := c.call(ctx, "POST", fmt.Sprintf("/api/v1/decks/%s/policy/preset", deckID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatistics retrieves a deck's aggregate statistics.
func (c *Client) GetStatistics(ctx context.Context, deckID string) (*Statistics, error) {
	var out Statistics
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/decks/%s/statistics", deckID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPresets retrieves the preset catalogue.
func (c *Client) ListPresets(ctx context.Context) ([]PresetInfo, error) {
	var out struct {
		Presets []PresetInfo `json:"presets"`
		Total   int          `json:"total"`
	}
	if err := c.call(ctx, "GET", "/api/v1/presets", nil, &out); err != nil {
		return nil, err
	}
	return out.Presets, nil
}

// SubmitReview records one review outcome for a card.
func (c *Client) SubmitReview(ctx context.Context, cardID string, isCorrect bool) (*CardProgress, error) {
	body := struct {
		IsCorrect bool `json:"is_correct"`
	}{IsCorrect: isCorrect}

	var out CardProgress
	if err := c.call(ctx, "POST", fmt.Sprintf("/api/v1/cards/%s/review", cardID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetLearned manually overwrites a card's learned flag.
func (c *Client) SetLearned(ctx context.Context, cardID string, learned bool) (*CardProgress, error) {
	body := struct {
		Learned bool `json:"learned"`
	}{Learned: learned}

	var out CardProgress
	if err := c.call(ctx, "PUT", fmt.Sprintf("/api/v1/cards/%s/learned", cardID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call performs one request and decodes the server's response envelope
// into out.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *APIError       `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !envelope.Success {
		if envelope.Error != nil {
			return envelope.Error
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}
	return nil
}
