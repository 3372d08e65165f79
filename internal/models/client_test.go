package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	client := &APIClient{
		IsActive:    true,
		Permissions: []string{"decks:read", "cards:*"},
	}

	assert.True(t, client.HasPermission("decks:read"))
	assert.False(t, client.HasPermission("decks:write"))
	assert.True(t, client.HasPermission("cards:review"))
	assert.True(t, client.HasPermission("cards:write"))

	inactive := &APIClient{Permissions: []string{"*"}}
	assert.False(t, inactive.HasPermission("decks:read"), "inactive clients have no permissions")

	super := &APIClient{IsActive: true, Permissions: []string{"*"}}
	assert.True(t, super.HasPermission("decks:admin"))

	var nilClient *APIClient
	assert.False(t, nilClient.HasPermission("decks:read"))
}

func TestMaskedAPIKey(t *testing.T) {
	assert.Equal(t, "sk_12345...", (&APIClient{APIKey: "sk_1234567890"}).MaskedAPIKey())
	assert.Equal(t, "***", (&APIClient{APIKey: "short"}).MaskedAPIKey())
}
