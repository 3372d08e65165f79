package models

import (
	"strings"
	"time"
)

// APIClient is an authenticated caller. Identity and key issuance are
// managed by the surrounding platform; this service only resolves keys to
// a subject (UserID) and a permission set.
type APIClient struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	APIKey     string     `json:"-"` // never serialized
	UserID     string     `json:"user_id"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	// Permissions are "resource:action" strings; "resource:*" and "*"
	// wildcards are honored.
	Permissions []string `json:"permissions"`
}

// HasPermission checks the client's permission set against a required
// "resource:action" string.
func (c *APIClient) HasPermission(required string) bool {
	if c == nil || !c.IsActive {
		return false
	}
	for _, perm := range c.Permissions {
		if perm == required || perm == "*" {
			return true
		}
		if strings.HasSuffix(perm, ":*") && strings.HasPrefix(required, strings.TrimSuffix(perm, "*")) {
			return true
		}
	}
	return false
}

// MaskedAPIKey returns a loggable prefix of the key.
func (c *APIClient) MaskedAPIKey() string {
	if len(c.APIKey) < 8 {
		return "***"
	}
	return c.APIKey[:8] + "..."
}
