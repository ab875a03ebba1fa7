// Package auth implements credential lifecycle management for upstream AI
// vendors.
//
// The package defines the token model, the per-vendor authentication
// providers (OpenAI, Gemini, Claude, Qwen, iFlow), the storage contract for
// persisted credentials, and the Manager that ties them together.
//
// # Token Lifecycle
//
// A token moves through the states
//
//	absent -> valid -> expiring-soon -> expired -> refreshed or deleted
//
// with "invalid" as a terminal state reached whenever a live probe rejects
// the credential. Tokens are never mutated in place: refresh produces a new
// TokenData and replaces the stored record.
//
// # Providers
//
// The set of vendors is fixed and known at compile time. Providers are
// registered on a Manager by name and dispatched by case-insensitive lookup;
// there is no open-ended subclassing.
package auth

import (
	"encoding/json"
	"time"
)

// AuthType identifies the credential scheme a provider uses.
type AuthType string

const (
	AuthTypeOAuth  AuthType = "oauth"
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeCookie AuthType = "cookie"
)

// TokenStatus is the result of validating a token.
type TokenStatus string

const (
	StatusValid         TokenStatus = "valid"
	StatusExpired       TokenStatus = "expired"
	StatusInvalid       TokenStatus = "invalid"
	StatusRefreshNeeded TokenStatus = "refresh_needed"
)

// TokenData is one credential instance plus its metadata. Values are treated
// as immutable: refresh and re-authentication build new instances.
//
// AccessToken is never empty for a persisted token. A nil ExpiresAt means
// the token never expires.
type TokenData struct {
	AccessToken    string         `json:"access_token"`
	RefreshToken   string         `json:"refresh_token,omitempty"`
	TokenType      string         `json:"token_type"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	Scope          string         `json:"scope,omitempty"`
	Email          string         `json:"email,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	ExtraData      map[string]any `json:"extra_data,omitempty"`
}

// IsExpired reports whether the token's expiry is at or before now.
// Tokens without an expiry never expire.
func (t *TokenData) IsExpired() bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !time.Now().Before(*t.ExpiresAt)
}

// ExpiresIn returns the seconds until expiry, floored at zero. The second
// return value is false when the token has no expiry.
func (t *TokenData) ExpiresIn() (int64, bool) {
	if t.ExpiresAt == nil {
		return 0, false
	}
	secs := int64(time.Until(*t.ExpiresAt).Seconds())
	if secs < 0 {
		secs = 0
	}
	return secs, true
}

// Serialize encodes the token as JSON. Timestamps round-trip through
// RFC 3339; absent timestamps are omitted rather than written as sentinels.
func (t *TokenData) Serialize() ([]byte, error) {
	return json.Marshal(t)
}

// DeserializeToken decodes a token previously produced by Serialize.
func DeserializeToken(data []byte) (*TokenData, error) {
	var t TokenData
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func now() *time.Time {
	n := time.Now().UTC()
	return &n
}

func expiry(d time.Duration) *time.Time {
	e := time.Now().UTC().Add(d)
	return &e
}
