package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTokenNotFound is returned by store lookups when no token exists for
// the requested provider and key.
var ErrTokenNotFound = errors.New("token not found")

// CorruptError reports a stored token that could not be decoded. Stores
// remove the underlying record before returning it, so a retry observes
// ErrTokenNotFound instead.
type CorruptError struct {
	Provider string
	KeyID    string
	Err      error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt token record %s/%s: %v", e.Provider, e.KeyID, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Entry is one persisted token together with its identity and metadata.
type Entry struct {
	Provider string         `json:"provider"`
	KeyID    string         `json:"key_id"`
	Token    *TokenData     `json:"token"`
	Metadata map[string]any `json:"metadata,omitempty"`
	SavedAt  time.Time      `json:"saved_at"`
}

// TokenStore persists tokens keyed by (provider, keyID). Implementations
// must be safe for concurrent use. Provider names are stored lowercase;
// keyIDs are sanitized by the implementation as its medium requires.
type TokenStore interface {
	// Save writes or replaces the token for (provider, keyID). A nil
	// metadata map leaves any existing metadata untouched.
	Save(ctx context.Context, provider, keyID string, token *TokenData, metadata map[string]any) error

	// Get returns the stored token regardless of its expiry state.
	// Returns ErrTokenNotFound when absent and *CorruptError when the
	// record exists but cannot be decoded.
	Get(ctx context.Context, provider, keyID string) (*TokenData, error)

	// GetValid returns the token only if it will remain valid for at
	// least minTTL. Tokens expiring sooner are reported as absent.
	GetValid(ctx context.Context, provider, keyID string, minTTL time.Duration) (*TokenData, error)

	// Delete removes the token and its metadata. Deleting an absent
	// token is not an error.
	Delete(ctx context.Context, provider, keyID string) error

	// List returns all entries for a provider, or for every provider
	// when provider is empty. Corrupt records are skipped.
	List(ctx context.Context, provider string) ([]*Entry, error)

	// UpdateMetadata merges fields into the metadata for an existing
	// token. Returns ErrTokenNotFound when no token is stored.
	UpdateMetadata(ctx context.Context, provider, keyID string, fields map[string]any) error

	// CleanupExpired deletes every expired token and returns how many
	// were removed.
	CleanupExpired(ctx context.Context) (int, error)
}
