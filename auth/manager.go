package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/modelgate/modelgate/logger"
)

// expiringSoonWindow is how far ahead of expiry a token counts as
// expiring-soon in statistics.
const expiringSoonWindow = 5 * time.Minute

// Manager dispatches auth operations to registered providers and keeps the
// store in sync with their outcomes.
//
// GetToken is fail-closed: a token the vendor rejects, an expired token
// without a refresh token, and a failed refresh all end with the stored
// record deleted and an absent result. Callers never receive a credential
// the manager knows to be stale.
type Manager struct {
	store     TokenStore
	providers map[string]Provider
	group     singleflight.Group
}

func NewManager(store TokenStore) *Manager {
	return &Manager{
		store:     store,
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under its own name. Registering the same name
// twice replaces the earlier provider.
func (m *Manager) Register(p Provider) {
	m.providers[strings.ToLower(p.Name())] = p
}

// Provider returns the provider registered under name, case-insensitively.
func (m *Manager) Provider(name string) (Provider, bool) {
	p, ok := m.providers[strings.ToLower(name)]
	return p, ok
}

// Providers returns the registered provider names.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names
}

// Authenticate runs the provider's authentication and persists the token
// on success under (provider, keyID).
func (m *Manager) Authenticate(ctx context.Context, provider, keyID string, creds Credentials) *AuthResult {
	p, ok := m.Provider(provider)
	if !ok {
		return ErrorResult(provider, ErrCodeProviderNotFound, "authentication provider not found: "+provider)
	}

	res := p.Authenticate(ctx, creds)
	if res.Success && res.Token != nil {
		meta := map[string]any{
			"auth_method": string(p.Type()),
			"key_id":      keyID,
		}
		if err := m.store.Save(ctx, p.Name(), keyID, res.Token, meta); err != nil {
			logger.Log.Error("failed to persist token",
				zap.String("provider", p.Name()),
				zap.String("key_id", keyID),
				zap.Error(err))
			return ErrorResult(p.Name(), "storage_error", "failed to persist token: "+err.Error())
		}
		logger.Log.Info("credential stored",
			zap.String("provider", p.Name()),
			zap.String("key_id", keyID))
	}
	return res
}

// GetToken fetches the stored token for (provider, keyID). With validate
// set, the live status drives the lifecycle: an expired token with a
// refresh token is refreshed and the result persisted and returned; an
// expired token without one is deleted; a rejected token is deleted; a
// failed refresh deletes the stale record. Transient probe failures return
// the stored token unchanged.
//
// Absent tokens (including those deleted here) return (nil, nil). Errors
// are store-level only.
func (m *Manager) GetToken(ctx context.Context, provider, keyID string, validate bool) (*TokenData, error) {
	name := strings.ToLower(provider)
	token, err := m.store.Get(ctx, name, keyID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !validate {
		return token, nil
	}

	p, ok := m.Provider(name)
	if !ok {
		return token, nil
	}

	switch p.Validate(ctx, token) {
	case StatusValid:
		return token, nil

	case StatusExpired:
		if token.RefreshToken == "" {
			logger.Log.Info("deleting expired token without refresh token",
				zap.String("provider", name), zap.String("key_id", keyID))
			if err := m.store.Delete(ctx, name, keyID); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return m.refresh(ctx, p, keyID, token)

	case StatusInvalid:
		logger.Log.Info("deleting rejected token",
			zap.String("provider", name), zap.String("key_id", keyID))
		if err := m.store.Delete(ctx, name, keyID); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		// Transient probe failure. The token may still work upstream.
		return token, nil
	}
}

// refresh collapses concurrent refreshes of the same (provider, keyID)
// into one vendor call. Losing the race returns the winner's result.
func (m *Manager) refresh(ctx context.Context, p Provider, keyID string, stale *TokenData) (*TokenData, error) {
	key := p.Name() + "/" + keyID
	v, err, _ := m.group.Do(key, func() (any, error) {
		res := p.Refresh(ctx, stale)
		if !res.Success || res.Token == nil {
			logger.Log.Warn("refresh failed, deleting stale token",
				zap.String("provider", p.Name()),
				zap.String("key_id", keyID),
				zap.String("error_code", res.ErrorCode))
			if derr := m.store.Delete(ctx, p.Name(), keyID); derr != nil {
				return nil, derr
			}
			return (*TokenData)(nil), nil
		}
		if serr := m.store.Save(ctx, p.Name(), keyID, res.Token, nil); serr != nil {
			return nil, serr
		}
		logger.Log.Info("token refreshed",
			zap.String("provider", p.Name()), zap.String("key_id", keyID))
		return res.Token, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TokenData), nil
}

// ValidateToken reports the live status of the stored token without
// mutating it. An absent token is invalid.
func (m *Manager) ValidateToken(ctx context.Context, provider, keyID string) TokenStatus {
	name := strings.ToLower(provider)
	token, err := m.store.Get(ctx, name, keyID)
	if err != nil {
		return StatusInvalid
	}
	p, ok := m.Provider(name)
	if !ok {
		return StatusInvalid
	}
	return p.Validate(ctx, token)
}

func (m *Manager) DeleteToken(ctx context.Context, provider, keyID string) error {
	return m.store.Delete(ctx, strings.ToLower(provider), keyID)
}

func (m *Manager) ListTokens(ctx context.Context, provider string) ([]*Entry, error) {
	return m.store.List(ctx, strings.ToLower(provider))
}

// GetAuthURL starts an OAuth flow for the provider.
func (m *Manager) GetAuthURL(ctx context.Context, provider string) *AuthResult {
	p, ok := m.Provider(provider)
	if !ok {
		return ErrorResult(provider, ErrCodeProviderNotFound, "authentication provider not found: "+provider)
	}
	return p.AuthURL(ctx)
}

// ExchangeCode completes an OAuth flow and persists the resulting token
// under (provider, keyID).
func (m *Manager) ExchangeCode(ctx context.Context, provider, keyID, code, verifier string) *AuthResult {
	p, ok := m.Provider(provider)
	if !ok {
		return ErrorResult(provider, ErrCodeProviderNotFound, "authentication provider not found: "+provider)
	}

	res := p.ExchangeCode(ctx, code, verifier)
	if res.Success && res.Token != nil {
		meta := map[string]any{
			"auth_method": "oauth",
			"key_id":      keyID,
		}
		if err := m.store.Save(ctx, p.Name(), keyID, res.Token, meta); err != nil {
			return ErrorResult(p.Name(), "storage_error", "failed to persist token: "+err.Error())
		}
	}
	return res
}

// Logout deletes the local record. Remote invalidation is best-effort and
// never blocks the local deletion. Returns false when no record existed.
func (m *Manager) Logout(ctx context.Context, provider, keyID string) bool {
	name := strings.ToLower(provider)
	token, err := m.store.Get(ctx, name, keyID)
	if err != nil || token == nil {
		return false
	}
	if p, ok := m.Provider(name); ok {
		if remote, ok := p.(RemoteLogout); ok {
			if lerr := remote.Logout(ctx, token); lerr != nil {
				logger.Log.Warn("remote logout failed",
					zap.String("provider", name), zap.Error(lerr))
			}
		}
	}
	if err := m.store.Delete(ctx, name, keyID); err != nil {
		logger.Log.Warn("failed to delete token on logout",
			zap.String("provider", name), zap.String("key_id", keyID), zap.Error(err))
		return false
	}
	return true
}

// CleanupExpired removes expired tokens store-wide and returns how many
// were deleted.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	return m.store.CleanupExpired(ctx)
}

// TokenStats summarizes the stored credential population.
type TokenStats struct {
	Total        int            `json:"total_tokens"`
	Valid        int            `json:"valid_tokens"`
	ExpiringSoon int            `json:"expiring_soon_tokens"`
	Expired      int            `json:"expired_tokens"`
	Providers    map[string]int `json:"providers"`
}

// Stats classifies every stored token by local expiry. Expiring-soon means
// within five minutes of expiry.
func (m *Manager) Stats(ctx context.Context) (*TokenStats, error) {
	entries, err := m.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	stats := &TokenStats{Providers: make(map[string]int)}
	soon := time.Now().Add(expiringSoonWindow)
	for _, e := range entries {
		stats.Total++
		stats.Providers[e.Provider]++
		if e.Token == nil {
			continue
		}
		switch {
		case e.Token.IsExpired():
			stats.Expired++
		case e.Token.ExpiresAt != nil && e.Token.ExpiresAt.Before(soon):
			stats.ExpiringSoon++
		default:
			stats.Valid++
		}
	}
	return stats, nil
}
