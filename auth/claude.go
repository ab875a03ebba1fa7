package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	claudeDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"
)

// ClaudeProvider validates Anthropic API keys by probing the messages
// endpoint. Anthropic rejects unauthenticated requests before validating
// the payload, so a 400 from an empty body still proves the key works.
type ClaudeProvider struct {
	baseURL string
	client  *http.Client
}

func NewClaudeProvider(baseURL string, client *http.Client) *ClaudeProvider {
	if baseURL == "" {
		baseURL = claudeDefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ClaudeProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *ClaudeProvider) Name() string   { return "claude" }
func (p *ClaudeProvider) Type() AuthType { return AuthTypeAPIKey }

func (p *ClaudeProvider) Authenticate(ctx context.Context, creds Credentials) *AuthResult {
	key := strings.TrimSpace(creds.APIKey)
	if key == "" {
		return ErrorResult(p.Name(), ErrCodeMissingAPIKey, "api key is required")
	}

	status, err := p.probeKey(ctx, key, authenticateTimeout)
	if err != nil {
		return transportResult(p.Name(), err)
	}
	switch classifyClaudeStatus(status) {
	case StatusValid:
		return SuccessResult(p.Name(), &TokenData{
			AccessToken: key,
			TokenType:   "Bearer",
			IssuedAt:    now(),
		})
	case StatusInvalid:
		return ErrorResult(p.Name(), ErrCodeAPIKeyValidationFailed, "api key rejected by anthropic")
	default:
		return ErrorResult(p.Name(), ErrCodeAPIKeyValidationFailed, "unexpected response from anthropic")
	}
}

func (p *ClaudeProvider) Validate(ctx context.Context, token *TokenData) TokenStatus {
	if token == nil || token.AccessToken == "" {
		return StatusInvalid
	}
	if token.IsExpired() {
		return StatusExpired
	}
	status, err := p.probeKey(ctx, token.AccessToken, validateTimeout)
	if err != nil {
		return StatusRefreshNeeded
	}
	return classifyClaudeStatus(status)
}

// Refresh reissues the key with a fresh issued-at stamp. Anthropic keys do
// not expire, so there is nothing to exchange.
func (p *ClaudeProvider) Refresh(ctx context.Context, token *TokenData) *AuthResult {
	if token == nil || token.AccessToken == "" {
		return ErrorResult(p.Name(), ErrCodeRefreshFailed, "no credential to reissue")
	}
	return SuccessResult(p.Name(), &TokenData{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		IssuedAt:    now(),
	})
}

func (p *ClaudeProvider) AuthURL(ctx context.Context) *AuthResult {
	return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "claude uses api key authentication")
}

func (p *ClaudeProvider) ExchangeCode(ctx context.Context, code, verifier string) *AuthResult {
	return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "claude uses api key authentication")
}

func (p *ClaudeProvider) probeKey(ctx context.Context, key string, timeout time.Duration) (int, error) {
	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/messages", strings.NewReader("{}"))
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	return probe(ctx, p.client, req, timeout)
}

// classifyClaudeStatus maps a probe status code to a token status. 400 and
// 429 both require a key that passed authentication, so they count as
// valid.
func classifyClaudeStatus(status int) TokenStatus {
	switch status {
	case http.StatusOK, http.StatusBadRequest, http.StatusTooManyRequests:
		return StatusValid
	case http.StatusUnauthorized:
		return StatusInvalid
	default:
		return StatusRefreshNeeded
	}
}
