package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const qwenDefaultBaseURL = "https://dashscope.aliyuncs.com"

// QwenProvider authenticates Alibaba DashScope API keys against the model
// listing endpoint with a standard bearer header. Qwen keys do not expire
// and have no OAuth flow.
type QwenProvider struct {
	baseURL string
	client  *http.Client
}

func NewQwenProvider(baseURL string, client *http.Client) *QwenProvider {
	if baseURL == "" {
		baseURL = qwenDefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &QwenProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *QwenProvider) Name() string   { return "qwen" }
func (p *QwenProvider) Type() AuthType { return AuthTypeAPIKey }

func (p *QwenProvider) Authenticate(ctx context.Context, creds Credentials) *AuthResult {
	key := strings.TrimSpace(creds.APIKey)
	if key == "" {
		return ErrorResult(p.Name(), ErrCodeMissingAPIKey, "api key is required")
	}

	status, err := p.probeKey(ctx, key, authenticateTimeout)
	if err != nil {
		return transportResult(p.Name(), err)
	}
	if status != http.StatusOK {
		return ErrorResult(p.Name(), ErrCodeAPIKeyValidationFailed, "api key rejected by dashscope")
	}
	return SuccessResult(p.Name(), &TokenData{
		AccessToken: key,
		TokenType:   "Bearer",
		IssuedAt:    now(),
	})
}

func (p *QwenProvider) Validate(ctx context.Context, token *TokenData) TokenStatus {
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
	switch status {
	case http.StatusOK:
		return StatusValid
	case http.StatusUnauthorized:
		return StatusInvalid
	default:
		return StatusRefreshNeeded
	}
}

// Refresh reissues the key with a fresh issued-at stamp. DashScope keys do
// not expire, so there is nothing to exchange.
func (p *QwenProvider) Refresh(ctx context.Context, token *TokenData) *AuthResult {
	if token == nil || token.AccessToken == "" {
		return ErrorResult(p.Name(), ErrCodeRefreshFailed, "no credential to reissue")
	}
	return SuccessResult(p.Name(), &TokenData{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		IssuedAt:    now(),
	})
}

func (p *QwenProvider) AuthURL(ctx context.Context) *AuthResult {
	return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "qwen uses api key authentication")
}

func (p *QwenProvider) ExchangeCode(ctx context.Context, code, verifier string) *AuthResult {
	return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "qwen uses api key authentication")
}

func (p *QwenProvider) probeKey(ctx context.Context, key string, timeout time.Duration) (int, error) {
	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/api/v1/models", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	return probe(ctx, p.client, req, timeout)
}
