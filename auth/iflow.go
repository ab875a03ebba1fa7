package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	iflowDefaultBaseURL = "https://iflow.team"

	// iFlow does not report session lifetime, so stored cookies get a
	// fixed window. A payload that no longer parses gets a short one.
	iflowSessionTTL  = 7 * 24 * time.Hour
	iflowFallbackTTL = 24 * time.Hour
)

// IFlowProvider authenticates iFlow cookie sessions. The cookie set is
// stored as a JSON object in the access token and reassembled into a
// Cookie header for validation probes against the user info endpoint.
type IFlowProvider struct {
	baseURL string
	client  *http.Client
}

func NewIFlowProvider(baseURL string, client *http.Client) *IFlowProvider {
	if baseURL == "" {
		baseURL = iflowDefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &IFlowProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *IFlowProvider) Name() string   { return "iflow" }
func (p *IFlowProvider) Type() AuthType { return AuthTypeCookie }

func (p *IFlowProvider) Authenticate(ctx context.Context, creds Credentials) *AuthResult {
	cookies := parseCookies(creds.Cookie)
	if len(cookies) == 0 {
		return ErrorResult(p.Name(), ErrCodeMissingCookies, "cookies are required")
	}

	status, err := p.probeCookies(ctx, cookies, authenticateTimeout)
	if err != nil {
		return transportResult(p.Name(), err)
	}
	if status != http.StatusOK {
		return ErrorResult(p.Name(), ErrCodeCookieValidationFailed, "cookies rejected by iflow")
	}

	payload, err := json.Marshal(cookies)
	if err != nil {
		return ErrorResult(p.Name(), ErrCodeCookieValidationFailed, "cookie encoding failed: "+err.Error())
	}
	return SuccessResult(p.Name(), &TokenData{
		AccessToken: string(payload),
		TokenType:   "Cookie",
		IssuedAt:    now(),
		ExpiresAt:   expiry(iflowSessionTTL),
		ExtraData:   map[string]any{"cookies": cookies},
	})
}

func (p *IFlowProvider) Validate(ctx context.Context, token *TokenData) TokenStatus {
	if token == nil || token.AccessToken == "" {
		return StatusInvalid
	}
	if token.IsExpired() {
		return StatusExpired
	}

	var cookies map[string]string
	if err := json.Unmarshal([]byte(token.AccessToken), &cookies); err != nil || len(cookies) == 0 {
		return StatusInvalid
	}

	status, err := p.probeCookies(ctx, cookies, validateTimeout)
	if err != nil {
		return StatusRefreshNeeded
	}
	switch status {
	case http.StatusOK:
		return StatusValid
	case http.StatusUnauthorized, http.StatusForbidden:
		return StatusInvalid
	default:
		return StatusRefreshNeeded
	}
}

// Refresh re-wraps the stored cookie payload with a renewed session
// window. A payload that no longer decodes still gets a token, but only a
// one-day window so it falls out quickly.
func (p *IFlowProvider) Refresh(ctx context.Context, token *TokenData) *AuthResult {
	if token == nil || token.AccessToken == "" {
		return ErrorResult(p.Name(), ErrCodeMissingCookies, "no cookie payload to refresh")
	}

	fresh := &TokenData{
		AccessToken: token.AccessToken,
		TokenType:   "Cookie",
		IssuedAt:    now(),
	}
	var cookies map[string]string
	if err := json.Unmarshal([]byte(token.AccessToken), &cookies); err == nil {
		fresh.ExpiresAt = expiry(iflowSessionTTL)
		fresh.ExtraData = map[string]any{"cookies": cookies}
	} else {
		fresh.ExpiresAt = expiry(iflowFallbackTTL)
	}
	return SuccessResult(p.Name(), fresh)
}

func (p *IFlowProvider) AuthURL(ctx context.Context) *AuthResult {
	return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "iflow uses cookie authentication")
}

func (p *IFlowProvider) ExchangeCode(ctx context.Context, code, verifier string) *AuthResult {
	return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "iflow uses cookie authentication")
}

func (p *IFlowProvider) probeCookies(ctx context.Context, cookies map[string]string, timeout time.Duration) (int, error) {
	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/api/user/info", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Cookie", cookieHeader(cookies))
	req.Header.Set("Content-Type", "application/json")
	return probe(ctx, p.client, req, timeout)
}

// cookieHeader reassembles a deterministic Cookie header value.
func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}
