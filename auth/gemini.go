package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"
	geminiAuthURL        = "https://accounts.google.com/o/oauth2/v2/auth"
	geminiTokenURL       = "https://oauth2.googleapis.com/token"
	geminiOAuthScope     = "https://www.googleapis.com/auth/cloud-platform"
)

// OAuthConfig is the client registration a provider needs to run an OAuth
// flow. A nil OAuthConfig means the flow is not configured for that
// provider.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// GeminiProvider authenticates Google Gemini. API keys are the primary
// scheme, validated against the model listing endpoint with the
// x-goog-api-key header. An OAuth flow against Google's endpoints is
// available when client settings are configured.
type GeminiProvider struct {
	baseURL string
	client  *http.Client
	oauth   *OAuthConfig
}

func NewGeminiProvider(baseURL string, client *http.Client, oauth *OAuthConfig) *GeminiProvider {
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GeminiProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client, oauth: oauth}
}

func (p *GeminiProvider) Name() string   { return "gemini" }
func (p *GeminiProvider) Type() AuthType { return AuthTypeAPIKey }

func (p *GeminiProvider) Authenticate(ctx context.Context, creds Credentials) *AuthResult {
	key := strings.TrimSpace(creds.APIKey)
	if key == "" {
		return ErrorResult(p.Name(), ErrCodeMissingAPIKey, "api key is required")
	}

	status, err := p.probeKey(ctx, key, authenticateTimeout)
	if err != nil {
		return transportResult(p.Name(), err)
	}
	if status != http.StatusOK {
		return ErrorResult(p.Name(), ErrCodeAPIKeyValidationFailed, "api key rejected by google")
	}
	return SuccessResult(p.Name(), &TokenData{
		AccessToken: key,
		TokenType:   "Bearer",
		IssuedAt:    now(),
	})
}

func (p *GeminiProvider) Validate(ctx context.Context, token *TokenData) TokenStatus {
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
	case http.StatusForbidden:
		return StatusInvalid
	default:
		return StatusRefreshNeeded
	}
}

// Refresh exchanges the refresh token at Google's token endpoint when the
// credential came from the OAuth flow. Plain API keys have nothing to
// exchange and are reissued with a fresh issued-at stamp.
func (p *GeminiProvider) Refresh(ctx context.Context, token *TokenData) *AuthResult {
	if token == nil || token.AccessToken == "" {
		return ErrorResult(p.Name(), ErrCodeRefreshFailed, "no credential to reissue")
	}
	if token.RefreshToken == "" {
		return SuccessResult(p.Name(), &TokenData{
			AccessToken: token.AccessToken,
			TokenType:   "Bearer",
			IssuedAt:    now(),
		})
	}
	if p.oauth == nil {
		return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "oauth client settings missing")
	}
	return refreshOAuth(ctx, p.Name(), p.oauthConfig(), p.client, token)
}

func (p *GeminiProvider) AuthURL(ctx context.Context) *AuthResult {
	if p.oauth == nil {
		return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "oauth client settings missing")
	}
	return buildAuthURL(p.Name(), p.oauthConfig(),
		oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *GeminiProvider) ExchangeCode(ctx context.Context, code, verifier string) *AuthResult {
	if p.oauth == nil {
		return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "oauth client settings missing")
	}
	return exchangeCode(ctx, p.Name(), p.oauthConfig(), p.client, code, verifier)
}

func (p *GeminiProvider) oauthConfig() *oauth2.Config {
	scopes := p.oauth.Scopes
	if len(scopes) == 0 {
		scopes = []string{geminiOAuthScope}
	}
	return &oauth2.Config{
		ClientID:     p.oauth.ClientID,
		ClientSecret: p.oauth.ClientSecret,
		RedirectURL:  p.oauth.RedirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  geminiAuthURL,
			TokenURL: geminiTokenURL,
		},
	}
}

func (p *GeminiProvider) probeKey(ctx context.Context, key string, timeout time.Duration) (int, error) {
	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/v1beta/models", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-goog-api-key", key)
	req.Header.Set("Content-Type", "application/json")
	return probe(ctx, p.client, req, timeout)
}

// buildAuthURL generates fresh PKCE material and state and wraps them in
// the redirect result.
func buildAuthURL(provider string, cfg *oauth2.Config, opts ...oauth2.AuthCodeOption) *AuthResult {
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return ErrorResult(provider, ErrCodeOAuthNotConfigured, "pkce generation failed: "+err.Error())
	}
	state, err := GenerateState()
	if err != nil {
		return ErrorResult(provider, ErrCodeOAuthNotConfigured, "state generation failed: "+err.Error())
	}
	opts = append(opts, oauth2.S256ChallengeOption(verifier))
	return OAuthRedirect(provider, cfg.AuthCodeURL(state, opts...), state, verifier)
}

// exchangeCode redeems an authorization code at the vendor token endpoint.
// A vendor rejection maps to token_exchange_failed; anything else on the
// path (transport, malformed response) maps to code_exchange_failed.
func exchangeCode(ctx context.Context, provider string, cfg *oauth2.Config, client *http.Client, code, verifier string) *AuthResult {
	ctx, cancel := context.WithTimeout(ctx, authenticateTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return ErrorResult(provider, ErrCodeTokenExchangeFailed, "token exchange failed: "+err.Error())
		}
		return ErrorResult(provider, ErrCodeCodeExchangeFailed, "code exchange failed: "+err.Error())
	}
	return SuccessResult(provider, tokenFromOAuth(tok))
}

func refreshOAuth(ctx context.Context, provider string, cfg *oauth2.Config, client *http.Client, token *TokenData) *AuthResult {
	ctx, cancel := context.WithTimeout(ctx, authenticateTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return ErrorResult(provider, ErrCodeRefreshFailed, "token refresh failed: "+err.Error())
	}
	fresh := tokenFromOAuth(tok)
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	fresh.Email = token.Email
	fresh.UserID = token.UserID
	fresh.OrganizationID = token.OrganizationID
	return SuccessResult(provider, fresh)
}

// tokenFromOAuth converts an oauth2 token, defaulting the expiry to one
// hour when the vendor omits expires_in.
func tokenFromOAuth(tok *oauth2.Token) *TokenData {
	td := &TokenData{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		IssuedAt:     now(),
	}
	if td.TokenType == "" {
		td.TokenType = "Bearer"
	}
	exp := tok.Expiry
	if exp.IsZero() {
		exp = time.Now().UTC().Add(time.Hour)
	}
	td.ExpiresAt = &exp
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		td.Scope = scope
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		td.ExtraData = map[string]any{"id_token": idToken}
	}
	return td
}
