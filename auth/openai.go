package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	openaiDefaultBaseURL = "https://api.openai.com"
	openaiAuthURL        = "https://auth.openai.com/oauth/authorize"
	openaiTokenURL       = "https://auth.openai.com/oauth/token"
	openaiOAuthScope     = "openai"
)

// OpenAIProvider authenticates OpenAI API keys against the model listing
// endpoint with a standard bearer header. An OAuth flow without PKCE is
// available when client settings are configured.
type OpenAIProvider struct {
	baseURL string
	client  *http.Client
	oauth   *OAuthConfig
}

func NewOpenAIProvider(baseURL string, client *http.Client, oauth *OAuthConfig) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAIProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client, oauth: oauth}
}

func (p *OpenAIProvider) Name() string   { return "openai" }
func (p *OpenAIProvider) Type() AuthType { return AuthTypeAPIKey }

func (p *OpenAIProvider) Authenticate(ctx context.Context, creds Credentials) *AuthResult {
	key := strings.TrimSpace(creds.APIKey)
	if key == "" {
		return ErrorResult(p.Name(), ErrCodeMissingAPIKey, "api key is required")
	}

	status, err := p.probeKey(ctx, key, authenticateTimeout)
	if err != nil {
		return transportResult(p.Name(), err)
	}
	if status != http.StatusOK {
		return ErrorResult(p.Name(), ErrCodeAPIKeyValidationFailed, "api key rejected by openai")
	}
	return SuccessResult(p.Name(), &TokenData{
		AccessToken: key,
		TokenType:   "Bearer",
		IssuedAt:    now(),
	})
}

func (p *OpenAIProvider) Validate(ctx context.Context, token *TokenData) TokenStatus {
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

// Refresh exchanges the refresh token when the credential came from the
// OAuth flow. Plain API keys are reissued with a fresh issued-at stamp.
func (p *OpenAIProvider) Refresh(ctx context.Context, token *TokenData) *AuthResult {
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

// AuthURL builds the authorization redirect. OpenAI's flow carries state
// but no PKCE challenge, so the result's verifier is empty.
func (p *OpenAIProvider) AuthURL(ctx context.Context) *AuthResult {
	if p.oauth == nil {
		return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "oauth client settings missing")
	}
	state, err := GenerateState()
	if err != nil {
		return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "state generation failed: "+err.Error())
	}
	return OAuthRedirect(p.Name(), p.oauthConfig().AuthCodeURL(state), state, "")
}

func (p *OpenAIProvider) ExchangeCode(ctx context.Context, code, verifier string) *AuthResult {
	if p.oauth == nil {
		return ErrorResult(p.Name(), ErrCodeOAuthNotConfigured, "oauth client settings missing")
	}
	return exchangeCode(ctx, p.Name(), p.oauthConfig(), p.client, code, verifier)
}

func (p *OpenAIProvider) oauthConfig() *oauth2.Config {
	scopes := p.oauth.Scopes
	if len(scopes) == 0 {
		scopes = []string{openaiOAuthScope}
	}
	return &oauth2.Config{
		ClientID:     p.oauth.ClientID,
		ClientSecret: p.oauth.ClientSecret,
		RedirectURL:  p.oauth.RedirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  openaiAuthURL,
			TokenURL: openaiTokenURL,
		},
	}
}

func (p *OpenAIProvider) probeKey(ctx context.Context, key string, timeout time.Duration) (int, error) {
	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	return probe(ctx, p.client, req, timeout)
}
