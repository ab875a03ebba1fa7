package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
)

// Error codes reported on failed authentication results. Callers match on
// these rather than on message text.
const (
	ErrCodeMissingAPIKey          = "missing_api_key"
	ErrCodeMissingCookies         = "missing_cookies"
	ErrCodeAPIKeyValidationFailed = "api_key_validation_failed"
	ErrCodeCookieValidationFailed = "cookie_validation_failed"
	ErrCodeConnectionTimeout      = "connection_timeout"
	ErrCodeConnectionError        = "connection_error"
	ErrCodeTokenExchangeFailed    = "token_exchange_failed"
	ErrCodeCodeExchangeFailed     = "code_exchange_failed"
	ErrCodeOAuthNotConfigured     = "oauth_not_configured"
	ErrCodeProviderNotFound       = "provider_not_found"
	ErrCodeRefreshFailed          = "refresh_failed"
	ErrCodeNotSupported           = "not_supported"
)

// AuthResult is the outcome of an authentication attempt. Exactly one of
// the three shapes is populated: a success carries Token, a failure carries
// Error and ErrorCode, and an OAuth redirect carries AuthURL plus the state
// and verifier the caller must hold for the code exchange.
type AuthResult struct {
	Success      bool       `json:"success"`
	Provider     string     `json:"provider,omitempty"`
	Token        *TokenData `json:"token,omitempty"`
	Error        string     `json:"error,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	AuthURL      string     `json:"auth_url,omitempty"`
	State        string     `json:"state,omitempty"`
	CodeVerifier string     `json:"-"`
}

// SuccessResult builds a successful result carrying the issued token.
func SuccessResult(provider string, token *TokenData) *AuthResult {
	return &AuthResult{Success: true, Provider: provider, Token: token}
}

// ErrorResult builds a failed result with a machine-readable code and a
// human-readable message.
func ErrorResult(provider, code, msg string) *AuthResult {
	return &AuthResult{Provider: provider, Error: msg, ErrorCode: code}
}

// OAuthRedirect builds a result directing the caller to complete an OAuth
// flow in a browser. The verifier is returned to the caller but never
// serialized.
func OAuthRedirect(provider, authURL, state, verifier string) *AuthResult {
	return &AuthResult{
		Success:      false,
		Provider:     provider,
		AuthURL:      authURL,
		State:        state,
		CodeVerifier: verifier,
	}
}

// Pending reports whether the result is an OAuth redirect awaiting a code
// exchange rather than a terminal success or failure.
func (r *AuthResult) Pending() bool {
	return !r.Success && r.AuthURL != ""
}

// RFC 7636 unreserved characters.
const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// GenerateCodeVerifier returns a 64-character PKCE code verifier drawn from
// the RFC 7636 unreserved alphabet.
func GenerateCodeVerifier() (string, error) {
	return randomString(64, verifierAlphabet)
}

// ChallengeS256 derives the S256 code challenge for a verifier: the
// unpadded base64url encoding of its SHA-256 digest.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns an opaque CSRF state value for OAuth flows.
func GenerateState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func randomString(n int, alphabet string) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
