package auth

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// Credentials is the caller-supplied input to an authentication attempt.
// Which fields matter depends on the provider's AuthType.
type Credentials struct {
	APIKey string
	Cookie string
	// Extra carries provider-specific inputs such as a base URL override.
	Extra map[string]string
}

// Provider authenticates against one upstream vendor and validates or
// refreshes the credentials it issued.
//
// Validate performs a live probe against the vendor and classifies the
// response; it never mutates the token. Refresh returns a new token on
// success. Schemes without real refresh semantics (plain API keys, cookie
// sessions) reissue the same credential with a renewed timestamp.
type Provider interface {
	Name() string
	Type() AuthType

	Authenticate(ctx context.Context, creds Credentials) *AuthResult
	Validate(ctx context.Context, token *TokenData) TokenStatus
	Refresh(ctx context.Context, token *TokenData) *AuthResult

	// AuthURL starts an OAuth flow. Non-OAuth providers return an
	// oauth_not_configured error result.
	AuthURL(ctx context.Context) *AuthResult

	// ExchangeCode completes an OAuth flow started by AuthURL.
	ExchangeCode(ctx context.Context, code, verifier string) *AuthResult
}

// RemoteLogout is implemented by providers that can invalidate a
// credential upstream. Failures are advisory; local deletion proceeds
// regardless.
type RemoteLogout interface {
	Logout(ctx context.Context, token *TokenData) error
}

const (
	authenticateTimeout = 10 * time.Second
	validateTimeout     = 5 * time.Second
)

// transportResult classifies a transport-level failure into the error code
// the surrounding AuthResult should carry.
func transportResult(provider string, err error) *AuthResult {
	if isTimeout(err) {
		return ErrorResult(provider, ErrCodeConnectionTimeout, "request timed out: "+err.Error())
	}
	return ErrorResult(provider, ErrCodeConnectionError, "request failed: "+err.Error())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// probe issues a request with a bounded timeout and drains the body so the
// connection can be reused. It returns only the status code; probe callers
// classify on status, not payload.
func probe(ctx context.Context, client *http.Client, req *http.Request, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// parseCookies splits a Cookie header value into name/value pairs.
// Fragments without "=" are ignored; names and values are trimmed.
func parseCookies(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}
