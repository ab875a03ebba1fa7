package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func claudeStub(t *testing.T, status int, gotHeaders *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Method != http.MethodPost {
			t.Errorf("unexpected probe %s %s", r.Method, r.URL.Path)
		}
		if gotHeaders != nil {
			*gotHeaders = r.Header.Clone()
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClaudeAuthenticateHeaders(t *testing.T) {
	var headers http.Header
	srv := claudeStub(t, http.StatusOK, &headers)
	p := NewClaudeProvider(srv.URL, srv.Client())

	res := p.Authenticate(context.Background(), Credentials{APIKey: "sk-ant-test"})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if headers.Get("x-api-key") != "sk-ant-test" {
		t.Fatalf("x-api-key = %q", headers.Get("x-api-key"))
	}
	if headers.Get("anthropic-version") != "2023-06-01" {
		t.Fatalf("anthropic-version = %q", headers.Get("anthropic-version"))
	}
	if headers.Get("Authorization") != "" {
		t.Fatal("claude must not send a bearer authorization header")
	}
	if res.Token == nil || res.Token.AccessToken != "sk-ant-test" {
		t.Fatalf("token = %+v", res.Token)
	}
}

func TestClaudeAuthenticateStatusClassification(t *testing.T) {
	cases := []struct {
		status  int
		success bool
	}{
		{http.StatusOK, true},
		{http.StatusBadRequest, true},
		{http.StatusTooManyRequests, true},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		srv := claudeStub(t, tc.status, nil)
		p := NewClaudeProvider(srv.URL, srv.Client())
		res := p.Authenticate(context.Background(), Credentials{APIKey: "k"})
		if res.Success != tc.success {
			t.Errorf("status %d: success = %v, want %v", tc.status, res.Success, tc.success)
		}
		if !tc.success && res.ErrorCode != ErrCodeAPIKeyValidationFailed {
			t.Errorf("status %d: error code %q", tc.status, res.ErrorCode)
		}
	}
}

func TestClaudeAuthenticateMissingKey(t *testing.T) {
	p := NewClaudeProvider("", nil)
	res := p.Authenticate(context.Background(), Credentials{})
	if res.Success || res.ErrorCode != ErrCodeMissingAPIKey {
		t.Fatalf("expected missing_api_key, got %+v", res)
	}
}

func TestClaudeValidate(t *testing.T) {
	cases := []struct {
		status int
		want   TokenStatus
	}{
		{http.StatusOK, StatusValid},
		{http.StatusBadRequest, StatusValid},
		{http.StatusTooManyRequests, StatusValid},
		{http.StatusUnauthorized, StatusInvalid},
		{http.StatusInternalServerError, StatusRefreshNeeded},
	}
	for _, tc := range cases {
		srv := claudeStub(t, tc.status, nil)
		p := NewClaudeProvider(srv.URL, srv.Client())
		got := p.Validate(context.Background(), &TokenData{AccessToken: "k"})
		if got != tc.want {
			t.Errorf("status %d: Validate() = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestClaudeValidateUnreachable(t *testing.T) {
	srv := claudeStub(t, http.StatusOK, nil)
	url := srv.URL
	srv.Close()

	p := NewClaudeProvider(url, http.DefaultClient)
	if got := p.Validate(context.Background(), &TokenData{AccessToken: "k"}); got != StatusRefreshNeeded {
		t.Fatalf("unreachable vendor should be transient, got %q", got)
	}
}

func TestClaudeRefreshReissues(t *testing.T) {
	p := NewClaudeProvider("", nil)
	res := p.Refresh(context.Background(), &TokenData{AccessToken: "k"})
	if !res.Success || res.Token.AccessToken != "k" {
		t.Fatalf("refresh should reissue the key, got %+v", res)
	}
	if res.Token.IssuedAt == nil {
		t.Fatal("reissued token needs a fresh issued-at stamp")
	}
}

func TestClaudeOAuthNotConfigured(t *testing.T) {
	p := NewClaudeProvider("", nil)
	if res := p.AuthURL(context.Background()); res.ErrorCode != ErrCodeOAuthNotConfigured {
		t.Fatalf("AuthURL error code = %q", res.ErrorCode)
	}
	if res := p.ExchangeCode(context.Background(), "c", "v"); res.ErrorCode != ErrCodeOAuthNotConfigured {
		t.Fatalf("ExchangeCode error code = %q", res.ErrorCode)
	}
}
