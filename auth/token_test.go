package auth

import (
	"strings"
	"testing"
	"time"
)

func TestTokenIsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name    string
		token   TokenData
		expired bool
	}{
		{"no expiry", TokenData{AccessToken: "k"}, false},
		{"future expiry", TokenData{AccessToken: "k", ExpiresAt: &future}, false},
		{"past expiry", TokenData{AccessToken: "k", ExpiresAt: &past}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.token.IsExpired(); got != tc.expired {
				t.Fatalf("IsExpired() = %v, want %v", got, tc.expired)
			}
		})
	}
}

func TestTokenExpiresIn(t *testing.T) {
	token := &TokenData{AccessToken: "k"}
	if _, ok := token.ExpiresIn(); ok {
		t.Fatal("token without expiry should report no remaining lifetime")
	}

	future := time.Now().Add(2 * time.Hour)
	token.ExpiresAt = &future
	secs, ok := token.ExpiresIn()
	if !ok {
		t.Fatal("token with expiry should report remaining lifetime")
	}
	if secs < 7100 || secs > 7200 {
		t.Fatalf("ExpiresIn() = %d, want about 7200", secs)
	}

	past := time.Now().Add(-time.Minute)
	token.ExpiresAt = &past
	if secs, _ := token.ExpiresIn(); secs != 0 {
		t.Fatalf("expired token should report 0 seconds, got %d", secs)
	}
}

func TestTokenSerializeRoundTrip(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	src := &TokenData{
		AccessToken:  "acc",
		RefreshToken: "ref",
		TokenType:    "Bearer",
		ExpiresAt:    &exp,
		Scope:        "openai",
		Email:        "dev@example.com",
		ExtraData:    map[string]any{"id_token": "idt"},
	}

	payload, err := src.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(string(payload), `"access_token":"acc"`) {
		t.Fatalf("serialized payload missing access token: %s", payload)
	}

	got, err := DeserializeToken(payload)
	if err != nil {
		t.Fatalf("DeserializeToken: %v", err)
	}
	if got.AccessToken != src.AccessToken || got.RefreshToken != src.RefreshToken {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
		t.Fatalf("expiry did not round trip: %v", got.ExpiresAt)
	}
	if got.ExtraData["id_token"] != "idt" {
		t.Fatalf("extra data did not round trip: %v", got.ExtraData)
	}
}

func TestDeserializeTokenRejectsGarbage(t *testing.T) {
	if _, err := DeserializeToken([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
