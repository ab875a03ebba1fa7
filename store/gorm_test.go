package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/modelgate/modelgate/auth"
)

func gormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewGormStore(db)
	if err != nil {
		t.Fatalf("NewGormStore: %v", err)
	}
	return s
}

func TestGormStoreRoundTrip(t *testing.T) {
	s := gormStore(t)
	ctx := context.Background()

	saved := futureToken(time.Hour)
	saved.RefreshToken = "r1"
	if err := s.Save(ctx, "Gemini", "k1", saved, map[string]any{"auth_method": "oauth"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "gemini", "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken != "secret" || got.RefreshToken != "r1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := s.Get(ctx, "gemini", "other"); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatalf("missing token error = %v, want ErrTokenNotFound", err)
	}
}

func TestGormStoreUpsert(t *testing.T) {
	s := gormStore(t)
	ctx := context.Background()

	s.Save(ctx, "claude", "k1", futureToken(time.Hour), map[string]any{"auth_method": "api_key"})

	replacement := futureToken(2 * time.Hour)
	replacement.AccessToken = "rotated"
	if err := s.Save(ctx, "claude", "k1", replacement, nil); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Get(ctx, "claude", "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken != "rotated" {
		t.Fatalf("token not replaced: %+v", got)
	}

	entries, _ := s.List(ctx, "claude")
	if len(entries) != 1 {
		t.Fatalf("upsert produced %d rows, want 1", len(entries))
	}
	// Saving without metadata keeps the original metadata.
	if entries[0].Metadata["auth_method"] != "api_key" {
		t.Fatalf("metadata lost on upsert: %v", entries[0].Metadata)
	}
}

func TestGormStoreGetValid(t *testing.T) {
	s := gormStore(t)
	ctx := context.Background()

	s.Save(ctx, "gemini", "fresh", futureToken(time.Hour), nil)
	if _, err := s.GetValid(ctx, "gemini", "fresh", time.Minute); err != nil {
		t.Fatalf("fresh token should be valid: %v", err)
	}

	s.Save(ctx, "gemini", "closing", futureToken(30*time.Second), nil)
	if _, err := s.GetValid(ctx, "gemini", "closing", time.Minute); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatalf("near-expiry error = %v, want ErrTokenNotFound", err)
	}
	if _, err := s.Get(ctx, "gemini", "closing"); err != nil {
		t.Fatal("near-expiry token must not be deleted")
	}

	s.Save(ctx, "gemini", "stale", futureToken(-time.Minute), nil)
	if _, err := s.GetValid(ctx, "gemini", "stale", 0); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatalf("expired error = %v, want ErrTokenNotFound", err)
	}
	if _, err := s.Get(ctx, "gemini", "stale"); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatal("expired token must be deleted on read")
	}
}

func TestGormStoreCorruptRow(t *testing.T) {
	s := gormStore(t)
	ctx := context.Background()

	s.db.Create(&tokenRecord{Provider: "qwen", KeyID: "bad", Token: "{not json"})

	_, err := s.Get(ctx, "qwen", "bad")
	var corrupt *auth.CorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("error = %v, want CorruptError", err)
	}
	if _, err := s.Get(ctx, "qwen", "bad"); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatal("corrupt row must be deleted")
	}
}

func TestGormStoreUpdateMetadata(t *testing.T) {
	s := gormStore(t)
	ctx := context.Background()

	if err := s.UpdateMetadata(ctx, "gemini", "nope", map[string]any{"x": 1}); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatalf("metadata update without token = %v, want ErrTokenNotFound", err)
	}

	s.Save(ctx, "gemini", "k1", futureToken(time.Hour), map[string]any{"auth_method": "api_key"})
	if err := s.UpdateMetadata(ctx, "gemini", "k1", map[string]any{"label": "primary"}); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	entries, _ := s.List(ctx, "gemini")
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	meta := entries[0].Metadata
	if meta["label"] != "primary" || meta["auth_method"] != "api_key" {
		t.Fatalf("merged metadata = %v", meta)
	}
}

func TestGormStoreCleanupExpired(t *testing.T) {
	s := gormStore(t)
	ctx := context.Background()

	s.Save(ctx, "gemini", "live", futureToken(time.Hour), nil)
	s.Save(ctx, "gemini", "forever", &auth.TokenData{AccessToken: "x"}, nil)
	s.Save(ctx, "gemini", "dead1", futureToken(-time.Minute), nil)
	s.Save(ctx, "claude", "dead2", futureToken(-time.Hour), nil)

	count, err := s.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if count != 2 {
		t.Fatalf("cleanup removed %d, want 2", count)
	}
	if _, err := s.Get(ctx, "gemini", "forever"); err != nil {
		t.Fatal("token without expiry removed by cleanup")
	}
}
