// Package store provides the token persistence backends: a file store
// with a fixed on-disk layout, a SQL store on gorm, and a redis store.
// Backends are constructed through Open, which selects by configuration.
//
// All backends implement auth.TokenStore. The file layout is stable and
// shared with other tools:
//
//	{auth_dir}/tokens/{provider}/{key_id}.json    serialized token
//	{auth_dir}/metadata/{provider}/{key_id}.json  advisory metadata
//
// key_id is sanitized to [A-Za-z0-9._-] before use as a file name.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/auth"
	"github.com/modelgate/modelgate/logger"
)

// FileStore persists tokens as JSON files under a base directory. Token
// and metadata files are written separately so metadata updates do not
// rewrite credentials.
type FileStore struct {
	mu          sync.RWMutex
	tokensDir   string
	metadataDir string
}

func NewFileStore(authDir string) (*FileStore, error) {
	s := &FileStore{
		tokensDir:   filepath.Join(authDir, "tokens"),
		metadataDir: filepath.Join(authDir, "metadata"),
	}
	for _, dir := range []string{s.tokensDir, s.metadataDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return s, nil
}

// sanitizeKeyID keeps only characters safe for a file name.
func sanitizeKeyID(keyID string) string {
	var b strings.Builder
	for _, r := range keyID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *FileStore) tokenPath(provider, keyID string) string {
	return filepath.Join(s.tokensDir, strings.ToLower(provider), sanitizeKeyID(keyID)+".json")
}

func (s *FileStore) metadataPath(provider, keyID string) string {
	return filepath.Join(s.metadataDir, strings.ToLower(provider), sanitizeKeyID(keyID)+".json")
}

func (s *FileStore) Save(ctx context.Context, provider, keyID string, token *auth.TokenData, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenPath := s.tokenPath(provider, keyID)
	if err := os.MkdirAll(filepath.Dir(tokenPath), 0o700); err != nil {
		return fmt.Errorf("create provider directory: %w", err)
	}

	payload, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(tokenPath, payload, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}

	if metadata == nil {
		return nil
	}

	record := map[string]any{
		"provider":   strings.ToLower(provider),
		"key_id":     keyID,
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	// An earlier created_at survives rewrites.
	if prev, err := s.readMetadata(provider, keyID); err == nil {
		if created, ok := prev["created_at"]; ok {
			record["created_at"] = created
		}
	}
	for k, v := range metadata {
		record[k] = v
	}
	return s.writeMetadata(provider, keyID, record)
}

func (s *FileStore) Get(ctx context.Context, provider, keyID string) (*auth.TokenData, error) {
	s.mu.RLock()
	payload, err := os.ReadFile(s.tokenPath(provider, keyID))
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	token, err := auth.DeserializeToken(payload)
	if err != nil {
		// The record is unreadable; remove it so a retry sees a clean
		// not-found instead of failing forever.
		s.mu.Lock()
		os.Remove(s.tokenPath(provider, keyID))
		s.mu.Unlock()
		logger.Log.Warn("removed corrupt token file",
			zap.String("provider", provider), zap.String("key_id", keyID))
		return nil, &auth.CorruptError{Provider: strings.ToLower(provider), KeyID: keyID, Err: err}
	}
	return token, nil
}

func (s *FileStore) GetValid(ctx context.Context, provider, keyID string, minTTL time.Duration) (*auth.TokenData, error) {
	token, err := s.Get(ctx, provider, keyID)
	if err != nil {
		return nil, err
	}
	if token.IsExpired() {
		if err := s.Delete(ctx, provider, keyID); err != nil {
			return nil, err
		}
		return nil, auth.ErrTokenNotFound
	}
	if secs, ok := token.ExpiresIn(); ok && time.Duration(secs)*time.Second < minTTL {
		return nil, auth.ErrTokenNotFound
	}
	return token, nil
}

func (s *FileStore) Delete(ctx context.Context, provider, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.tokenPath(provider, keyID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	if err := os.Remove(s.metadataPath(provider, keyID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove metadata file: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context, provider string) ([]*auth.Entry, error) {
	providers := []string{strings.ToLower(provider)}
	if provider == "" {
		dirs, err := os.ReadDir(s.tokensDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("read tokens directory: %w", err)
		}
		providers = providers[:0]
		for _, d := range dirs {
			if d.IsDir() {
				providers = append(providers, d.Name())
			}
		}
	}

	var entries []*auth.Entry
	for _, prov := range providers {
		files, err := os.ReadDir(filepath.Join(s.tokensDir, prov))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read provider directory: %w", err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			keyID := strings.TrimSuffix(f.Name(), ".json")

			token, err := s.Get(ctx, prov, keyID)
			if err != nil {
				continue
			}
			entry := &auth.Entry{Provider: prov, KeyID: keyID, Token: token}
			if info, err := f.Info(); err == nil {
				entry.SavedAt = info.ModTime()
			}
			if meta, err := s.readMetadata(prov, keyID); err == nil {
				entry.Metadata = meta
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *FileStore) UpdateMetadata(ctx context.Context, provider, keyID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.tokenPath(provider, keyID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return auth.ErrTokenNotFound
		}
		return fmt.Errorf("stat token file: %w", err)
	}

	record, err := s.readMetadata(provider, keyID)
	if err != nil {
		record = map[string]any{
			"provider": strings.ToLower(provider),
			"key_id":   keyID,
		}
	}
	for k, v := range fields {
		record[k] = v
	}
	record["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	return s.writeMetadata(provider, keyID, record)
}

func (s *FileStore) CleanupExpired(ctx context.Context) (int, error) {
	entries, err := s.List(ctx, "")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if e.Token != nil && e.Token.IsExpired() {
			if err := s.Delete(ctx, e.Provider, e.KeyID); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func (s *FileStore) readMetadata(provider, keyID string) (map[string]any, error) {
	payload, err := os.ReadFile(s.metadataPath(provider, keyID))
	if err != nil {
		return nil, err
	}
	var record map[string]any
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *FileStore) writeMetadata(provider, keyID string, record map[string]any) error {
	path := s.metadataPath(provider, keyID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}
	return nil
}
