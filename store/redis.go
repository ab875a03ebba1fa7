package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modelgate/modelgate/auth"
)

const (
	redisTokenPrefix = "modelgate:token:"
	redisMetaPrefix  = "modelgate:meta:"
)

// RedisStore persists tokens in redis. Tokens and metadata live under
// separate key prefixes so metadata updates do not touch credentials.
// Expiry is enforced by the store contract, not redis TTLs, so that
// cleanup can report how many records it removed.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisTokenKey(provider, keyID string) string {
	return redisTokenPrefix + strings.ToLower(provider) + ":" + keyID
}

func redisMetaKey(provider, keyID string) string {
	return redisMetaPrefix + strings.ToLower(provider) + ":" + keyID
}

func (s *RedisStore) Save(ctx context.Context, provider, keyID string, token *auth.TokenData, metadata map[string]any) error {
	payload, err := token.Serialize()
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := s.client.Set(ctx, redisTokenKey(provider, keyID), payload, 0).Err(); err != nil {
		return fmt.Errorf("write token key: %w", err)
	}
	if metadata == nil {
		return nil
	}
	record := map[string]any{
		"provider":   strings.ToLower(provider),
		"key_id":     keyID,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range metadata {
		record[k] = v
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := s.client.Set(ctx, redisMetaKey(provider, keyID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("write metadata key: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, provider, keyID string) (*auth.TokenData, error) {
	payload, err := s.client.Get(ctx, redisTokenKey(provider, keyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("read token key: %w", err)
	}

	token, err := auth.DeserializeToken(payload)
	if err != nil {
		s.client.Del(ctx, redisTokenKey(provider, keyID))
		return nil, &auth.CorruptError{Provider: strings.ToLower(provider), KeyID: keyID, Err: err}
	}
	return token, nil
}

func (s *RedisStore) GetValid(ctx context.Context, provider, keyID string, minTTL time.Duration) (*auth.TokenData, error) {
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

func (s *RedisStore) Delete(ctx context.Context, provider, keyID string) error {
	if err := s.client.Del(ctx, redisTokenKey(provider, keyID), redisMetaKey(provider, keyID)).Err(); err != nil {
		return fmt.Errorf("delete token keys: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, provider string) ([]*auth.Entry, error) {
	pattern := redisTokenPrefix + "*"
	if provider != "" {
		pattern = redisTokenPrefix + strings.ToLower(provider) + ":*"
	}

	var entries []*auth.Entry
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), redisTokenPrefix)
		prov, keyID, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}

		token, err := s.Get(ctx, prov, keyID)
		if err != nil {
			continue
		}
		entry := &auth.Entry{Provider: prov, KeyID: keyID, Token: token}
		if encoded, err := s.client.Get(ctx, redisMetaKey(prov, keyID)).Bytes(); err == nil {
			var meta map[string]any
			if err := json.Unmarshal(encoded, &meta); err == nil {
				entry.Metadata = meta
			}
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan token keys: %w", err)
	}
	return entries, nil
}

func (s *RedisStore) UpdateMetadata(ctx context.Context, provider, keyID string, fields map[string]any) error {
	exists, err := s.client.Exists(ctx, redisTokenKey(provider, keyID)).Result()
	if err != nil {
		return fmt.Errorf("check token key: %w", err)
	}
	if exists == 0 {
		return auth.ErrTokenNotFound
	}

	record := map[string]any{
		"provider": strings.ToLower(provider),
		"key_id":   keyID,
	}
	if encoded, err := s.client.Get(ctx, redisMetaKey(provider, keyID)).Bytes(); err == nil {
		json.Unmarshal(encoded, &record)
	}
	for k, v := range fields {
		record[k] = v
	}
	record["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := s.client.Set(ctx, redisMetaKey(provider, keyID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("write metadata key: %w", err)
	}
	return nil
}

func (s *RedisStore) CleanupExpired(ctx context.Context) (int, error) {
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
