package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/modelgate/modelgate/auth"
)

// tokenRecord is the SQL row backing one stored token. The serialized
// token and the advisory metadata are kept in separate columns, matching
// the file layout's token/metadata split.
type tokenRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Provider  string `gorm:"size:64;uniqueIndex:idx_tokens_provider_key"`
	KeyID     string `gorm:"size:255;uniqueIndex:idx_tokens_provider_key"`
	Token     string `gorm:"type:text"`
	Metadata  string `gorm:"type:text"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (tokenRecord) TableName() string { return "tokens" }

// GormStore persists tokens in a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&tokenRecord{}); err != nil {
		return nil, fmt.Errorf("migrate token schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, provider, keyID string, token *auth.TokenData, metadata map[string]any) error {
	provider = strings.ToLower(provider)

	payload, err := token.Serialize()
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	var existing tokenRecord
	err = s.db.WithContext(ctx).
		Where("provider = ? AND key_id = ?", provider, keyID).
		First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"token":      string(payload),
			"expires_at": token.ExpiresAt,
		}
		if metadata != nil {
			encoded, merr := json.Marshal(metadata)
			if merr != nil {
				return fmt.Errorf("encode metadata: %w", merr)
			}
			updates["metadata"] = string(encoded)
		}
		return s.db.WithContext(ctx).Model(&existing).Updates(updates).Error

	case errors.Is(err, gorm.ErrRecordNotFound):
		record := tokenRecord{
			Provider:  provider,
			KeyID:     keyID,
			Token:     string(payload),
			ExpiresAt: token.ExpiresAt,
		}
		if metadata != nil {
			encoded, merr := json.Marshal(metadata)
			if merr != nil {
				return fmt.Errorf("encode metadata: %w", merr)
			}
			record.Metadata = string(encoded)
		}
		return s.db.WithContext(ctx).Create(&record).Error

	default:
		return fmt.Errorf("lookup token record: %w", err)
	}
}

func (s *GormStore) Get(ctx context.Context, provider, keyID string) (*auth.TokenData, error) {
	provider = strings.ToLower(provider)

	var record tokenRecord
	err := s.db.WithContext(ctx).
		Where("provider = ? AND key_id = ?", provider, keyID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("lookup token record: %w", err)
	}

	token, err := auth.DeserializeToken([]byte(record.Token))
	if err != nil {
		s.db.WithContext(ctx).Delete(&record)
		return nil, &auth.CorruptError{Provider: provider, KeyID: keyID, Err: err}
	}
	return token, nil
}

func (s *GormStore) GetValid(ctx context.Context, provider, keyID string, minTTL time.Duration) (*auth.TokenData, error) {
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

func (s *GormStore) Delete(ctx context.Context, provider, keyID string) error {
	return s.db.WithContext(ctx).
		Where("provider = ? AND key_id = ?", strings.ToLower(provider), keyID).
		Delete(&tokenRecord{}).Error
}

func (s *GormStore) List(ctx context.Context, provider string) ([]*auth.Entry, error) {
	query := s.db.WithContext(ctx).Model(&tokenRecord{})
	if provider != "" {
		query = query.Where("provider = ?", strings.ToLower(provider))
	}

	var records []tokenRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list token records: %w", err)
	}

	entries := make([]*auth.Entry, 0, len(records))
	for _, record := range records {
		token, err := auth.DeserializeToken([]byte(record.Token))
		if err != nil {
			continue
		}
		entry := &auth.Entry{
			Provider: record.Provider,
			KeyID:    record.KeyID,
			Token:    token,
			SavedAt:  record.UpdatedAt,
		}
		if record.Metadata != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(record.Metadata), &meta); err == nil {
				entry.Metadata = meta
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *GormStore) UpdateMetadata(ctx context.Context, provider, keyID string, fields map[string]any) error {
	provider = strings.ToLower(provider)

	var record tokenRecord
	err := s.db.WithContext(ctx).
		Where("provider = ? AND key_id = ?", provider, keyID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auth.ErrTokenNotFound
		}
		return fmt.Errorf("lookup token record: %w", err)
	}

	meta := map[string]any{}
	if record.Metadata != "" {
		json.Unmarshal([]byte(record.Metadata), &meta)
	}
	for k, v := range fields {
		meta[k] = v
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return s.db.WithContext(ctx).Model(&record).Update("metadata", string(encoded)).Error
}

func (s *GormStore) CleanupExpired(ctx context.Context) (int, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now().UTC()).
		Delete(&tokenRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired records: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
