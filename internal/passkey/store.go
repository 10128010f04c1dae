package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"clubhub/internal/models"
)

// SessionTTL bounds how long a ceremony may take between begin and finish.
const SessionTTL = 5 * time.Minute

var ErrSessionNotFound = errors.New("passkey session not found or expired")

// SessionStore keeps ceremony state between begin and finish. Load consumes the session.
type SessionStore interface {
	Save(ctx context.Context, key string, data *webauthn.SessionData) error
	Load(ctx context.Context, key string) (*webauthn.SessionData, error)
}

type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore keeps sessions in the webauthn_sessions table.
func NewGormStore(db *gorm.DB) SessionStore {
	return &gormStore{db: db, now: time.Now}
}

func (s *gormStore) Save(ctx context.Context, key string, data *webauthn.SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	now := s.now()
	row := models.WebauthnSession{Key: key, Data: datatypes.JSON(raw), ExpiresAt: now.Add(SessionTTL)}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_key = ? OR expires_at < ?", key, now).Delete(&models.WebauthnSession{}).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
}

func (s *gormStore) Load(ctx context.Context, key string) (*webauthn.SessionData, error) {
	var row models.WebauthnSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_key = ?", key).First(&row).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.now().After(row.ExpiresAt) {
		return nil, ErrSessionNotFound
	}

	var data webauthn.SessionData
	if err := json.Unmarshal(row.Data, &data); err != nil {
		return nil, fmt.Errorf("corrupt passkey session: %w", err)
	}
	return &data, nil
}

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore keeps sessions in Redis with SessionTTL expiry.
func NewRedisStore(client *redis.Client) SessionStore {
	return &redisStore{client: client, prefix: "clubhub:webauthn:"}
}

func (s *redisStore) Save(ctx context.Context, key string, data *webauthn.SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, raw, SessionTTL).Err()
}

func (s *redisStore) Load(ctx context.Context, key string) (*webauthn.SessionData, error) {
	raw, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var data webauthn.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("corrupt passkey session: %w", err)
	}
	return &data, nil
}
