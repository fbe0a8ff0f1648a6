package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"covenant/internal/session/models"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

const sessionKeyPrefix = "session:"

// RedisSessionStore is the production session store for deployments with
// more than one instance. Keys expire with the session so revoked and
// expired entries clean themselves up.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Create(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	return s.client.Set(ctx, sessionKeyPrefix+session.ID.String(), payload, ttl).Err()
}

func (s *RedisSessionStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+sessionID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Revoke marks the session revoked in place, keeping the original key TTL so
// the record survives until the token itself would have expired.
func (s *RedisSessionStore) Revoke(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	session, err := s.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == models.SessionStatusRevoked {
		return nil
	}
	session.Status = models.SessionStatusRevoked
	session.RevokedAt = &at

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKeyPrefix+sessionID.String(), payload, redis.KeepTTL).Err()
}
