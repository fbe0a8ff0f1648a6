//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"covenant/internal/session/models"
	"covenant/internal/session/store"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
	"covenant/pkg/testutil/containers"
)

type RedisSessionSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisSessionStore
}

func TestRedisSessionSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSessionSuite))
}

func (s *RedisSessionSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = store.NewRedisSessionStore(s.redis.Client)
}

func (s *RedisSessionSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func makeSession(ttl time.Duration) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		ID:          id.SessionID(uuid.New()),
		PrincipalID: id.PrincipalID(uuid.New()),
		Status:      models.SessionStatusActive,
		UserAgent:   "Mozilla/5.0 test",
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (s *RedisSessionSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	session := makeSession(time.Hour)

	s.Require().NoError(s.store.Create(ctx, session))

	got, err := s.store.FindByID(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.ID, got.ID)
	s.Equal(session.PrincipalID, got.PrincipalID)
	s.Equal(models.SessionStatusActive, got.Status)
	s.Equal("Mozilla/5.0 test", got.UserAgent)
}

func (s *RedisSessionSuite) TestFindUnknownReturnsNotFound() {
	_, err := s.store.FindByID(context.Background(), id.SessionID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisSessionSuite) TestCreateExpiredSessionRejected() {
	session := makeSession(-time.Minute)
	s.ErrorIs(s.store.Create(context.Background(), session), sentinel.ErrExpired)
}

func (s *RedisSessionSuite) TestSessionExpiresWithKey() {
	ctx := context.Background()
	session := makeSession(time.Second)
	s.Require().NoError(s.store.Create(ctx, session))

	s.Eventually(func() bool {
		_, err := s.store.FindByID(ctx, session.ID)
		return err != nil
	}, 5*time.Second, 100*time.Millisecond, "session should vanish when its key TTL lapses")
}

func (s *RedisSessionSuite) TestRevokeMarksSessionAndKeepsTTL() {
	ctx := context.Background()
	session := makeSession(time.Hour)
	s.Require().NoError(s.store.Create(ctx, session))

	revokedAt := time.Now().UTC()
	s.Require().NoError(s.store.Revoke(ctx, session.ID, revokedAt))

	got, err := s.store.FindByID(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusRevoked, got.Status)
	s.Require().NotNil(got.RevokedAt)
	s.WithinDuration(revokedAt, *got.RevokedAt, time.Second)

	// The key must still carry a finite TTL after the revoke rewrite.
	ttl := s.redis.Client.TTL(ctx, "session:"+session.ID.String()).Val()
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Hour)
}

func (s *RedisSessionSuite) TestRevokeIsIdempotent() {
	ctx := context.Background()
	session := makeSession(time.Hour)
	s.Require().NoError(s.store.Create(ctx, session))

	first := time.Now().UTC()
	s.Require().NoError(s.store.Revoke(ctx, session.ID, first))
	s.Require().NoError(s.store.Revoke(ctx, session.ID, first.Add(time.Minute)))

	got, err := s.store.FindByID(ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.RevokedAt)
	// The original revocation time wins.
	s.WithinDuration(first, *got.RevokedAt, time.Second)
}

func (s *RedisSessionSuite) TestRevokeUnknownReturnsNotFound() {
	err := s.store.Revoke(context.Background(), id.SessionID(uuid.New()), time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
