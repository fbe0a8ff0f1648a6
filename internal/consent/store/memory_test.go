package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"covenant/internal/consent/models"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store     *InMemoryStore
	principal id.PrincipalID
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.principal = id.PrincipalID(uuid.New())
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) newRecord(purpose id.PurposeID) *models.ConsentRecord {
	return &models.ConsentRecord{
		ID:          id.ConsentID(uuid.New()),
		PrincipalID: s.principal,
		PurposeID:   purpose,
		Status:      models.StatusDenied,
		ValidUntil:  time.Now().Add(365 * 24 * time.Hour),
		LastUpdated: time.Now(),
	}
}

func (s *InMemoryStoreSuite) TestSaveAndGet() {
	record := s.newRecord("analytics")

	require.NoError(s.T(), s.store.Save(context.Background(), record, 0))
	assert.Equal(s.T(), int64(1), record.Version, "save reports the stored version back")

	found, err := s.store.Get(context.Background(), s.principal, "analytics")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), record, found)
}

func (s *InMemoryStoreSuite) TestGetNotFound() {
	_, err := s.store.Get(context.Background(), s.principal, "analytics")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestStaleVersionConflicts() {
	record := s.newRecord("analytics")
	require.NoError(s.T(), s.store.Save(context.Background(), record, 0))

	stale := record.Clone()
	stale.Status = models.StatusGranted

	// First writer wins.
	require.NoError(s.T(), s.store.Save(context.Background(), record.Clone(), 1))

	err := s.store.Save(context.Background(), stale, 1)
	assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestCreateOverExistingConflicts() {
	record := s.newRecord("analytics")
	require.NoError(s.T(), s.store.Save(context.Background(), record, 0))

	err := s.store.Save(context.Background(), s.newRecord("analytics"), 0)
	assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestGetReturnsCopy() {
	record := s.newRecord("analytics")
	require.NoError(s.T(), s.store.Save(context.Background(), record, 0))

	found, err := s.store.Get(context.Background(), s.principal, "analytics")
	require.NoError(s.T(), err)
	found.Status = models.StatusWithdrawn

	again, err := s.store.Get(context.Background(), s.principal, "analytics")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusDenied, again.Status)
}

func (s *InMemoryStoreSuite) TestReplaceAllResetsSet() {
	require.NoError(s.T(), s.store.Save(context.Background(), s.newRecord("analytics"), 0))
	require.NoError(s.T(), s.store.Save(context.Background(), s.newRecord("marketing_email"), 0))

	fresh := []*models.ConsentRecord{s.newRecord("personalization")}
	require.NoError(s.T(), s.store.ReplaceAll(context.Background(), s.principal, fresh))

	records, err := s.store.ListByPrincipal(context.Background(), s.principal)
	require.NoError(s.T(), err)
	require.Len(s.T(), records, 1)
	assert.Equal(s.T(), id.PurposeID("personalization"), records[0].PurposeID)
	assert.Equal(s.T(), int64(1), records[0].Version)
}

func (s *InMemoryStoreSuite) TestListIsSortedByPurpose() {
	for _, p := range []id.PurposeID{"personalization", "analytics", "marketing_email"} {
		require.NoError(s.T(), s.store.Save(context.Background(), s.newRecord(p), 0))
	}

	records, err := s.store.ListByPrincipal(context.Background(), s.principal)
	require.NoError(s.T(), err)
	require.Len(s.T(), records, 3)
	assert.Equal(s.T(), id.PurposeID("analytics"), records[0].PurposeID)
	assert.Equal(s.T(), id.PurposeID("marketing_email"), records[1].PurposeID)
	assert.Equal(s.T(), id.PurposeID("personalization"), records[2].PurposeID)
}

func TestConcurrentCASOnlyOneWinner(t *testing.T) {
	store := NewInMemoryStore()
	principal := id.PrincipalID(uuid.New())
	record := &models.ConsentRecord{
		ID:          id.ConsentID(uuid.New()),
		PrincipalID: principal,
		PurposeID:   "analytics",
		Status:      models.StatusDenied,
	}
	require.NoError(t, store.Save(context.Background(), record, 0))

	const writers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			update := record.Clone()
			update.Status = models.StatusGranted
			if err := store.Save(context.Background(), update, 1); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var won int
	for range wins {
		won++
	}
	assert.Equal(t, 1, won, "exactly one concurrent CAS write may succeed")
}
