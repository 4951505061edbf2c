package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
)

// AccountRepositoryTestSuite is the test suite for AccountRepository
type AccountRepositoryTestSuite struct {
	suite.Suite
	db    *gorm.DB
	repo  AccountRepository
	users UserRepository
}

// SetupSuite runs once before all tests
func (s *AccountRepositoryTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	err = db.AutoMigrate(&models.User{}, &models.ConnectedAccount{}, &models.Summary{})
	require.NoError(s.T(), err)

	s.db = db
	s.repo = NewAccountRepository(db)
	s.users = NewUserRepository(db)
}

// TearDownSuite runs once after all tests
func (s *AccountRepositoryTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test - clean up data
func (s *AccountRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM summaries")
	s.db.Exec("DELETE FROM connected_accounts")
	s.db.Exec("DELETE FROM users")
}

// TestAccountRepositoryTestSuite runs the test suite
func TestAccountRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(AccountRepositoryTestSuite))
}

func (s *AccountRepositoryTestSuite) createAccount(providerUserID string) *models.ConnectedAccount {
	user := &models.User{Email: providerUserID + "@example.com"}
	require.NoError(s.T(), s.users.Create(context.Background(), user))

	account := &models.ConnectedAccount{
		UserID:               user.ID,
		Provider:             models.ProviderMicrosoft,
		ProviderUserID:       providerUserID,
		Email:                providerUserID + "@outlook.com",
		AccessToken:          "access",
		RefreshToken:         "refresh",
		AccessTokenExpiryUTC: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(s.T(), s.repo.Create(context.Background(), account))
	return account
}

func (s *AccountRepositoryTestSuite) TestCreate_AssignsID() {
	account := s.createAccount("sub-1")

	assert.NotEmpty(s.T(), account.ID)
	assert.False(s.T(), account.IsRevoked)
}

func (s *AccountRepositoryTestSuite) TestExistsByProviderUserID() {
	s.createAccount("sub-1")

	exists, err := s.repo.ExistsByProviderUserID(context.Background(), "sub-1")
	require.NoError(s.T(), err)
	assert.True(s.T(), exists)

	exists, err = s.repo.ExistsByProviderUserID(context.Background(), "sub-2")
	require.NoError(s.T(), err)
	assert.False(s.T(), exists)
}

func (s *AccountRepositoryTestSuite) TestGetDueForFetch_SkipsLockedAndRevoked() {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	unlocked := s.createAccount("sub-unlocked")

	expired := s.createAccount("sub-expired-lock")
	past := now.Add(-time.Minute)
	s.db.Model(&models.ConnectedAccount{}).Where("id = ?", expired.ID).
		Update("fetch_lock_until_utc", past)

	locked := s.createAccount("sub-locked")
	future := now.Add(4 * time.Minute)
	s.db.Model(&models.ConnectedAccount{}).Where("id = ?", locked.ID).
		Update("fetch_lock_until_utc", future)

	revoked := s.createAccount("sub-revoked")
	require.NoError(s.T(), s.repo.SetRevoked(context.Background(), revoked.ID, true))

	due, err := s.repo.GetDueForFetch(context.Background(), now)
	require.NoError(s.T(), err)

	ids := make([]string, 0, len(due))
	for _, a := range due {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(s.T(), []string{unlocked.ID, expired.ID}, ids)
}

func (s *AccountRepositoryTestSuite) TestTryAcquireFetchLock_WinsOnce() {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(5 * time.Minute)

	account := s.createAccount("sub-1")

	acquired, err := s.repo.TryAcquireFetchLock(context.Background(), account.ID, now, until)
	require.NoError(s.T(), err)
	assert.True(s.T(), acquired)

	// A second pass at the same instant loses.
	acquired, err = s.repo.TryAcquireFetchLock(context.Background(), account.ID, now, until)
	require.NoError(s.T(), err)
	assert.False(s.T(), acquired)

	// Once the lock elapses it can be won again.
	later := until.Add(time.Second)
	acquired, err = s.repo.TryAcquireFetchLock(context.Background(), account.ID, later, later.Add(5*time.Minute))
	require.NoError(s.T(), err)
	assert.True(s.T(), acquired)
}

func (s *AccountRepositoryTestSuite) TestReleaseFetchLock() {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	account := s.createAccount("sub-1")

	acquired, err := s.repo.TryAcquireFetchLock(context.Background(), account.ID, now, now.Add(5*time.Minute))
	require.NoError(s.T(), err)
	require.True(s.T(), acquired)

	require.NoError(s.T(), s.repo.ReleaseFetchLock(context.Background(), account.ID))

	// Lock is gone, the account can be won again immediately.
	acquired, err = s.repo.TryAcquireFetchLock(context.Background(), account.ID, now, now.Add(5*time.Minute))
	require.NoError(s.T(), err)
	assert.True(s.T(), acquired)
}

func (s *AccountRepositoryTestSuite) TestUpdateTokens_PersistsPairAndExpiry() {
	account := s.createAccount("sub-1")
	expiry := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)

	err := s.repo.UpdateTokens(context.Background(), account.ID, "access-new", "refresh-new", expiry)
	require.NoError(s.T(), err)

	found, err := s.repo.GetByID(context.Background(), account.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "access-new", found.AccessToken)
	assert.Equal(s.T(), "refresh-new", found.RefreshToken)
	assert.True(s.T(), expiry.Equal(found.AccessTokenExpiryUTC))
}

func (s *AccountRepositoryTestSuite) TestUpdateLastFetchedAt() {
	account := s.createAccount("sub-1")
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(s.T(), s.repo.UpdateLastFetchedAt(context.Background(), account.ID, at))

	found, err := s.repo.GetByID(context.Background(), account.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), found.LastFetchedAtUTC)
	assert.True(s.T(), at.Equal(*found.LastFetchedAtUTC))
}

func (s *AccountRepositoryTestSuite) TestListByUser_ReturnsOnlyOwnAccounts() {
	first := s.createAccount("sub-1")
	s.createAccount("sub-2")

	accounts, err := s.repo.ListByUser(context.Background(), first.UserID)
	require.NoError(s.T(), err)
	require.Len(s.T(), accounts, 1)
	assert.Equal(s.T(), first.ID, accounts[0].ID)
}

func (s *AccountRepositoryTestSuite) TestUpdate_UnknownAccount() {
	err := s.repo.UpdateLastFetchedAt(context.Background(), "00000000-0000-0000-0000-000000000000", time.Now())
	assert.ErrorIs(s.T(), err, ErrNotFound)
}
