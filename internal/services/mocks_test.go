package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"github.com/inboxwrap/inboxwrap-backend/internal/postmark"
	"github.com/inboxwrap/inboxwrap-backend/internal/provider"
	"github.com/inboxwrap/inboxwrap-backend/internal/repository"
	"github.com/inboxwrap/inboxwrap-backend/internal/summarizer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockAccountRepo is an in-memory AccountRepository for service tests.
type mockAccountRepo struct {
	mu sync.Mutex

	due        []models.ConnectedAccount
	dueErr     error
	byUser     map[string][]models.ConnectedAccount
	denyLock   bool
	lockedIDs  []string
	tokens     map[string]provider.TokenSet
	fetchedIDs []string
}

var _ repository.AccountRepository = (*mockAccountRepo)(nil)

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{
		byUser: make(map[string][]models.ConnectedAccount),
		tokens: make(map[string]provider.TokenSet),
	}
}

func (m *mockAccountRepo) Create(ctx context.Context, account *models.ConnectedAccount) error {
	return nil
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string) (*models.ConnectedAccount, error) {
	return nil, repository.ErrNotFound
}

func (m *mockAccountRepo) ExistsByProviderUserID(ctx context.Context, providerUserID string) (bool, error) {
	return false, nil
}

func (m *mockAccountRepo) ListByUser(ctx context.Context, userID string) ([]models.ConnectedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byUser[userID], nil
}

func (m *mockAccountRepo) GetDueForFetch(ctx context.Context, now time.Time) ([]models.ConnectedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.due, m.dueErr
}

func (m *mockAccountRepo) TryAcquireFetchLock(ctx context.Context, id string, now, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denyLock {
		return false, nil
	}
	m.lockedIDs = append(m.lockedIDs, id)
	return true, nil
}

func (m *mockAccountRepo) ReleaseFetchLock(ctx context.Context, id string) error {
	return nil
}

func (m *mockAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[id] = provider.TokenSet{AccessToken: accessToken, RefreshToken: refreshToken}
	return nil
}

func (m *mockAccountRepo) UpdateLastFetchedAt(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchedIDs = append(m.fetchedIDs, id)
	return nil
}

func (m *mockAccountRepo) SetRevoked(ctx context.Context, id string, revoked bool) error {
	return nil
}

// mockUserRepo is an in-memory UserRepository for dispatcher tests.
type mockUserRepo struct {
	mu sync.Mutex

	due          []models.User
	nextDelivery map[string]*time.Time
	rescheduled  []string
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{nextDelivery: make(map[string]*time.Time)}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error { return nil }

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) GetDueForDigest(ctx context.Context, now time.Time) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.due, nil
}

func (m *mockUserRepo) UpdateNextDelivery(ctx context.Context, id string, next *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDelivery[id] = next
	m.rescheduled = append(m.rescheduled, id)
	return nil
}

func (m *mockUserRepo) UpdatePreferences(ctx context.Context, id string, prefs models.UserPreferences) error {
	return nil
}

// mockSummaryRepo is an in-memory SummaryRepository.
type mockSummaryRepo struct {
	mu sync.Mutex

	created   []*models.Summary
	createErr error
	pending   map[string][]models.Summary
	updated   []models.Summary
}

var _ repository.SummaryRepository = (*mockSummaryRepo)(nil)

func newMockSummaryRepo() *mockSummaryRepo {
	return &mockSummaryRepo{pending: make(map[string][]models.Summary)}
}

func (m *mockSummaryRepo) Create(ctx context.Context, summary *models.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, summary)
	return nil
}

func (m *mockSummaryRepo) GetByID(ctx context.Context, id string) (*models.Summary, error) {
	return nil, repository.ErrNotFound
}

func (m *mockSummaryRepo) ListByUser(ctx context.Context, userID string) ([]models.Summary, error) {
	return nil, nil
}

func (m *mockSummaryRepo) ListPendingByAccount(ctx context.Context, accountID string) ([]models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[accountID], nil
}

func (m *mockSummaryRepo) UpdateDelivery(ctx context.Context, summary *models.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, *summary)
	return nil
}

func (m *mockSummaryRepo) createdSummaries() []*models.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*models.Summary, len(m.created))
	copy(result, m.created)
	return result
}

// mockProvider is a scripted MailProvider.
type mockProvider struct {
	mu sync.Mutex

	name       string
	refreshed  *provider.TokenSet
	refreshErr error
	mails      []models.Mail
	listErr    error

	refreshCalls int
	listTokens   []string
	listSince    []time.Time
}

var _ provider.MailProvider = (*mockProvider)(nil)

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) RefreshCredential(ctx context.Context, refreshToken string) (*provider.TokenSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.refreshed, nil
}

func (m *mockProvider) ListUnreadSince(ctx context.Context, accessToken string, since time.Time) ([]models.Mail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listTokens = append(m.listTokens, accessToken)
	m.listSince = append(m.listSince, since)
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.mails, nil
}

// mockMailer records template sends and returns a scripted response.
type mockMailer struct {
	mu sync.Mutex

	resp     *postmark.Response
	err      error
	requests []postmark.TemplateRequest
}

func (m *mockMailer) SendTemplate(ctx context.Context, req postmark.TemplateRequest) (*postmark.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockMailer) sentRequests() []postmark.TemplateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]postmark.TemplateRequest, len(m.requests))
	copy(result, m.requests)
	return result
}

// mockSummarizer returns a scripted classification result.
type mockSummarizer struct {
	mu sync.Mutex

	result *summarizer.Result
	err    error
	calls  int
}

func (m *mockSummarizer) Summarize(ctx context.Context, subject, body string) (*summarizer.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockSummarizer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
