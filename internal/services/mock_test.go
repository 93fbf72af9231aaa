package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"ticketer/internal/models"
)

// Mock implementations for testing

type mockTicketRepository struct {
	mu            sync.Mutex
	tickets       map[string]*models.Ticket
	shouldFailOps map[string]bool
	casConflict   bool // CompareAndSetRedemption reports a lost race
	casCalls      int
	lastExpected  models.RedemptionState
}

func newMockTicketRepository() *mockTicketRepository {
	return &mockTicketRepository{
		tickets:       make(map[string]*models.Ticket),
		shouldFailOps: make(map[string]bool),
	}
}

func (m *mockTicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailOps["Create"] {
		return errors.New("mock error")
	}
	if _, exists := m.tickets[ticket.EntryCode]; exists {
		return models.ErrDuplicateEntry
	}

	stored := *ticket
	m.tickets[ticket.EntryCode] = &stored
	return nil
}

func (m *mockTicketRepository) GetByEntryCode(ctx context.Context, code string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailOps["GetByEntryCode"] {
		return nil, errors.New("mock error")
	}

	ticket, exists := m.tickets[code]
	if !exists {
		return nil, models.ErrTicketNotFound
	}

	result := *ticket
	return &result, nil
}

func (m *mockTicketRepository) CompareAndSetRedemption(ctx context.Context, code string, expected, next models.RedemptionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.casCalls++
	m.lastExpected = expected
	if m.shouldFailOps["CompareAndSetRedemption"] {
		return errors.New("mock error")
	}

	ticket, exists := m.tickets[code]
	if !exists {
		return models.ErrTicketNotFound
	}
	if m.casConflict || ticket.Used != expected.Used {
		return models.ErrPreconditionFailed
	}

	ticket.Apply(next)
	return nil
}

func (m *mockTicketRepository) List(ctx context.Context) ([]*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailOps["List"] {
		return nil, errors.New("mock error")
	}

	var tickets []*models.Ticket
	for _, ticket := range m.tickets {
		result := *ticket
		tickets = append(tickets, &result)
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].PurchasedAt.Before(tickets[j].PurchasedAt)
	})
	return tickets, nil
}

func (m *mockTicketRepository) put(ticket *models.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *ticket
	m.tickets[ticket.EntryCode] = &stored
}

type mockUserRepository struct {
	mu            sync.Mutex
	users         map[string]*models.User
	shouldFailOps map[string]bool
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:         make(map[string]*models.User),
		shouldFailOps: make(map[string]bool),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailOps["Create"] {
		return errors.New("mock error")
	}
	if _, exists := m.users[user.Username]; exists {
		return models.ErrDuplicateEntry
	}

	stored := *user
	m.users[user.Username] = &stored
	return nil
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailOps["GetByUsername"] {
		return nil, errors.New("mock error")
	}

	user, exists := m.users[username]
	if !exists {
		return nil, models.ErrUserNotFound
	}

	result := *user
	return &result, nil
}

func (m *mockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailOps["List"] {
		return nil, errors.New("mock error")
	}

	var users []*models.User
	for _, user := range m.users {
		result := *user
		users = append(users, &result)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []EmailMessage
	err      error
}

func (m *recordingMailer) Send(ctx context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *recordingMailer) sent() []EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmailMessage(nil), m.messages...)
}

type memoryStorage struct {
	mu        sync.Mutex
	files     map[string][]byte
	uploadErr error
	deleteErr error
	deleted   []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string][]byte)}
}

func (s *memoryStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uploadErr != nil {
		return "", s.uploadErr
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", err
	}
	s.files[key] = buf.Bytes()
	return s.GetURL(key), nil
}

func (s *memoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted = append(s.deleted, key)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.files, key)
	return nil
}

func (s *memoryStorage) GetURL(key string) string {
	return "https://cdn.test/" + key
}

func (s *memoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[key]
	return ok, nil
}

type stubIssuer struct {
	issued []string
	err    error
}

func (s *stubIssuer) IssueCredential(userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.issued = append(s.issued, userID)
	return "token-" + userID, nil
}

func (s *stubIssuer) VerifyCredential(token string) (string, error) {
	const prefix = "token-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", models.ErrInvalidCredential
	}
	return token[len(prefix):], nil
}
