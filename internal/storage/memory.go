package storage

import (
	"context"
	"sync"
	"time"

	"github.com/xaenox/support-bot/internal/models"
)

// MemoryStorage keeps everything in process memory. Used for local runs
// without a database and as the storage in tests.
type MemoryStorage struct {
	mu         sync.RWMutex
	users      map[int64]*models.User
	messages   map[int64][]*models.Message
	tickets    map[int64]*models.Ticket
	faqs       map[int64]*models.FaqEntry
	nextUserID int64
	nextTicket int64
	nextFaqID  int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:      make(map[int64]*models.User),
		messages:   make(map[int64][]*models.Message),
		tickets:    make(map[int64]*models.Ticket),
		faqs:       make(map[int64]*models.FaqEntry),
		nextUserID: 1,
		nextTicket: 1,
		nextFaqID:  1,
	}
}

func (s *MemoryStorage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.TelegramID == telegramID {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = s.nextUserID
	s.nextUserID++
	user.CreatedAt = time.Now()

	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *MemoryStorage) IncrementRequestCount(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return ErrNotFound
	}
	user.RequestCount++
	return nil
}

func (s *MemoryStorage) SetUserBlocked(ctx context.Context, userID int64, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return ErrNotFound
	}
	user.IsBlocked = blocked
	return nil
}

func (s *MemoryStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		clone := *user
		users = append(users, &clone)
	}
	return users, nil
}

func (s *MemoryStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	clone := *msg
	s.messages[msg.UserID] = append(s.messages[msg.UserID], &clone)
	return nil
}

func (s *MemoryStorage) GetRecentMessages(ctx context.Context, userID int64, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[userID]
	start := len(history) - limit
	if start < 0 {
		start = 0
	}

	messages := make([]*models.Message, 0, len(history)-start)
	for _, msg := range history[start:] {
		clone := *msg
		messages = append(messages, &clone)
	}
	return messages, nil
}

func (s *MemoryStorage) ClearMessages(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, userID)
	return nil
}

func (s *MemoryStorage) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket.ID = s.nextTicket
	s.nextTicket++
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	clone := *ticket
	s.tickets[ticket.ID] = &clone
	return nil
}

func (s *MemoryStorage) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, exists := s.tickets[id]
	if !exists {
		return nil, ErrNotFound
	}
	clone := *ticket
	return &clone, nil
}

func (s *MemoryStorage) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := make([]*models.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		clone := *ticket
		tickets = append(tickets, &clone)
	}
	return tickets, nil
}

func (s *MemoryStorage) ListUserTickets(ctx context.Context, userID int64) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tickets []*models.Ticket
	for _, ticket := range s.tickets {
		if ticket.UserID == userID {
			clone := *ticket
			tickets = append(tickets, &clone)
		}
	}
	return tickets, nil
}

func (s *MemoryStorage) UpdateTicketStatus(ctx context.Context, id int64, status models.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, exists := s.tickets[id]
	if !exists {
		return ErrNotFound
	}
	ticket.Status = status
	ticket.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) ListFaqs(ctx context.Context) ([]*models.FaqEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	faqs := make([]*models.FaqEntry, 0, len(s.faqs))
	for id := int64(1); id < s.nextFaqID; id++ {
		if faq, exists := s.faqs[id]; exists {
			clone := *faq
			faqs = append(faqs, &clone)
		}
	}
	return faqs, nil
}

func (s *MemoryStorage) AddFaq(ctx context.Context, faq *models.FaqEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	faq.ID = s.nextFaqID
	s.nextFaqID++
	now := time.Now()
	faq.CreatedAt = now
	faq.UpdatedAt = now

	clone := *faq
	s.faqs[faq.ID] = &clone
	return nil
}

func (s *MemoryStorage) UpdateFaq(ctx context.Context, faq *models.FaqEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.faqs[faq.ID]
	if !exists {
		return ErrNotFound
	}
	existing.Question = faq.Question
	existing.Answer = faq.Answer
	existing.Keywords = faq.Keywords
	existing.Category = faq.Category
	existing.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) DeleteFaq(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.faqs[id]; !exists {
		return false, nil
	}
	delete(s.faqs, id)
	return true, nil
}

func (s *MemoryStorage) GetStats(ctx context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.Stats{
		Users: len(s.users),
		Faqs:  len(s.faqs),
	}
	for _, user := range s.users {
		stats.TotalRequests += user.RequestCount
	}
	for _, history := range s.messages {
		stats.Messages += len(history)
		for _, msg := range history {
			if stats.LastActivity == nil || msg.CreatedAt.After(*stats.LastActivity) {
				t := msg.CreatedAt
				stats.LastActivity = &t
			}
		}
	}
	for _, ticket := range s.tickets {
		stats.TicketsTotal++
		switch ticket.Status {
		case models.TicketStatusNew:
			stats.TicketsNew++
		case models.TicketStatusInProgress:
			stats.TicketsInProgress++
		case models.TicketStatusResolved:
			stats.TicketsResolved++
		case models.TicketStatusClosed:
			stats.TicketsClosed++
		}
	}
	return stats, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
