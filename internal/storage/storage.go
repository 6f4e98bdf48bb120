package storage

import (
	"context"
	"errors"

	"github.com/xaenox/support-bot/internal/models"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

type Storage interface {
	// GetUserByTelegramID returns ErrNotFound for an unseen identity.
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	IncrementRequestCount(ctx context.Context, userID int64) error
	SetUserBlocked(ctx context.Context, userID int64, blocked bool) error
	ListUsers(ctx context.Context) ([]*models.User, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	// GetRecentMessages returns the newest limit messages for the user in
	// chronological order (oldest first).
	GetRecentMessages(ctx context.Context, userID int64, limit int) ([]*models.Message, error)
	ClearMessages(ctx context.Context, userID int64) error

	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	ListTickets(ctx context.Context) ([]*models.Ticket, error)
	ListUserTickets(ctx context.Context, userID int64) ([]*models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id int64, status models.TicketStatus) error

	// ListFaqs returns the full corpus ordered by id.
	ListFaqs(ctx context.Context) ([]*models.FaqEntry, error)
	AddFaq(ctx context.Context, faq *models.FaqEntry) error
	UpdateFaq(ctx context.Context, faq *models.FaqEntry) error
	DeleteFaq(ctx context.Context, id int64) (bool, error)

	GetStats(ctx context.Context) (*models.Stats, error)

	Close() error
}
