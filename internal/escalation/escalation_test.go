package escalation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

func newTestUser(t *testing.T, store *storage.MemoryStorage) *models.User {
	t.Helper()
	user := &models.User{TelegramID: 100}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestReview_UncertainAnswerOpensTicket(t *testing.T) {
	store := storage.NewMemoryStorage()
	user := newTestUser(t, store)
	d := NewDecider(store, zap.NewNop())
	ctx := context.Background()

	question := "how do I migrate my legacy account?"
	answer := "Unfortunately this question requires a support specialist."

	reply := d.Review(ctx, user, question, answer)

	tickets, err := store.ListUserTickets(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	ticket := tickets[0]
	assert.Equal(t, models.TicketStatusNew, ticket.Status)
	assert.Equal(t, models.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, question, ticket.Description)

	assert.Contains(t, reply, answer)
	assert.Contains(t, reply, fmt.Sprintf("#%d", ticket.ID))
}

func TestReview_ConfidentAnswerPassesThrough(t *testing.T) {
	store := storage.NewMemoryStorage()
	user := newTestUser(t, store)
	d := NewDecider(store, zap.NewNop())
	ctx := context.Background()

	answer := "Go to settings and enable two-factor authentication."
	reply := d.Review(ctx, user, "how do I enable 2fa?", answer)

	assert.Equal(t, answer, reply)

	tickets, err := store.ListUserTickets(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

type ticketFailingStorage struct {
	*storage.MemoryStorage
}

func (s *ticketFailingStorage) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return errors.New("connection refused")
}

func TestReview_TicketFailureKeepsAnswer(t *testing.T) {
	mem := storage.NewMemoryStorage()
	user := newTestUser(t, mem)
	d := NewDecider(&ticketFailingStorage{MemoryStorage: mem}, zap.NewNop())

	answer := "I don't know the answer to that."
	reply := d.Review(context.Background(), user, "question", answer)

	// The computed answer survives, without the ticket notice.
	assert.Equal(t, answer, reply)
}

func TestReview_CustomMarkers(t *testing.T) {
	store := storage.NewMemoryStorage()
	user := newTestUser(t, store)
	d := NewDeciderWithMarkers(store, []string{"no idea"}, zap.NewNop())
	ctx := context.Background()

	reply := d.Review(ctx, user, "question", "I have no idea, sorry.")
	tickets, err := store.ListUserTickets(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
	assert.NotEqual(t, "I have no idea, sorry.", reply)
}
