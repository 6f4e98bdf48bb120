package processor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/support-bot/internal/escalation"
	"github.com/xaenox/support-bot/internal/faq"
	"github.com/xaenox/support-bot/internal/filter"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/ratelimit"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

type stubAssistant struct {
	answer  string
	err     error
	calls   int
	history []*models.Message
}

func (s *stubAssistant) Answer(ctx context.Context, history []*models.Message, question string) (string, error) {
	s.calls++
	s.history = history
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func newTestProcessor(store storage.Storage, llm Assistant) *Processor {
	logger := zap.NewNop()
	return New(
		store,
		ratelimit.New(ratelimit.DefaultConfig(), store, logger),
		filter.New(logger),
		faq.NewMatcher(store, logger),
		llm,
		escalation.NewDecider(store, logger),
		5,
		logger,
	)
}

func inbound(text string) Inbound {
	return Inbound{TelegramID: 100, Username: "alex", FirstName: "Alex", Text: text}
}

func TestProcess_RegistersUserOnFirstContact(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := newTestProcessor(store, &stubAssistant{answer: "Hello!"})
	ctx := context.Background()

	reply := p.Process(ctx, inbound("hello"))
	assert.Equal(t, OutcomeModelAnswered, reply.Outcome)

	user, err := store.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alex", user.Username)
	assert.Equal(t, 1, user.RequestCount)
}

func TestProcess_BlockedUserShortCircuits(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	user := &models.User{TelegramID: 100}
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.SetUserBlocked(ctx, user.ID, true))

	// A FAQ entry that would match if the pipeline got that far.
	require.NoError(t, store.AddFaq(ctx, &models.FaqEntry{Question: "hello", Answer: "hi"}))

	llm := &stubAssistant{answer: "should not be called"}
	p := newTestProcessor(store, llm)

	reply := p.Process(ctx, inbound("hello"))

	assert.Equal(t, OutcomeRateLimited, reply.Outcome)
	assert.Equal(t, rateLimitNotice, reply.Text)
	assert.Zero(t, llm.calls, "model must not be reached")

	messages, err := store.GetRecentMessages(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, messages, "nothing is persisted for a rejected message")
}

func TestProcess_ProhibitedContentRejectedWithoutPersistence(t *testing.T) {
	store := storage.NewMemoryStorage()
	llm := &stubAssistant{answer: "unused"}
	p := newTestProcessor(store, llm)
	ctx := context.Background()

	reply := p.Process(ctx, inbound("buy now, free money for everyone"))

	assert.Equal(t, OutcomePolicyRejected, reply.Outcome)
	assert.Equal(t, policyNotice, reply.Text)
	assert.Zero(t, llm.calls)

	user, err := store.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	messages, err := store.GetRecentMessages(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestProcess_FAQHitSkipsModelAndPersistsExchange(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, store.AddFaq(ctx, &models.FaqEntry{
		Question: "How do I reset my password?",
		Answer:   "Use the reset link.",
		Keywords: "reset,password",
	}))

	llm := &stubAssistant{answer: "unused"}
	p := newTestProcessor(store, llm)

	reply := p.Process(ctx, inbound("how do i reset my password?"))

	assert.Equal(t, OutcomeFAQAnswered, reply.Outcome)
	assert.Equal(t, "Use the reset link.", reply.Text)
	assert.Zero(t, llm.calls)

	user, err := store.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	messages, err := store.GetRecentMessages(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "how do i reset my password?", messages[0].Text)
	assert.False(t, messages[0].FromBot)
	assert.Equal(t, "Use the reset link.", messages[1].Text)
	assert.True(t, messages[1].FromBot)
}

func TestProcess_ModelPathFeedsHistoryInOrder(t *testing.T) {
	store := storage.NewMemoryStorage()
	llm := &stubAssistant{answer: "The answer."}
	p := newTestProcessor(store, llm)
	ctx := context.Background()

	p.Process(ctx, inbound("first question"))
	reply := p.Process(ctx, inbound("second question"))

	assert.Equal(t, OutcomeModelAnswered, reply.Outcome)
	assert.Equal(t, "The answer.", reply.Text)
	assert.Equal(t, 2, llm.calls)

	// The second call sees the first exchange, oldest first.
	require.Len(t, llm.history, 2)
	assert.Equal(t, "first question", llm.history[0].Text)
	assert.False(t, llm.history[0].FromBot)
	assert.Equal(t, "The answer.", llm.history[1].Text)
	assert.True(t, llm.history[1].FromBot)
}

func TestProcess_UncertainAnswerEscalates(t *testing.T) {
	store := storage.NewMemoryStorage()
	llm := &stubAssistant{answer: "This question requires a support specialist."}
	p := newTestProcessor(store, llm)
	ctx := context.Background()

	question := "how do I migrate my legacy account?"
	reply := p.Process(ctx, inbound(question))

	assert.Equal(t, OutcomeModelAnswered, reply.Outcome)

	user, err := store.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	tickets, err := store.ListUserTickets(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, models.TicketStatusNew, tickets[0].Status)
	assert.Equal(t, question, tickets[0].Description)
	assert.Contains(t, reply.Text, fmt.Sprintf("#%d", tickets[0].ID))

	// The augmented reply is what gets persisted.
	messages, err := store.GetRecentMessages(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, reply.Text, messages[1].Text)
}

func TestProcess_ModelFailureYieldsGenericNotice(t *testing.T) {
	store := storage.NewMemoryStorage()
	llm := &stubAssistant{err: errors.New("upstream timeout")}
	p := newTestProcessor(store, llm)
	ctx := context.Background()

	reply := p.Process(ctx, inbound("hello"))

	assert.Equal(t, OutcomeFailed, reply.Outcome)
	assert.Equal(t, failureNotice, reply.Text)
	assert.NotContains(t, reply.Text, "upstream timeout")

	user, err := store.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	messages, err := store.GetRecentMessages(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, messages, "a failed exchange is not persisted")
}

type saveFailingStorage struct {
	*storage.MemoryStorage
}

func (s *saveFailingStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	return errors.New("connection refused")
}

func TestProcess_ExchangePersistenceFailureYieldsGenericNotice(t *testing.T) {
	mem := storage.NewMemoryStorage()
	llm := &stubAssistant{answer: "The answer."}
	p := newTestProcessor(&saveFailingStorage{MemoryStorage: mem}, llm)

	reply := p.Process(context.Background(), inbound("hello"))

	assert.Equal(t, OutcomeFailed, reply.Outcome)
	assert.Equal(t, failureNotice, reply.Text)
}
