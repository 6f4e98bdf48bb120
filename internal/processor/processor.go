package processor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/xaenox/support-bot/internal/escalation"
	"github.com/xaenox/support-bot/internal/faq"
	"github.com/xaenox/support-bot/internal/filter"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/ratelimit"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// Inbound is one user message after transport normalization. Voice input is
// transcribed to Text before it reaches the processor.
type Inbound struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	Text       string
}

// Outcome is the terminal state of one message resolution.
type Outcome int

const (
	OutcomeRateLimited Outcome = iota
	OutcomePolicyRejected
	OutcomeFAQAnswered
	OutcomeModelAnswered
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomePolicyRejected:
		return "policy_rejected"
	case OutcomeFAQAnswered:
		return "faq_answered"
	case OutcomeModelAnswered:
		return "model_answered"
	default:
		return "failed"
	}
}

type Reply struct {
	Text    string
	Outcome Outcome
}

const (
	rateLimitNotice = "You are sending too many messages. Please wait a little while."
	policyNotice    = "Your message contains prohibited content. Please follow the communication rules."
	failureNotice   = "Sorry, a technical error occurred while processing your request. Please try again later."
)

// Processor resolves one inbound message into one outbound reply. Every
// internal error is converted to a single user-facing notice here; nothing
// propagates to the transport as an error.
type Processor struct {
	store        storage.Storage
	limiter      *ratelimit.Limiter
	filter       *filter.Filter
	matcher      *faq.Matcher
	assistant    Assistant
	decider      *escalation.Decider
	contextLimit int
	logger       *zap.Logger
}

// Assistant is the language-model collaborator. Mirrors
// assistant.Assistant; declared here so the processor can be tested with a
// stub without importing the OpenAI client.
type Assistant interface {
	Answer(ctx context.Context, history []*models.Message, question string) (string, error)
}

func New(
	store storage.Storage,
	limiter *ratelimit.Limiter,
	contentFilter *filter.Filter,
	matcher *faq.Matcher,
	llm Assistant,
	decider *escalation.Decider,
	contextLimit int,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		store:        store,
		limiter:      limiter,
		filter:       contentFilter,
		matcher:      matcher,
		assistant:    llm,
		decider:      decider,
		contextLimit: contextLimit,
		logger:       logger,
	}
}

// Process runs the resolution pipeline: rate limiter, content filter, FAQ
// lookup, then the model path with escalation review. Rejections happen
// before anything is persisted; accepted exchanges persist both sides in
// conversational order.
func (p *Processor) Process(ctx context.Context, in Inbound) Reply {
	user, err := p.ensureUser(ctx, in)
	if err != nil {
		p.logger.Error("Failed to resolve user",
			zap.Error(err),
			zap.Int64("telegram_id", in.TelegramID))
		return Reply{Text: failureNotice, Outcome: OutcomeFailed}
	}

	if p.limiter.Exceeded(ctx, in.TelegramID) {
		return Reply{Text: rateLimitNotice, Outcome: OutcomeRateLimited}
	}

	if err := p.store.IncrementRequestCount(ctx, user.ID); err != nil {
		p.logger.Error("Failed to increment request count",
			zap.Error(err),
			zap.Int64("user_id", user.ID))
	}

	if p.filter.IsProhibited(in.Text) {
		return Reply{Text: policyNotice, Outcome: OutcomePolicyRejected}
	}

	if answer, ok := p.matcher.FindAnswer(ctx, in.Text); ok {
		p.logger.Info("FAQ answer found", zap.Int64("user_id", user.ID))
		if err := p.persistExchange(ctx, user.ID, in.Text, answer); err != nil {
			p.logger.Error("Failed to save exchange",
				zap.Error(err),
				zap.Int64("user_id", user.ID))
			return Reply{Text: failureNotice, Outcome: OutcomeFailed}
		}
		return Reply{Text: answer, Outcome: OutcomeFAQAnswered}
	}

	history, err := p.store.GetRecentMessages(ctx, user.ID, p.contextLimit)
	if err != nil {
		p.logger.Error("Failed to load conversation history",
			zap.Error(err),
			zap.Int64("user_id", user.ID))
		return Reply{Text: failureNotice, Outcome: OutcomeFailed}
	}

	answer, err := p.assistant.Answer(ctx, history, in.Text)
	if err != nil {
		p.logger.Error("Failed to get model answer",
			zap.Error(err),
			zap.Int64("user_id", user.ID))
		return Reply{Text: failureNotice, Outcome: OutcomeFailed}
	}

	reply := p.decider.Review(ctx, user, in.Text, answer)

	if err := p.persistExchange(ctx, user.ID, in.Text, reply); err != nil {
		p.logger.Error("Failed to save exchange",
			zap.Error(err),
			zap.Int64("user_id", user.ID))
		return Reply{Text: failureNotice, Outcome: OutcomeFailed}
	}

	return Reply{Text: reply, Outcome: OutcomeModelAnswered}
}

// ensureUser returns the persisted user for the identity, creating one on
// first contact.
func (p *Processor) ensureUser(ctx context.Context, in Inbound) (*models.User, error) {
	user, err := p.store.GetUserByTelegramID(ctx, in.TelegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		TelegramID: in.TelegramID,
		Username:   in.Username,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
	}
	if err := p.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	p.logger.Info("New user registered",
		zap.Int64("telegram_id", in.TelegramID),
		zap.Int64("user_id", user.ID))
	return user, nil
}

// persistExchange appends the user message and then the reply, so the
// stored timestamps reflect conversational order.
func (p *Processor) persistExchange(ctx context.Context, userID int64, question, reply string) error {
	userMsg := &models.Message{
		ID:     uuid.New().String(),
		UserID: userID,
		Text:   question,
	}
	if err := p.store.SaveMessage(ctx, userMsg); err != nil {
		return err
	}

	botMsg := &models.Message{
		ID:      uuid.New().String(),
		UserID:  userID,
		Text:    reply,
		FromBot: true,
	}
	return p.store.SaveMessage(ctx, botMsg)
}
