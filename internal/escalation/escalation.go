package escalation

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// Marker phrases the model uses to signal it is not confident in an answer.
// Matching is plain substring search on the model output; the system prompt
// instructs the model to use the first phrase verbatim.
var defaultMarkers = []string{
	"requires a support specialist",
	"I don't know",
	"cannot provide an accurate answer",
}

// Decider turns an uncertain model answer into a tracked support ticket and
// tells the user a specialist will follow up.
type Decider struct {
	store   storage.Storage
	logger  *zap.Logger
	markers []string
}

func NewDecider(store storage.Storage, logger *zap.Logger) *Decider {
	return &Decider{
		store:   store,
		logger:  logger,
		markers: defaultMarkers,
	}
}

// NewDeciderWithMarkers builds a decider with a custom marker set.
func NewDeciderWithMarkers(store storage.Storage, markers []string, logger *zap.Logger) *Decider {
	return &Decider{
		store:   store,
		logger:  logger,
		markers: markers,
	}
}

// Review inspects the answer for uncertainty markers. On a hit it opens a
// new ticket carrying the original question and returns the answer with the
// ticket number appended. Ticket-creation failure never suppresses the
// answer: the plain answer is returned and the error logged.
func (d *Decider) Review(ctx context.Context, user *models.User, question, answer string) string {
	if !d.uncertain(answer) {
		return answer
	}

	ticket := &models.Ticket{
		UserID:      user.ID,
		Status:      models.TicketStatusNew,
		Priority:    models.TicketPriorityMedium,
		IssueType:   "question",
		Description: question,
	}

	if err := d.store.CreateTicket(ctx, ticket); err != nil {
		d.logger.Error("Failed to create ticket",
			zap.Error(err),
			zap.Int64("user_id", user.ID))
		return answer
	}

	d.logger.Info("Ticket created for uncertain answer",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("user_id", user.ID))

	return fmt.Sprintf("%s\n\nYour request has been registered as ticket #%d. A support specialist will contact you shortly.",
		answer, ticket.ID)
}

func (d *Decider) uncertain(answer string) bool {
	for _, marker := range d.markers {
		if strings.Contains(answer, marker) {
			return true
		}
	}
	return false
}
