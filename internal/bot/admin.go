package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// adminState is the short-lived per-administrator conversation state. The
// only multi-step flow is FAQ entry: /addfaq arms the state and the next
// non-command message carries the entry text. Any other command clears it.
type adminState int

const (
	adminStateNone adminState = iota
	adminStateAwaitingFaq
)

// AdminBot is the staff-facing management surface: FAQ curation, ticket
// triage, user blocking and usage stats. It runs on its own token with an
// explicit admin allowlist.
type AdminBot struct {
	api     *tgbotapi.BotAPI
	storage storage.Storage
	admins  map[int64]bool
	logger  *zap.Logger

	mu     sync.Mutex
	states map[int64]adminState
}

func NewAdmin(token string, adminIDs []int64, store storage.Storage, logger *zap.Logger) (*AdminBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin bot: %w", err)
	}

	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}

	return &AdminBot{
		api:     api,
		storage: store,
		admins:  admins,
		logger:  logger,
		states:  make(map[int64]adminState),
	}, nil
}

func (b *AdminBot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *AdminBot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if !b.admins[message.From.ID] {
		if message.IsCommand() {
			b.sendMessage(message.Chat.ID, "You do not have access to the admin panel.")
		}
		return
	}

	if message.IsCommand() {
		b.clearState(message.From.ID)
		b.handleCommand(ctx, message)
		return
	}

	if b.takeState(message.From.ID) == adminStateAwaitingFaq {
		b.handleFaqEntry(ctx, message)
	}
}

func (b *AdminBot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "faq":
		b.handleFaqList(ctx, message)
	case "viewfaq":
		b.handleViewFaq(ctx, message, args)
	case "addfaq":
		b.handleAddFaq(message)
	case "delfaq":
		b.handleDelFaq(ctx, message, args)
	case "tickets":
		b.handleTickets(ctx, message)
	case "ticket":
		b.handleTicket(ctx, message, args)
	case "ticket_inprogress":
		b.handleTicketStatus(ctx, message, args, models.TicketStatusInProgress)
	case "ticket_solved":
		b.handleTicketStatus(ctx, message, args, models.TicketStatusResolved)
	case "ticket_closed":
		b.handleTicketStatus(ctx, message, args, models.TicketStatusClosed)
	case "users":
		b.handleUsers(ctx, message)
	case "block":
		b.handleBlock(ctx, message, args, true)
	case "unblock":
		b.handleBlock(ctx, message, args, false)
	case "stats":
		b.handleStats(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /start to see available commands.")
	}
}

func (b *AdminBot) handleStart(message *tgbotapi.Message) {
	b.sendMessage(message.Chat.ID, `Welcome to the admin panel!

Available commands:
/faq - manage the knowledge base
/tickets - view and manage tickets
/users - manage users
/stats - view usage statistics`)
}

func (b *AdminBot) handleFaqList(ctx context.Context, message *tgbotapi.Message) {
	faqs, err := b.storage.ListFaqs(ctx)
	if err != nil {
		b.logger.Error("Failed to list faqs", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Error retrieving the knowledge base.")
		return
	}

	if len(faqs) == 0 {
		b.sendMessage(message.Chat.ID, "The knowledge base is empty. Add entries with /addfaq.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Knowledge base:\n\n")
	for i, faq := range faqs {
		sb.WriteString(fmt.Sprintf("%d. %s [ID: %d]\n", i+1, faq.Question, faq.ID))
	}
	sb.WriteString("\nUse /viewfaq [ID] to see an answer\n")
	sb.WriteString("Use /addfaq to add a new entry\n")
	sb.WriteString("Use /delfaq [ID] to delete an entry")

	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *AdminBot) handleViewFaq(ctx context.Context, message *tgbotapi.Message, args string) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /viewfaq [ID]")
		return
	}

	faqs, err := b.storage.ListFaqs(ctx)
	if err != nil {
		b.logger.Error("Failed to list faqs", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Error retrieving the knowledge base.")
		return
	}

	for _, faq := range faqs {
		if faq.ID == id {
			keywords := faq.Keywords
			if keywords == "" {
				keywords = "not set"
			}
			b.sendMessage(message.Chat.ID, fmt.Sprintf(
				"FAQ #%d\n\nQuestion: %s\n\nAnswer: %s\n\nCategory: %s\nKeywords: %s",
				faq.ID, faq.Question, faq.Answer, faq.Category, keywords))
			return
		}
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("FAQ with ID %d not found.", id))
}

func (b *AdminBot) handleAddFaq(message *tgbotapi.Message) {
	b.mu.Lock()
	b.states[message.From.ID] = adminStateAwaitingFaq
	b.mu.Unlock()

	b.sendMessage(message.Chat.ID, `To add a FAQ entry, send a message in this format:

Question: [question text]
Answer: [answer text]
Category: [category]
Keywords: [word1, word2, ...]`)
}

func (b *AdminBot) handleFaqEntry(ctx context.Context, message *tgbotapi.Message) {
	faq := &models.FaqEntry{}
	for _, line := range strings.Split(message.Text, "\n") {
		switch {
		case strings.HasPrefix(line, "Question:"):
			faq.Question = strings.TrimSpace(strings.TrimPrefix(line, "Question:"))
		case strings.HasPrefix(line, "Answer:"):
			faq.Answer = strings.TrimSpace(strings.TrimPrefix(line, "Answer:"))
		case strings.HasPrefix(line, "Category:"):
			faq.Category = strings.TrimSpace(strings.TrimPrefix(line, "Category:"))
		case strings.HasPrefix(line, "Keywords:"):
			faq.Keywords = strings.TrimSpace(strings.TrimPrefix(line, "Keywords:"))
		}
	}

	if faq.Question == "" || faq.Answer == "" {
		// Keep waiting for a well-formed entry.
		b.mu.Lock()
		b.states[message.From.ID] = adminStateAwaitingFaq
		b.mu.Unlock()
		b.sendMessage(message.Chat.ID, "At least a question and an answer are required. Please try again.")
		return
	}

	if err := b.storage.AddFaq(ctx, faq); err != nil {
		b.logger.Error("Failed to add faq", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Error adding the FAQ entry.")
		return
	}

	category := faq.Category
	if category == "" {
		category = "not set"
	}
	keywords := faq.Keywords
	if keywords == "" {
		keywords = "not set"
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"FAQ entry added! ID: %d\n\nQuestion: %s\n\nAnswer: %s\n\nCategory: %s\nKeywords: %s",
		faq.ID, faq.Question, faq.Answer, category, keywords))
}

func (b *AdminBot) handleDelFaq(ctx context.Context, message *tgbotapi.Message, args string) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /delfaq [ID]")
		return
	}

	deleted, err := b.storage.DeleteFaq(ctx, id)
	if err != nil {
		b.logger.Error("Failed to delete faq", zap.Error(err), zap.Int64("faq_id", id))
		b.sendMessage(message.Chat.ID, "Error deleting the FAQ entry.")
		return
	}

	if deleted {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("FAQ with ID %d deleted.", id))
	} else {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("FAQ with ID %d not found.", id))
	}
}

func (b *AdminBot) handleTickets(ctx context.Context, message *tgbotapi.Message) {
	tickets, err := b.storage.ListTickets(ctx)
	if err != nil {
		b.logger.Error("Failed to list tickets", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Error retrieving tickets.")
		return
	}

	if len(tickets) == 0 {
		b.sendMessage(message.Chat.ID, "There are no tickets in the system.")
		return
	}

	shown := tickets
	if len(shown) > 10 {
		shown = shown[:10]
	}

	var sb strings.Builder
	sb.WriteString("Tickets:\n\n")
	for _, ticket := range shown {
		sb.WriteString(fmt.Sprintf("#%d\n", ticket.ID))
		sb.WriteString(fmt.Sprintf("Status: %s, priority: %s\n", ticket.Status, ticket.Priority))
		sb.WriteString(fmt.Sprintf("Type: %s\n", ticket.IssueType))
		sb.WriteString(fmt.Sprintf("Description: %s\n\n", truncate(ticket.Description, 50)))
	}

	if len(tickets) > 10 {
		sb.WriteString(fmt.Sprintf("\nShowing 10 of %d tickets. ", len(tickets)))
	}
	sb.WriteString("Use /ticket [ID] for details.")

	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *AdminBot) handleTicket(ctx context.Context, message *tgbotapi.Message, args string) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /ticket [ID]")
		return
	}

	ticket, err := b.storage.GetTicket(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Ticket with ID %d not found.", id))
		return
	}
	if err != nil {
		b.logger.Error("Failed to get ticket", zap.Error(err), zap.Int64("ticket_id", id))
		b.sendMessage(message.Chat.ID, "Error retrieving the ticket.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		`Ticket #%d

Status: %s
Priority: %s
Type: %s

Description:
%s

Created: %s
Updated: %s

To change the status use:
/ticket_inprogress %d - take into work
/ticket_solved %d - mark as resolved
/ticket_closed %d - close the ticket`,
		ticket.ID, ticket.Status, ticket.Priority, ticket.IssueType, ticket.Description,
		ticket.CreatedAt.Format("02.01.2006 15:04"), ticket.UpdatedAt.Format("02.01.2006 15:04"),
		ticket.ID, ticket.ID, ticket.ID))
}

func (b *AdminBot) handleTicketStatus(ctx context.Context, message *tgbotapi.Message, args string, status models.TicketStatus) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /ticket_... [ID]")
		return
	}

	err = b.storage.UpdateTicketStatus(ctx, id, status)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Ticket with ID %d not found.", id))
		return
	}
	if err != nil {
		b.logger.Error("Failed to update ticket status",
			zap.Error(err),
			zap.Int64("ticket_id", id))
		b.sendMessage(message.Chat.ID, "Error updating the ticket status.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("Ticket #%d updated. New status: %s", id, status))
}

func (b *AdminBot) handleUsers(ctx context.Context, message *tgbotapi.Message) {
	users, err := b.storage.ListUsers(ctx)
	if err != nil {
		b.logger.Error("Failed to list users", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Error retrieving users.")
		return
	}

	if len(users) == 0 {
		b.sendMessage(message.Chat.ID, "There are no registered users.")
		return
	}

	shown := users
	if len(shown) > 15 {
		shown = shown[:15]
	}

	var sb strings.Builder
	sb.WriteString("Users:\n\n")
	for _, user := range shown {
		blocked := "no"
		if user.IsBlocked {
			blocked = "yes"
		}
		sb.WriteString(fmt.Sprintf("ID: %d | Telegram: %d | %s %s", user.ID, user.TelegramID, user.FirstName, user.LastName))
		if user.Username != "" {
			sb.WriteString(fmt.Sprintf(" (@%s)", user.Username))
		}
		sb.WriteString(fmt.Sprintf("\nRequests: %d | Blocked: %s\n\n", user.RequestCount, blocked))
	}

	if len(users) > 15 {
		sb.WriteString(fmt.Sprintf("\nShowing 15 of %d users.\n", len(users)))
	}
	sb.WriteString("\nCommands:\n/block [ID] - block a user\n/unblock [ID] - unblock a user")

	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *AdminBot) handleBlock(ctx context.Context, message *tgbotapi.Message, args string, blocked bool) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /block [ID] or /unblock [ID]")
		return
	}

	if err := b.storage.SetUserBlocked(ctx, id, blocked); err != nil {
		b.logger.Error("Failed to update user block status",
			zap.Error(err),
			zap.Int64("user_id", id))
		b.sendMessage(message.Chat.ID, "Error updating the user.")
		return
	}

	if blocked {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("User with ID %d blocked.", id))
	} else {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("User with ID %d unblocked.", id))
	}
}

func (b *AdminBot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	stats, err := b.storage.GetStats(ctx)
	if err != nil {
		b.logger.Error("Failed to get stats", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Error retrieving statistics.")
		return
	}

	lastActivity := "never"
	if stats.LastActivity != nil {
		lastActivity = stats.LastActivity.Format("02.01.2006 15:04")
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		`📊 System statistics 📊

👥 Users: %d
💬 Requests: %d
🎫 Tickets: %d
📝 FAQ entries: %d

🎫 Tickets by status:
New: %d
In progress: %d
Resolved: %d
Closed: %d

📆 Last activity: %s`,
		stats.Users, stats.TotalRequests, stats.TicketsTotal, stats.Faqs,
		stats.TicketsNew, stats.TicketsInProgress, stats.TicketsResolved, stats.TicketsClosed,
		lastActivity))
}

func (b *AdminBot) takeState(adminID int64) adminState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.states[adminID]
	delete(b.states, adminID)
	return state
}

func (b *AdminBot) clearState(adminID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.states, adminID)
}

func (b *AdminBot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send admin message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
