package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/support-bot/internal/assistant"
	"github.com/xaenox/support-bot/internal/processor"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// Bot is the user-facing support bot: it normalizes Telegram updates into
// pipeline input and sends the pipeline's reply back.
type Bot struct {
	api         *tgbotapi.BotAPI
	storage     storage.Storage
	processor   *processor.Processor
	transcriber assistant.Transcriber
	logger      *zap.Logger
}

func New(token string, store storage.Storage, proc *processor.Processor, transcriber assistant.Transcriber, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:         api,
		storage:     store,
		processor:   proc,
		transcriber: transcriber,
		logger:      logger,
	}, nil
}

func (b *Bot) Start() error {
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

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	text := message.Text

	// Voice input is transcribed before it enters the pipeline; a failed
	// or empty transcription never reaches the limiter or filter.
	if message.Voice != nil {
		b.sendMessage(message.Chat.ID, "Processing your voice message...")
		transcribed, err := b.transcribeVoice(ctx, message.Voice.FileID)
		if err != nil || transcribed == "" {
			if err != nil {
				b.logger.Error("Failed to process voice message",
					zap.Error(err),
					zap.Int64("chat_id", message.Chat.ID))
			}
			b.sendMessage(message.Chat.ID, "I could not understand the voice message. Please try again or send a text message.")
			return
		}
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Your message: %q", transcribed))
		text = transcribed
	}

	if text == "" {
		b.sendMessage(message.Chat.ID, "Please send a text or voice message.")
		return
	}

	// Show the typing indicator while the pipeline runs.
	b.api.Send(tgbotapi.NewChatAction(message.Chat.ID, tgbotapi.ChatTyping))

	reply := b.processor.Process(ctx, processor.Inbound{
		TelegramID: message.From.ID,
		Username:   message.From.UserName,
		FirstName:  message.From.FirstName,
		LastName:   message.From.LastName,
		Text:       text,
	})

	b.logger.Info("Message resolved",
		zap.Int64("telegram_id", message.From.ID),
		zap.String("outcome", reply.Outcome.String()))

	msg := tgbotapi.NewMessage(message.Chat.ID, reply.Text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) transcribeVoice(ctx context.Context, fileID string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get voice file url: %w", err)
	}

	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to download voice file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download voice file: status %d", resp.StatusCode)
	}

	return b.transcriber.Transcribe(ctx, resp.Body, fileID+".oga")
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "status":
		b.handleStatus(ctx, message)
	case "clear":
		b.handleClear(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to the support bot! 👋

I can help you with questions and problems. Just describe what you need and I will do my best to help.

You can send both text and voice messages.

Use /help for more information.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `How to use the bot:

• Ask your question in free form
• Complex requests are escalated to a support ticket
• Use /status to check your requests

Available commands:
/start - Start working with the bot
/help - Show this help message
/status - Check the status of your requests
/clear - Clear the conversation history`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.storage.GetUserByTelegramID(ctx, message.From.ID)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(message.Chat.ID, "You are not registered in the system yet.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to get user",
			zap.Error(err),
			zap.Int64("telegram_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't check your requests. Please try again later.")
		return
	}

	tickets, err := b.storage.ListUserTickets(ctx, user.ID)
	if err != nil {
		b.logger.Error("Failed to get user tickets",
			zap.Error(err),
			zap.Int64("user_id", user.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't check your requests. Please try again later.")
		return
	}

	if len(tickets) == 0 {
		b.sendMessage(message.Chat.ID, "You have no open support requests.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your support requests:\n\n")
	for i, ticket := range tickets {
		sb.WriteString(fmt.Sprintf("%d. #%d - %s\n", i+1, ticket.ID, truncate(ticket.Description, 30)))
		sb.WriteString(fmt.Sprintf("   Status: %s, priority: %s\n", ticket.Status, ticket.Priority))
		sb.WriteString(fmt.Sprintf("   Created: %s\n\n", ticket.CreatedAt.Format("02.01.2006 15:04")))
	}

	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *Bot) handleClear(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.storage.GetUserByTelegramID(ctx, message.From.ID)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(message.Chat.ID, "You are not registered in the system yet.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to get user",
			zap.Error(err),
			zap.Int64("telegram_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't clear the history. Please try again later.")
		return
	}

	if err := b.storage.ClearMessages(ctx, user.ID); err != nil {
		b.logger.Error("Failed to clear conversation history",
			zap.Error(err),
			zap.Int64("user_id", user.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't clear the history. Please try again later.")
		return
	}

	b.sendMessage(message.Chat.ID, "Conversation history cleared. We are starting from a clean slate.")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
