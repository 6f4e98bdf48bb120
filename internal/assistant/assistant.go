package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/support-bot/internal/models"
	"go.uber.org/zap"
)

// Assistant produces a support answer for a question given the recent
// conversation turns, oldest first.
type Assistant interface {
	Answer(ctx context.Context, history []*models.Message, question string) (string, error)
}

const systemPrompt = `You are the technical support bot of the company. Your job is to help users solve their problems.
Answer briefly and to the point. If you do not know the exact answer, say that "this question requires a support specialist".
Do not invent information you do not have. The knowledge base covers the following categories:
1. General questions about the company
2. Technical problems with our software
3. Account and security questions
4. Plans and billing
5. Hardware setup`

// GPTAssistant answers through the OpenAI chat-completion API, feeding the
// conversation history as alternating user/assistant turns.
type GPTAssistant struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGPTAssistant(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTAssistant {
	return &GPTAssistant{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (a *GPTAssistant) Answer(ctx context.Context, history []*models.Message, question string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.FromBot {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Text,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       a.model,
			Messages:    messages,
			MaxTokens:   a.maxTokens,
			Temperature: float32(a.temperature),
		},
	)
	if err != nil {
		a.logger.Error("Failed to get completion", zap.Error(err))
		return "", fmt.Errorf("failed to get completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
