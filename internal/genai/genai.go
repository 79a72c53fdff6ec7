// Package genai generates post-completion suggestion pills using the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/chatforms/intakegate/internal/models"
)

// MaxSuggestions caps the number of pills returned per request.
const MaxSuggestions = 4

const suggestionSystemPrompt = "You write short conversation-starter suggestions for a chatbot. " +
	"Given the chatbot's name and purpose, reply with one suggestion per line, no numbering, no punctuation-only lines. " +
	"Each suggestion is a question or request a new user might tap to start chatting."

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps the OpenAI chat completion service for suggestion generation.
type Client struct {
	chat chatService
}

// NewClient initializes a new GenAI client using the OPENAI_API_KEY environment variable.
func NewClient() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{chat: &cli.Chat.Completions}, nil
}

// Suggestions generates suggestion pills for a chatbot.
func (c *Client) Suggestions(ctx context.Context, bot models.Chatbot) ([]string, error) {
	slog.Debug("genai.Client.Suggestions: generating", "chatbotID", bot.ID)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(suggestionSystemPrompt),
			openai.UserMessage(fmt.Sprintf("Chatbot name: %s\nPurpose: %s", bot.Name, bot.Purpose)),
		},
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("genai.Client.Suggestions: completion failed", "error", err, "chatbotID", bot.ID)
		return nil, fmt.Errorf("failed to generate suggestions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	suggestions := parseSuggestions(resp.Choices[0].Message.Content)
	slog.Debug("genai.Client.Suggestions: generated", "chatbotID", bot.ID, "count", len(suggestions))
	return suggestions, nil
}

// parseSuggestions splits model output into clean suggestion lines,
// stripping list markers the model tends to add anyway.
func parseSuggestions(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}
