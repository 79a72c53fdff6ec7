package genai

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/chatforms/intakegate/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	content string
	err     error
	empty   bool
}

func (m *mockChatService) New(_ context.Context, _ openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return &openai.ChatCompletion{}, nil
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.content}},
		},
	}, nil
}

func TestNewClientMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when OPENAI_API_KEY is not set")
	}
}

func TestSuggestions(t *testing.T) {
	c := &Client{chat: &mockChatService{content: "What can you help me with?\nTell me about pricing\nHow do I get started?"}}
	got, err := c.Suggestions(context.Background(), models.Chatbot{ID: "b1", Name: "Helper", Purpose: "support"})
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	want := []string{"What can you help me with?", "Tell me about pricing", "How do I get started?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSuggestionsError(t *testing.T) {
	c := &Client{chat: &mockChatService{err: errors.New("api down")}}
	if _, err := c.Suggestions(context.Background(), models.Chatbot{ID: "b1"}); err == nil {
		t.Error("expected error from failed completion")
	}
}

func TestSuggestionsNoChoices(t *testing.T) {
	c := &Client{chat: &mockChatService{empty: true}}
	if _, err := c.Suggestions(context.Background(), models.Chatbot{ID: "b1"}); err == nil {
		t.Error("expected error when no choices returned")
	}
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"plain lines", "a\nb", []string{"a", "b"}},
		{"bulleted", "- first one\n* second one", []string{"first one", "second one"}},
		{"numbered", "1. first\n2) second", []string{"first", "second"}},
		{"blank lines skipped", "a\n\n\nb\n", []string{"a", "b"}},
		{"capped", "a\nb\nc\nd\ne\nf", []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSuggestions(tt.content); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
