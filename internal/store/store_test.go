package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chatforms/intakegate/internal/models"
)

func seedConversation(t *testing.T, s *InMemoryStore) Conversation {
	t.Helper()
	conv := Conversation{
		ID:        "conv-1",
		ChatbotID: "bot-1",
		UserID:    "user-1",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.CreateConversation(conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

func TestInMemoryChatbotRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.SaveChatbot(models.Chatbot{ID: "bot-1", Name: "Testbot", Purpose: "testing"}); err != nil {
		t.Fatalf("save chatbot: %v", err)
	}
	c, err := s.GetChatbot("bot-1")
	if err != nil {
		t.Fatalf("get chatbot: %v", err)
	}
	if c == nil || c.Name != "Testbot" {
		t.Errorf("unexpected chatbot: %v", c)
	}
	missing, err := s.GetChatbot("nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing chatbot, got %v err %v", missing, err)
	}
}

func TestInMemoryQuestionsSortedByDisplayOrder(t *testing.T) {
	s := NewInMemoryStore()
	err := s.SaveQuestions("bot-1", []models.Question{
		{ID: "b", Text: "b", ResponseType: models.ResponseTypeText, DisplayOrder: 2},
		{ID: "a", Text: "a", ResponseType: models.ResponseTypeText, DisplayOrder: 1},
	})
	if err != nil {
		t.Fatalf("save questions: %v", err)
	}
	qs, err := s.ListQuestions("bot-1")
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(qs) != 2 || qs[0].ID != "a" || qs[1].ID != "b" {
		t.Errorf("expected display order, got %v", qs)
	}
}

func TestInMemoryCommitIntake(t *testing.T) {
	s := NewInMemoryStore()
	conv := seedConversation(t, s)

	messages := []models.Message{
		{ID: models.LocalMessageIDPrefix + "1", Role: models.MessageRoleAssistant, Content: "Welcome"},
		{ID: models.LocalMessageIDPrefix + "2", Role: models.MessageRoleUser, Content: "Ada"},
	}
	responses := []models.QuestionResponse{{QuestionID: "q1", Value: "Ada"}}

	if err := s.CommitIntake(conv.ID, messages, responses); err != nil {
		t.Fatalf("commit intake: %v", err)
	}

	got, err := s.GetConversation(conv.ID)
	if err != nil || got == nil {
		t.Fatalf("get conversation: %v %v", got, err)
	}
	if !got.IntakeCompleted {
		t.Errorf("expected conversation marked complete")
	}

	stored := s.Messages(conv.ID)
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(stored))
	}
	for _, m := range stored {
		if strings.HasPrefix(m.ID, models.LocalMessageIDPrefix) {
			t.Errorf("expected local id replaced with server id, got %q", m.ID)
		}
	}

	has, err := s.ConversationHasMessages(conv.ID)
	if err != nil || !has {
		t.Errorf("expected conversation to have messages")
	}

	saved, err := s.GetResponses(conv.ChatbotID, conv.UserID)
	if err != nil {
		t.Fatalf("get responses: %v", err)
	}
	if saved["q1"] != "Ada" {
		t.Errorf("expected saved response, got %v", saved)
	}
}

func TestInMemoryCommitIntakeIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	conv := seedConversation(t, s)

	messages := []models.Message{{ID: models.LocalMessageIDPrefix + "1", Role: models.MessageRoleAssistant, Content: "Welcome"}}
	if err := s.CommitIntake(conv.ID, messages, nil); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.CommitIntake(conv.ID, messages, nil); err != nil {
		t.Fatalf("second commit should be a successful no-op: %v", err)
	}
	if got := len(s.Messages(conv.ID)); got != 1 {
		t.Errorf("second commit must not duplicate messages, got %d", got)
	}
}

func TestInMemoryCommitIntakeUnknownConversation(t *testing.T) {
	s := NewInMemoryStore()
	err := s.CommitIntake("missing", nil, nil)
	if err != models.ErrConversationNotFound {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestInMemoryResponsesLastWriteWins(t *testing.T) {
	s := NewInMemoryStore()
	conv := seedConversation(t, s)
	second := Conversation{ID: "conv-2", ChatbotID: conv.ChatbotID, UserID: conv.UserID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.CreateConversation(second); err != nil {
		t.Fatalf("create second conversation: %v", err)
	}

	if err := s.CommitIntake(conv.ID, nil, []models.QuestionResponse{{QuestionID: "q1", Value: "Old"}}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.CommitIntake(second.ID, nil, []models.QuestionResponse{{QuestionID: "q1", Value: "New"}}); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	saved, err := s.GetResponses(conv.ChatbotID, conv.UserID)
	if err != nil {
		t.Fatalf("get responses: %v", err)
	}
	if saved["q1"] != "New" {
		t.Errorf("expected last-write-wins, got %v", saved["q1"])
	}
}

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(WithDSN(filepath.Join(t.TempDir(), "intakegate.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteCommitIntakeIdempotent(t *testing.T) {
	s := newSQLiteTestStore(t)
	if err := s.SaveChatbot(models.Chatbot{ID: "bot-1", Name: "Helper"}); err != nil {
		t.Fatalf("SaveChatbot failed: %v", err)
	}
	conv := Conversation{
		ID:        "conv-1",
		ChatbotID: "bot-1",
		UserID:    "user-1",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.CreateConversation(conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	messages := []models.Message{
		{ID: "local-1", Role: models.MessageRoleAssistant, Content: "Hello"},
		{ID: "local-2", Role: models.MessageRoleUser, Content: "Ada"},
	}
	responses := []models.QuestionResponse{{QuestionID: "q1", Value: "Ada"}}
	if err := s.CommitIntake("conv-1", messages, responses); err != nil {
		t.Fatalf("first CommitIntake failed: %v", err)
	}
	// A repeat commit must take the completion claim's zero-rows path and
	// write nothing, leaving a single copy of the transcript.
	if err := s.CommitIntake("conv-1", messages, responses); err != nil {
		t.Fatalf("repeat CommitIntake failed: %v", err)
	}
	got, err := s.GetConversation("conv-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if !got.IntakeCompleted {
		t.Error("expected conversation marked completed")
	}
	hasMessages, err := s.ConversationHasMessages("conv-1")
	if err != nil {
		t.Fatalf("ConversationHasMessages failed: %v", err)
	}
	if !hasMessages {
		t.Fatal("expected persisted messages")
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, "conv-1").Scan(&count); err != nil {
		t.Fatalf("message count query failed: %v", err)
	}
	if count != len(messages) {
		t.Errorf("expected %d messages after repeat commit, got %d", len(messages), count)
	}
}

func TestSQLiteCommitIntakeUnknownConversation(t *testing.T) {
	s := newSQLiteTestStore(t)
	err := s.CommitIntake("missing", []models.Message{{ID: "local-1", Role: models.MessageRoleUser, Content: "hi"}}, nil)
	if !errors.Is(err, models.ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}
