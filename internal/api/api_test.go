package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chatforms/intakegate/internal/models"
	"github.com/chatforms/intakegate/internal/store"
)

type failingSuggestions struct{}

func (failingSuggestions) Suggestions(ctx context.Context, bot models.Chatbot) ([]string, error) {
	return nil, errors.New("generator down")
}

type cannedSuggestions struct{ pills []string }

func (c cannedSuggestions) Suggestions(ctx context.Context, bot models.Chatbot) ([]string, error) {
	return c.pills, nil
}

func newTestServer(t *testing.T, suggest SuggestionGenerator) (*httptest.Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	srv := httptest.NewServer(NewServer(st, suggest).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func seedChatbot(t *testing.T, st *store.InMemoryStore) {
	t.Helper()
	if err := st.SaveChatbot(models.Chatbot{ID: "bot-1", Name: "Testbot", Purpose: "testing"}); err != nil {
		t.Fatalf("seed chatbot: %v", err)
	}
	err := st.SaveQuestions("bot-1", []models.Question{
		{ID: "q1", Text: "Name?", ResponseType: models.ResponseTypeText, DisplayOrder: 1, IsRequired: true},
	})
	if err != nil {
		t.Fatalf("seed questions: %v", err)
	}
}

func decodeResult(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Status != string(models.APIStatusOK) {
		t.Fatalf("expected ok status, got %q (%s)", envelope.Status, envelope.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			t.Fatalf("decode result: %v", err)
		}
	}
}

func TestCreateChatbot(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	body := bytes.NewBufferString(`{"name":"Testbot","purpose":"testing"}`)
	resp, err := http.Post(srv.URL+"/chatbots", "application/json", body)
	if err != nil {
		t.Fatalf("post chatbot: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var bot models.Chatbot
	decodeResult(t, resp, &bot)
	if bot.ID == "" || bot.Name != "Testbot" {
		t.Errorf("unexpected chatbot result: %+v", bot)
	}
}

func TestCreateChatbotRejectsInvalid(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/chatbots", "application/json", bytes.NewBufferString(`{"purpose":"no name"}`))
	if err != nil {
		t.Fatalf("post chatbot: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", resp.StatusCode)
	}
}

func TestSaveQuestionsValidation(t *testing.T) {
	srv, st := newTestServer(t, nil)
	seedChatbot(t, st)
	bad := `[{"id":"q1","text":"Pick","response_type":"SELECT","display_order":1}]`
	resp, err := http.Post(srv.URL+"/chatbots/bot-1/questions", "application/json", bytes.NewBufferString(bad))
	if err != nil {
		t.Fatalf("post questions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for select without options, got %d", resp.StatusCode)
	}
}

func TestConversationLifecycle(t *testing.T) {
	srv, st := newTestServer(t, nil)
	seedChatbot(t, st)

	// Create a conversation.
	resp, err := http.Post(srv.URL+"/chatbots/bot-1/conversations", "application/json",
		bytes.NewBufferString(`{"user_id":"user-1"}`))
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created models.CreateConversationResponse
	decodeResult(t, resp, &created)
	if created.ConversationID == "" {
		t.Fatalf("expected conversation id")
	}

	// Welcome facts before commit.
	resp, err = http.Get(srv.URL + "/chatbots/bot-1/welcome?user_id=user-1&conversation_id=" + created.ConversationID)
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	var facts models.WelcomeFacts
	decodeResult(t, resp, &facts)
	if !facts.HasQuestions || len(facts.Questions) != 1 || facts.IntakeCompleted {
		t.Errorf("unexpected welcome facts: %+v", facts)
	}

	// Commit the intake batch.
	commit := models.BatchCommitRequest{
		IntakeCompleted: true,
		Messages: []models.Message{
			{ID: models.LocalMessageIDPrefix + "1", Role: models.MessageRoleAssistant, Content: "Welcome", CreatedAt: time.Now()},
			{ID: models.LocalMessageIDPrefix + "2", Role: models.MessageRoleUser, Content: "Ada", CreatedAt: time.Now()},
		},
		Responses: []models.QuestionResponse{{QuestionID: "q1", Value: "Ada"}},
	}
	payload, _ := json.Marshal(commit)
	resp, err = http.Post(srv.URL+"/conversations/"+created.ConversationID+"/commit", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	decodeResult(t, resp, nil)

	// Welcome facts now reflect completion and saved answers.
	resp, err = http.Get(srv.URL + "/chatbots/bot-1/welcome?user_id=user-1&conversation_id=" + created.ConversationID)
	if err != nil {
		t.Fatalf("welcome after commit: %v", err)
	}
	decodeResult(t, resp, &facts)
	if !facts.IntakeCompleted || !facts.ConversationMessages {
		t.Errorf("expected completed conversation with messages, got %+v", facts)
	}
	if facts.ExistingResponses["q1"] != "Ada" {
		t.Errorf("expected saved response visible, got %v", facts.ExistingResponses)
	}
}

func TestCommitUnknownConversation(t *testing.T) {
	srv, st := newTestServer(t, nil)
	seedChatbot(t, st)
	resp, err := http.Post(srv.URL+"/conversations/missing/commit", "application/json",
		bytes.NewBufferString(`{"intake_completed":true,"messages":[],"responses":[]}`))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWelcomeRequiresUserID(t *testing.T) {
	srv, st := newTestServer(t, nil)
	seedChatbot(t, st)
	resp, err := http.Get(srv.URL + "/chatbots/bot-1/welcome")
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", resp.StatusCode)
	}
}

func TestSuggestionsFallbackOnGeneratorFailure(t *testing.T) {
	srv, st := newTestServer(t, failingSuggestions{})
	seedChatbot(t, st)
	resp, err := http.Get(srv.URL + "/chatbots/bot-1/suggestions")
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generator failure must not surface, got %d", resp.StatusCode)
	}
	var out models.SuggestionsResponse
	decodeResult(t, resp, &out)
	if len(out.Suggestions) == 0 {
		t.Errorf("expected fallback suggestions, got none")
	}
}

func TestSuggestionsFromGenerator(t *testing.T) {
	srv, st := newTestServer(t, cannedSuggestions{pills: []string{"Ask me anything"}})
	seedChatbot(t, st)
	resp, err := http.Get(srv.URL + "/chatbots/bot-1/suggestions")
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	var out models.SuggestionsResponse
	decodeResult(t, resp, &out)
	if len(out.Suggestions) != 1 || out.Suggestions[0] != "Ask me anything" {
		t.Errorf("expected generated suggestions, got %v", out.Suggestions)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
