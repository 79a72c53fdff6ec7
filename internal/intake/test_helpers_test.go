package intake

import (
	"context"
	"sync"

	"github.com/chatforms/intakegate/internal/models"
)

// scriptedService is a ConversationService fake for machine and gate
// hook tests. Errors are popped per call so a test can script "fail
// once, then succeed".
type scriptedService struct {
	mu sync.Mutex

	conversationID string
	createErr      error
	createCalls    int

	facts        *models.WelcomeFacts
	factsErr     error
	welcomeCalls int

	commitErrs  []error
	commits     []models.BatchCommitRequest
	commitCalls int

	suggestions  []string
	suggestErr   error
	suggestCalls int
}

func newScriptedService() *scriptedService {
	return &scriptedService{conversationID: "conv-1"}
}

func (s *scriptedService) CreateConversation(ctx context.Context, chatbotID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		err := s.createErr
		s.createErr = nil
		return "", err
	}
	return s.conversationID, nil
}

func (s *scriptedService) WelcomeFacts(ctx context.Context, chatbotID, userID, conversationID string) (*models.WelcomeFacts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.welcomeCalls++
	if s.factsErr != nil {
		return nil, s.factsErr
	}
	return s.facts, nil
}

func (s *scriptedService) CommitIntake(ctx context.Context, conversationID string, commit models.BatchCommitRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitCalls++
	if len(s.commitErrs) > 0 {
		err := s.commitErrs[0]
		s.commitErrs = s.commitErrs[1:]
		if err != nil {
			return err
		}
	}
	s.commits = append(s.commits, commit)
	return nil
}

func (s *scriptedService) FetchSuggestions(ctx context.Context, chatbotID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestCalls++
	if s.suggestErr != nil {
		return nil, s.suggestErr
	}
	return s.suggestions, nil
}

// threeQuestions is the canonical fixture: required text, optional
// select, required boolean.
func threeQuestions() []models.Question {
	return []models.Question{
		{ID: "q1", Text: "What is your name?", ResponseType: models.ResponseTypeText, DisplayOrder: 1, IsRequired: true},
		{ID: "q2", Text: "Favorite color?", ResponseType: models.ResponseTypeSelect, DisplayOrder: 2, Options: []string{"Red", "Blue"}},
		{ID: "q3", Text: "Subscribe to updates?", ResponseType: models.ResponseTypeBoolean, DisplayOrder: 3, IsRequired: true},
	}
}

func newTestMachine(svc ConversationService, questions []models.Question, existing map[string]interface{}, onComplete func(string)) *Machine {
	return NewMachine(Config{
		Service:           svc,
		ChatbotID:         "bot-1",
		UserID:            "user-1",
		ChatbotName:       "Testbot",
		Questions:         questions,
		ExistingResponses: existing,
		OnComplete:        onComplete,
		CompletionDelay:   -1,
	})
}
