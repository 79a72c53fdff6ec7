// Package store provides storage backends for IntakeGate.
//
// It includes an in-memory store for tests and development plus
// SQLite- and PostgreSQL-backed stores for persistent deployments.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatforms/intakegate/internal/models"
)

// Conversation is one chat session between a user and a chatbot.
type Conversation struct {
	ID              string    `json:"id"`
	ChatbotID       string    `json:"chatbot_id"`
	UserID          string    `json:"user_id"`
	IntakeCompleted bool      `json:"intake_completed"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store is the persistence contract behind the conversation service.
type Store interface {
	SaveChatbot(c models.Chatbot) error
	GetChatbot(id string) (*models.Chatbot, error)
	// SaveQuestions replaces the chatbot's question list.
	SaveQuestions(chatbotID string, questions []models.Question) error
	ListQuestions(chatbotID string) ([]models.Question, error)
	CreateConversation(conv Conversation) error
	GetConversation(id string) (*Conversation, error)
	// GetResponses returns the saved answers of one user for one chatbot,
	// keyed by question id.
	GetResponses(chatbotID, userID string) (map[string]interface{}, error)
	ConversationHasMessages(conversationID string) (bool, error)
	// CommitIntake persists the batched intake write: all messages, all
	// responses (last-write-wins per question id), and the completed flag,
	// atomically. Committing an already-completed conversation is a
	// successful no-op so a client retry racing a slow first success
	// cannot double-write.
	CommitIntake(conversationID string, messages []models.Message, responses []models.QuestionResponse) error
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the backend connection string: a file path for SQLite, a
	// connection URL for PostgreSQL.
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the backend connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// serverMessageID returns a server-assigned id for a message, minting a
// fresh one when the client supplied only a local temporary id.
func serverMessageID(m models.Message) string {
	if m.ID == "" || m.IsLocal() {
		return uuid.NewString()
	}
	return m.ID
}

// InMemoryStore is a simple in-memory store for tests and development.
type InMemoryStore struct {
	mu            sync.RWMutex
	chatbots      map[string]models.Chatbot
	questions     map[string][]models.Question
	conversations map[string]Conversation
	messages      map[string][]models.Message
	responses     map[string]map[string]interface{} // chatbotID/userID -> questionID -> value
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		chatbots:      make(map[string]models.Chatbot),
		questions:     make(map[string][]models.Question),
		conversations: make(map[string]Conversation),
		messages:      make(map[string][]models.Message),
		responses:     make(map[string]map[string]interface{}),
	}
}

func responseKey(chatbotID, userID string) string {
	return chatbotID + "/" + userID
}

func (s *InMemoryStore) SaveChatbot(c models.Chatbot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatbots[c.ID] = c
	return nil
}

func (s *InMemoryStore) GetChatbot(id string) (*models.Chatbot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chatbots[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *InMemoryStore) SaveQuestions(chatbotID string, questions []models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[chatbotID] = models.SortQuestions(questions)
	return nil
}

func (s *InMemoryStore) ListQuestions(chatbotID string) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs := s.questions[chatbotID]
	out := make([]models.Question, len(qs))
	copy(out, qs)
	return out, nil
}

func (s *InMemoryStore) CreateConversation(conv Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv
	return nil
}

func (s *InMemoryStore) GetConversation(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return &conv, nil
}

func (s *InMemoryStore) GetResponses(chatbotID, userID string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{})
	for qid, val := range s.responses[responseKey(chatbotID, userID)] {
		out[qid] = val
	}
	return out, nil
}

func (s *InMemoryStore) ConversationHasMessages(conversationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[conversationID]) > 0, nil
}

func (s *InMemoryStore) CommitIntake(conversationID string, messages []models.Message, responses []models.QuestionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return models.ErrConversationNotFound
	}
	if conv.IntakeCompleted {
		return nil
	}
	stored := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		m.ID = serverMessageID(m)
		stored = append(stored, m)
	}
	s.messages[conversationID] = append(s.messages[conversationID], stored...)

	key := responseKey(conv.ChatbotID, conv.UserID)
	if s.responses[key] == nil {
		s.responses[key] = make(map[string]interface{})
	}
	for _, r := range responses {
		s.responses[key][r.QuestionID] = r.Value
	}

	conv.IntakeCompleted = true
	conv.UpdatedAt = time.Now()
	s.conversations[conversationID] = conv
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// Messages returns the stored messages for a conversation in order.
// Test/inspection helper on the in-memory backend.
func (s *InMemoryStore) Messages(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Chatbots returns all stored chatbots sorted by id. Test/inspection
// helper on the in-memory backend.
func (s *InMemoryStore) Chatbots() []models.Chatbot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chatbot, 0, len(s.chatbots))
	for _, c := range s.chatbots {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
