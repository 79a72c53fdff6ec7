// Package store provides storage backends for IntakeGate.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/chatforms/intakegate/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists IntakeGate data in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveChatbot(c models.Chatbot) error {
	_, err := s.db.Exec(`INSERT INTO chatbots (id, name, purpose) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, purpose = EXCLUDED.purpose`,
		c.ID, c.Name, nilIfEmpty(c.Purpose))
	if err != nil {
		slog.Error("PostgresStore SaveChatbot failed", "error", err, "chatbotID", c.ID)
		return fmt.Errorf("failed to save chatbot %s: %w", c.ID, err)
	}
	slog.Debug("PostgresStore SaveChatbot succeeded", "chatbotID", c.ID)
	return nil
}

func (s *PostgresStore) GetChatbot(id string) (*models.Chatbot, error) {
	row := s.db.QueryRow(`SELECT id, name, purpose FROM chatbots WHERE id = $1`, id)
	c, err := scanChatbotRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetChatbot failed", "error", err, "chatbotID", id)
		return nil, fmt.Errorf("failed to get chatbot %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) SaveQuestions(chatbotID string, questions []models.Question) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin question save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM questions WHERE chatbot_id = $1`, chatbotID); err != nil {
		slog.Error("PostgresStore SaveQuestions delete failed", "error", err, "chatbotID", chatbotID)
		return fmt.Errorf("failed to clear questions for %s: %w", chatbotID, err)
	}
	for _, q := range questions {
		optionsJSON, err := marshalOptions(q.Options)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO questions (chatbot_id, id, text, helper_text, response_type, display_order, is_required, options_json)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			chatbotID, q.ID, q.Text, nilIfEmpty(q.HelperText), string(q.ResponseType), q.DisplayOrder, q.IsRequired, optionsJSON)
		if err != nil {
			slog.Error("PostgresStore SaveQuestions insert failed", "error", err, "chatbotID", chatbotID, "questionID", q.ID)
			return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit question save: %w", err)
	}
	slog.Debug("PostgresStore SaveQuestions succeeded", "chatbotID", chatbotID, "count", len(questions))
	return nil
}

func (s *PostgresStore) ListQuestions(chatbotID string) ([]models.Question, error) {
	rows, err := s.db.Query(`SELECT id, text, helper_text, response_type, display_order, is_required, options_json
		FROM questions WHERE chatbot_id = $1 ORDER BY display_order`, chatbotID)
	if err != nil {
		slog.Error("PostgresStore ListQuestions query failed", "error", err, "chatbotID", chatbotID)
		return nil, fmt.Errorf("failed to query questions for %s: %w", chatbotID, err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *PostgresStore) CreateConversation(conv Conversation) error {
	_, err := s.db.Exec(`INSERT INTO conversations (id, chatbot_id, user_id, intake_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		conv.ID, conv.ChatbotID, conv.UserID, conv.IntakeCompleted, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateConversation failed", "error", err, "conversationID", conv.ID)
		return fmt.Errorf("failed to create conversation %s: %w", conv.ID, err)
	}
	slog.Debug("PostgresStore CreateConversation succeeded", "conversationID", conv.ID)
	return nil
}

func (s *PostgresStore) GetConversation(id string) (*Conversation, error) {
	row := s.db.QueryRow(`SELECT id, chatbot_id, user_id, intake_completed, created_at, updated_at
		FROM conversations WHERE id = $1`, id)
	conv, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "conversationID", id)
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *PostgresStore) GetResponses(chatbotID, userID string) (map[string]interface{}, error) {
	rows, err := s.db.Query(`SELECT question_id, value_json FROM responses WHERE chatbot_id = $1 AND user_id = $2`,
		chatbotID, userID)
	if err != nil {
		slog.Error("PostgresStore GetResponses query failed", "error", err, "chatbotID", chatbotID, "userID", userID)
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func (s *PostgresStore) ConversationHasMessages(conversationID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore ConversationHasMessages failed", "error", err, "conversationID", conversationID)
		return false, fmt.Errorf("failed to count messages: %w", err)
	}
	return count > 0, nil
}

func (s *PostgresStore) CommitIntake(conversationID string, messages []models.Message, responses []models.QuestionResponse) error {
	conv, err := s.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return models.ErrConversationNotFound
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin intake commit: %w", err)
	}
	defer tx.Rollback()

	// The conditional update claims the completion inside the
	// transaction; a commit racing another one for the same conversation
	// finds zero rows and backs off without writing.
	now := time.Now()
	res, err := tx.Exec(`UPDATE conversations SET intake_completed = TRUE, updated_at = $1 WHERE id = $2 AND intake_completed = FALSE`,
		now, conversationID)
	if err != nil {
		slog.Error("PostgresStore CommitIntake completion update failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to mark conversation complete: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check completion update: %w", err)
	} else if n == 0 {
		slog.Debug("PostgresStore CommitIntake: conversation already completed, no-op", "conversationID", conversationID)
		return nil
	}

	for i, m := range messages {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := tx.Exec(`INSERT INTO messages (id, conversation_id, position, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			serverMessageID(m), conversationID, i, string(m.Role), m.Content, createdAt)
		if err != nil {
			slog.Error("PostgresStore CommitIntake message insert failed", "error", err, "conversationID", conversationID, "position", i)
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}
	for _, r := range responses {
		valueJSON, err := marshalValue(r.Value)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO responses (chatbot_id, user_id, question_id, value_json, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (chatbot_id, user_id, question_id) DO UPDATE SET value_json = EXCLUDED.value_json, updated_at = EXCLUDED.updated_at`,
			conv.ChatbotID, conv.UserID, r.QuestionID, valueJSON, now)
		if err != nil {
			slog.Error("PostgresStore CommitIntake response upsert failed", "error", err, "conversationID", conversationID, "questionID", r.QuestionID)
			return fmt.Errorf("failed to upsert response %s: %w", r.QuestionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit intake write: %w", err)
	}
	slog.Info("PostgresStore CommitIntake succeeded", "conversationID", conversationID, "messages", len(messages), "responses", len(responses))
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
