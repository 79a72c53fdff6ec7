// Package store provides storage backends for IntakeGate.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chatforms/intakegate/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists IntakeGate data in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveChatbot(c models.Chatbot) error {
	_, err := s.db.Exec(`INSERT INTO chatbots (id, name, purpose) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, purpose = excluded.purpose`,
		c.ID, c.Name, nilIfEmpty(c.Purpose))
	if err != nil {
		slog.Error("SQLiteStore SaveChatbot failed", "error", err, "chatbotID", c.ID)
		return fmt.Errorf("failed to save chatbot %s: %w", c.ID, err)
	}
	slog.Debug("SQLiteStore SaveChatbot succeeded", "chatbotID", c.ID)
	return nil
}

func (s *SQLiteStore) GetChatbot(id string) (*models.Chatbot, error) {
	row := s.db.QueryRow(`SELECT id, name, purpose FROM chatbots WHERE id = ?`, id)
	c, err := scanChatbotRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetChatbot failed", "error", err, "chatbotID", id)
		return nil, fmt.Errorf("failed to get chatbot %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) SaveQuestions(chatbotID string, questions []models.Question) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin question save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM questions WHERE chatbot_id = ?`, chatbotID); err != nil {
		slog.Error("SQLiteStore SaveQuestions delete failed", "error", err, "chatbotID", chatbotID)
		return fmt.Errorf("failed to clear questions for %s: %w", chatbotID, err)
	}
	for _, q := range questions {
		optionsJSON, err := marshalOptions(q.Options)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO questions (chatbot_id, id, text, helper_text, response_type, display_order, is_required, options_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			chatbotID, q.ID, q.Text, nilIfEmpty(q.HelperText), string(q.ResponseType), q.DisplayOrder, q.IsRequired, optionsJSON)
		if err != nil {
			slog.Error("SQLiteStore SaveQuestions insert failed", "error", err, "chatbotID", chatbotID, "questionID", q.ID)
			return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit question save: %w", err)
	}
	slog.Debug("SQLiteStore SaveQuestions succeeded", "chatbotID", chatbotID, "count", len(questions))
	return nil
}

func (s *SQLiteStore) ListQuestions(chatbotID string) ([]models.Question, error) {
	rows, err := s.db.Query(`SELECT id, text, helper_text, response_type, display_order, is_required, options_json
		FROM questions WHERE chatbot_id = ? ORDER BY display_order`, chatbotID)
	if err != nil {
		slog.Error("SQLiteStore ListQuestions query failed", "error", err, "chatbotID", chatbotID)
		return nil, fmt.Errorf("failed to query questions for %s: %w", chatbotID, err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *SQLiteStore) CreateConversation(conv Conversation) error {
	_, err := s.db.Exec(`INSERT INTO conversations (id, chatbot_id, user_id, intake_completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.ChatbotID, conv.UserID, conv.IntakeCompleted, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateConversation failed", "error", err, "conversationID", conv.ID)
		return fmt.Errorf("failed to create conversation %s: %w", conv.ID, err)
	}
	slog.Debug("SQLiteStore CreateConversation succeeded", "conversationID", conv.ID)
	return nil
}

func (s *SQLiteStore) GetConversation(id string) (*Conversation, error) {
	row := s.db.QueryRow(`SELECT id, chatbot_id, user_id, intake_completed, created_at, updated_at
		FROM conversations WHERE id = ?`, id)
	conv, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "conversationID", id)
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *SQLiteStore) GetResponses(chatbotID, userID string) (map[string]interface{}, error) {
	rows, err := s.db.Query(`SELECT question_id, value_json FROM responses WHERE chatbot_id = ? AND user_id = ?`,
		chatbotID, userID)
	if err != nil {
		slog.Error("SQLiteStore GetResponses query failed", "error", err, "chatbotID", chatbotID, "userID", userID)
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func (s *SQLiteStore) ConversationHasMessages(conversationID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore ConversationHasMessages failed", "error", err, "conversationID", conversationID)
		return false, fmt.Errorf("failed to count messages: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) CommitIntake(conversationID string, messages []models.Message, responses []models.QuestionResponse) error {
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
	res, err := tx.Exec(`UPDATE conversations SET intake_completed = 1, updated_at = ? WHERE id = ? AND intake_completed = 0`,
		now, conversationID)
	if err != nil {
		slog.Error("SQLiteStore CommitIntake completion update failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to mark conversation complete: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check completion update: %w", err)
	} else if n == 0 {
		slog.Debug("SQLiteStore CommitIntake: conversation already completed, no-op", "conversationID", conversationID)
		return nil
	}

	for i, m := range messages {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := tx.Exec(`INSERT INTO messages (id, conversation_id, position, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			serverMessageID(m), conversationID, i, string(m.Role), m.Content, createdAt)
		if err != nil {
			slog.Error("SQLiteStore CommitIntake message insert failed", "error", err, "conversationID", conversationID, "position", i)
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}
	for _, r := range responses {
		valueJSON, err := marshalValue(r.Value)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO responses (chatbot_id, user_id, question_id, value_json, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(chatbot_id, user_id, question_id) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`,
			conv.ChatbotID, conv.UserID, r.QuestionID, valueJSON, now)
		if err != nil {
			slog.Error("SQLiteStore CommitIntake response upsert failed", "error", err, "conversationID", conversationID, "questionID", r.QuestionID)
			return fmt.Errorf("failed to upsert response %s: %w", r.QuestionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit intake write: %w", err)
	}
	slog.Info("SQLiteStore CommitIntake succeeded", "conversationID", conversationID, "messages", len(messages), "responses", len(responses))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
