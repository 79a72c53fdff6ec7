package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chatforms/intakegate/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalOptions serializes a question's option list for storage.
// Empty lists store as NULL.
func marshalOptions(options []string) (interface{}, error) {
	if len(options) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	return string(data), nil
}

// marshalValue serializes an answer value for storage.
func marshalValue(value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response value: %w", err)
	}
	return string(data), nil
}

// scanChatbotRow scans a Chatbot from a single sql.Row.
func scanChatbotRow(row *sql.Row) (*models.Chatbot, error) {
	var c models.Chatbot
	var purpose sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &purpose); err != nil {
		return nil, err
	}
	c.Purpose = purpose.String
	return &c, nil
}

// scanConversationRow scans a Conversation from a single sql.Row.
func scanConversationRow(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	if err := row.Scan(&conv.ID, &conv.ChatbotID, &conv.UserID, &conv.IntakeCompleted, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}
	return &conv, nil
}

// scanQuestions scans the full question result set.
func scanQuestions(rows *sql.Rows) ([]models.Question, error) {
	var questions []models.Question
	for rows.Next() {
		var q models.Question
		var helperText, optionsJSON sql.NullString
		var responseType string
		if err := rows.Scan(&q.ID, &q.Text, &helperText, &responseType, &q.DisplayOrder, &q.IsRequired, &optionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		q.HelperText = helperText.String
		q.ResponseType = models.ResponseType(responseType)
		if optionsJSON.Valid && optionsJSON.String != "" {
			if err := json.Unmarshal([]byte(optionsJSON.String), &q.Options); err != nil {
				return nil, fmt.Errorf("failed to unmarshal options for question %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question rows: %w", err)
	}
	return questions, nil
}

// scanResponses scans the saved-answer result set into a question-id map.
func scanResponses(rows *sql.Rows) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	for rows.Next() {
		var questionID, valueJSON string
		if err := rows.Scan(&questionID, &valueJSON); err != nil {
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		var value interface{}
		if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response value for %s: %w", questionID, err)
		}
		out[questionID] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}
	return out, nil
}
