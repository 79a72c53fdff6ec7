// Package models defines the core data structures for IntakeGate.
//
// It includes types for intake questions, conversation messages, and the
// state record owned by the intake machine, which are shared across modules.
package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ResponseType defines how a question expects to be answered.
type ResponseType string

const (
	// ResponseTypeText expects free-form text.
	ResponseTypeText ResponseType = "TEXT"
	// ResponseTypeNumber expects a numeric value.
	ResponseTypeNumber ResponseType = "NUMBER"
	// ResponseTypeSelect expects exactly one of the question's options.
	ResponseTypeSelect ResponseType = "SELECT"
	// ResponseTypeMultiSelect expects zero or more of the question's options.
	ResponseTypeMultiSelect ResponseType = "MULTI_SELECT"
	// ResponseTypeBoolean expects a yes/no answer.
	ResponseTypeBoolean ResponseType = "BOOLEAN"
)

// Validation constants for input validation
const (
	// MaxQuestionTextLength defines the maximum allowed length for question text
	MaxQuestionTextLength = 1000
	// MaxOptionLength defines the maximum allowed length for a select option label
	MaxOptionLength = 200
	// MaxOptionsCount defines the maximum number of options for select questions
	MaxOptionsCount = 25
	// MinOptionsCount defines the minimum number of options for select questions
	MinOptionsCount = 2
)

// Error variables for better error handling and testability
var (
	ErrEmptyQuestionID      = errors.New("question id cannot be empty")
	ErrEmptyQuestionText    = errors.New("question text cannot be empty")
	ErrQuestionTextTooLong  = errors.New("question text exceeds maximum length")
	ErrInvalidResponseType  = errors.New("invalid response type")
	ErrMissingOptions       = errors.New("options are required for select questions")
	ErrInsufficientOptions  = errors.New("insufficient options for select question")
	ErrTooManyOptions       = errors.New("too many options for select question")
	ErrEmptyOption          = errors.New("option label cannot be empty")
	ErrOptionTooLong        = errors.New("option label exceeds maximum length")
	ErrDuplicateQuestionID  = errors.New("duplicate question id")
	ErrEmptyChatbotID       = errors.New("chatbot id cannot be empty")
	ErrEmptyChatbotName     = errors.New("chatbot name cannot be empty")
	ErrEmptyUserID          = errors.New("user id cannot be empty")
	ErrEmptyConversationID  = errors.New("conversation id cannot be empty")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrChatbotNotFound      = errors.New("chatbot not found")
)

// IsValidResponseType checks if the given response type is supported.
func IsValidResponseType(rt ResponseType) bool {
	switch rt {
	case ResponseTypeText, ResponseTypeNumber, ResponseTypeSelect, ResponseTypeMultiSelect, ResponseTypeBoolean:
		return true
	default:
		return false
	}
}

// Question represents one intake question. Questions are immutable inputs
// to the intake machine; ID is the stable join key against saved responses.
type Question struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	HelperText   string       `json:"helper_text,omitempty"`
	ResponseType ResponseType `json:"response_type"`
	DisplayOrder int          `json:"display_order"`
	IsRequired   bool         `json:"is_required"`
	Options      []string     `json:"options,omitempty"`
}

// Validate performs comprehensive validation on a Question structure.
func (q *Question) Validate() error {
	if q.ID == "" {
		return ErrEmptyQuestionID
	}
	if q.Text == "" {
		return ErrEmptyQuestionText
	}
	if len(q.Text) > MaxQuestionTextLength {
		return ErrQuestionTextTooLong
	}
	if !IsValidResponseType(q.ResponseType) {
		return ErrInvalidResponseType
	}
	if q.ResponseType == ResponseTypeSelect || q.ResponseType == ResponseTypeMultiSelect {
		return q.validateOptions()
	}
	return nil
}

// validateOptions validates select/multi-select option requirements.
func (q *Question) validateOptions() error {
	if len(q.Options) == 0 {
		return ErrMissingOptions
	}
	if len(q.Options) < MinOptionsCount {
		return ErrInsufficientOptions
	}
	if len(q.Options) > MaxOptionsCount {
		return ErrTooManyOptions
	}
	for _, opt := range q.Options {
		if opt == "" {
			return ErrEmptyOption
		}
		if len(opt) > MaxOptionLength {
			return ErrOptionTooLong
		}
	}
	return nil
}

// ValidateQuestions validates a full question list and checks id uniqueness.
func ValidateQuestions(questions []Question) error {
	seen := make(map[string]bool, len(questions))
	for i := range questions {
		if err := questions[i].Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		if seen[questions[i].ID] {
			return fmt.Errorf("question %d (%s): %w", i, questions[i].ID, ErrDuplicateQuestionID)
		}
		seen[questions[i].ID] = true
	}
	return nil
}

// SortQuestions returns a copy of the question list ordered by DisplayOrder.
// Ties preserve the incoming order. Options slices are copied too, so the
// result shares no memory with the caller's questions.
func SortQuestions(questions []Question) []Question {
	sorted := make([]Question, len(questions))
	copy(sorted, questions)
	for i := range sorted {
		if len(sorted[i].Options) > 0 {
			sorted[i].Options = append([]string(nil), sorted[i].Options...)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisplayOrder < sorted[j].DisplayOrder
	})
	return sorted
}

// FormatAnswer renders an answer value for display in a conversation bubble.
// Multi-select values are joined with ", ", booleans render as Yes/No, and
// everything else falls back to plain string conversion.
func FormatAnswer(rt ResponseType, value interface{}) string {
	switch rt {
	case ResponseTypeMultiSelect:
		switch v := value.(type) {
		case []string:
			return strings.Join(v, ", ")
		case []interface{}:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			return strings.Join(parts, ", ")
		}
	case ResponseTypeBoolean:
		if v, ok := value.(bool); ok {
			if v {
				return "Yes"
			}
			return "No"
		}
	}
	return fmt.Sprintf("%v", value)
}

// QuestionResponse pairs a question id with its answered value for persistence.
type QuestionResponse struct {
	QuestionID string      `json:"question_id"`
	Value      interface{} `json:"value"`
}

// Chatbot represents a configured chatbot whose conversations may be gated
// by an intake questionnaire.
type Chatbot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Purpose string `json:"purpose,omitempty"`
}

// Validate ensures the chatbot has required fields.
func (c *Chatbot) Validate() error {
	if c.ID == "" {
		return ErrEmptyChatbotID
	}
	if c.Name == "" {
		return ErrEmptyChatbotName
	}
	return nil
}

// API Response types for consistent JSON responses

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful API response.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed API response.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
