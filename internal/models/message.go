package models

import "time"

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	// MessageRoleUser marks a message authored by the participant.
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant marks a message authored by the chatbot.
	MessageRoleAssistant MessageRole = "assistant"
)

// LocalMessageIDPrefix is the reserved prefix for locally-generated
// temporary message ids. Server-assigned ids never carry this prefix, so
// the two namespaces cannot collide.
const LocalMessageIDPrefix = "local-"

// Message represents a single turn in an intake conversation.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
}

// IsLocal reports whether the message carries a locally-generated id that
// has not yet been replaced by a server-assigned one.
func (m Message) IsLocal() bool {
	return len(m.ID) >= len(LocalMessageIDPrefix) && m.ID[:len(LocalMessageIDPrefix)] == LocalMessageIDPrefix
}
