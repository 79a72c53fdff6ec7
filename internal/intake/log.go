package intake

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/chatforms/intakegate/internal/models"
)

// MessageLog is an ordered, id-deduplicated sequence of conversation
// turns. Messages are held locally and folded into the batch commit at
// intake completion, so the log preserves exact emission order and is
// never reordered.
//
// The log is not safe for concurrent use on its own; the owning machine
// serializes access.
type MessageLog struct {
	messages    []models.Message
	ids         map[string]bool
	nextLocalID int
}

// NewMessageLog creates an empty message log.
func NewMessageLog() *MessageLog {
	return &MessageLog{ids: make(map[string]bool)}
}

// Append assigns the next local temporary id and appends a message.
// Local ids are sequential per session and carry the reserved local
// prefix so they can never collide with server-assigned ids.
func (l *MessageLog) Append(role models.MessageRole, content string) models.Message {
	l.nextLocalID++
	msg := models.Message{
		ID:        fmt.Sprintf("%s%d", models.LocalMessageIDPrefix, l.nextLocalID),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	// A freshly minted local id cannot already be present.
	l.messages = append(l.messages, msg)
	l.ids[msg.ID] = true
	slog.Debug("MessageLog.Append: message appended", "id", msg.ID, "role", msg.Role, "length", len(l.messages))
	return msg
}

// AppendMessage appends a message that already carries an id. The
// machine itself always mints local ids through Append; this path is
// for hosts replaying server-assigned messages into the log, where a
// re-delivered message must not duplicate. A duplicate id is detected,
// reported, and leaves the log unchanged.
func (l *MessageLog) AppendMessage(msg models.Message) bool {
	if l.ids[msg.ID] {
		slog.Warn("MessageLog.AppendMessage: duplicate message id, append skipped", "id", msg.ID, "role", msg.Role)
		return false
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	l.messages = append(l.messages, msg)
	l.ids[msg.ID] = true
	slog.Debug("MessageLog.AppendMessage: message appended", "id", msg.ID, "role", msg.Role, "length", len(l.messages))
	return true
}

// Messages returns a copy of the log in emission order.
func (l *MessageLog) Messages() []models.Message {
	out := make([]models.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages in the log.
func (l *MessageLog) Len() int {
	return len(l.messages)
}
