// Package intake implements the conversational intake subsystem: the
// gate decision, the question-by-question state machine, the local
// message log, and the batched persistence protocol.
package intake

import (
	"context"

	"github.com/chatforms/intakegate/internal/models"
)

// ConversationService is the remote persistence collaborator the intake
// machine talks to. Transport concerns (timeouts, retries below the
// request level) belong to the implementation; failures surface to the
// machine as ordinary errors.
type ConversationService interface {
	// CreateConversation opens a conversation for a user of a chatbot and
	// returns the server-assigned conversation id.
	CreateConversation(ctx context.Context, chatbotID, userID string) (string, error)

	// WelcomeFacts fetches everything the gate and machine need to open a
	// session. conversationID may be empty when no conversation exists yet.
	WelcomeFacts(ctx context.Context, chatbotID, userID, conversationID string) (*models.WelcomeFacts, error)

	// CommitIntake performs the single batched write of all collected
	// messages and responses for a completed intake session.
	CommitIntake(ctx context.Context, conversationID string, commit models.BatchCommitRequest) error

	// FetchSuggestions returns post-completion suggestion pills. Failure
	// must never block intake completion.
	FetchSuggestions(ctx context.Context, chatbotID string) ([]string, error)
}
