package intake

import (
	"log/slog"

	"github.com/chatforms/intakegate/internal/models"
)

// GateInput bundles the facts the gate decision is made from. All fields
// are plain values so the decision is a pure function of its input.
type GateInput struct {
	// AuthResolved reports whether the auth state has been determined yet.
	AuthResolved bool
	// Authenticated reports whether the caller is signed in.
	Authenticated bool
	// FactsLoaded reports whether the welcome facts fetch has resolved.
	FactsLoaded bool
	// ConversationID is the session's conversation, if one exists.
	ConversationID string
	// HasMessages reports whether that conversation already has messages.
	HasMessages bool
	// IntakeCompleted reports whether that conversation is marked
	// intake-complete.
	IntakeCompleted bool
	// ChatbotHasQuestions reports whether the chatbot has any intake
	// questions at all.
	ChatbotHasQuestions bool
	// AllQuestionsAnswered reports whether the user already answered
	// every question for this chatbot.
	AllQuestionsAnswered bool
}

// DecideGate chooses between showing intake and showing chat for a
// session. Deterministic and side-effect-free: same input, same output.
//
// Priority order: unauthenticated or unresolved auth fails open to an
// empty chat shell; unresolved facts keep the gate checking; a
// conversation that is intake-complete or already has messages goes to
// chat; a chatbot with no questions goes to chat; a user who answered
// everything goes to chat; everything else gates on intake.
func DecideGate(in GateInput) models.GateState {
	if !in.AuthResolved || !in.Authenticated {
		return models.GateChat
	}
	if !in.FactsLoaded {
		return models.GateChecking
	}
	if in.ConversationID != "" && (in.IntakeCompleted || in.HasMessages) {
		return models.GateChat
	}
	if !in.ChatbotHasQuestions {
		return models.GateChat
	}
	if in.AllQuestionsAnswered {
		return models.GateChat
	}
	return models.GateIntake
}

// logGateDecision traces one decision at debug level. Split from
// DecideGate so the decision itself stays pure.
func logGateDecision(in GateInput, out models.GateState) {
	slog.Debug("DecideGate",
		"authResolved", in.AuthResolved,
		"authenticated", in.Authenticated,
		"factsLoaded", in.FactsLoaded,
		"conversationID", in.ConversationID,
		"hasMessages", in.HasMessages,
		"intakeCompleted", in.IntakeCompleted,
		"chatbotHasQuestions", in.ChatbotHasQuestions,
		"allAnswered", in.AllQuestionsAnswered,
		"decision", out)
}
