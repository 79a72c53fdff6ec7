package intake

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chatforms/intakegate/internal/models"
)

// GateHookInput identifies one session for the gate hook. A refresh is
// expected whenever any of these change.
type GateHookInput struct {
	ChatbotID      string
	UserID         string
	ConversationID string
	AuthResolved   bool
	Authenticated  bool
}

// GateHook composes the gate decision with live conversation data: it
// fetches the welcome facts for a session, feeds them to DecideGate, and
// holds the resulting gate state for the hosting chat surface. Once
// OnIntakeComplete fires, the gate is pinned to chat so a trailing
// refresh can never flash the surface back to intake.
type GateHook struct {
	mu     sync.Mutex
	svc    ConversationService
	input  GateHookInput
	facts  *models.WelcomeFacts
	state  models.GateState
	pinned bool
	// pinnedConversationID is the conversation completion was signaled
	// for, handed to the chat surface.
	pinnedConversationID string
}

// NewGateHook creates a gate hook over the given conversation service.
func NewGateHook(svc ConversationService) *GateHook {
	return &GateHook{svc: svc, state: models.GateChecking}
}

// Refresh re-evaluates the gate for the given input, fetching fresh
// welcome facts when auth permits. Returns the resulting gate state.
func (h *GateHook) Refresh(ctx context.Context, in GateHookInput) models.GateState {
	h.mu.Lock()
	if h.pinned {
		slog.Debug("GateHook.Refresh: gate pinned to chat, skipping fetch", "conversationID", h.pinnedConversationID)
		h.mu.Unlock()
		return models.GateChat
	}
	h.input = in
	if !in.AuthResolved || !in.Authenticated {
		decision := DecideGate(GateInput{AuthResolved: in.AuthResolved, Authenticated: in.Authenticated})
		logGateDecision(GateInput{AuthResolved: in.AuthResolved, Authenticated: in.Authenticated}, decision)
		h.state = decision
		h.mu.Unlock()
		return decision
	}
	h.state = models.GateChecking
	h.mu.Unlock()

	facts, err := h.svc.WelcomeFacts(ctx, in.ChatbotID, in.UserID, in.ConversationID)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pinned {
		// Completed while the fetch was in flight; the pin wins.
		return models.GateChat
	}
	if h.input != in {
		// A newer refresh superseded this one; keep its state.
		slog.Debug("GateHook.Refresh: stale fetch discarded", "chatbotID", in.ChatbotID)
		return h.state
	}
	if err != nil {
		slog.Error("GateHook.Refresh: welcome facts fetch failed", "error", err, "chatbotID", in.ChatbotID, "userID", in.UserID)
		h.state = models.GateChecking
		return h.state
	}
	h.facts = facts
	gi := GateInput{
		AuthResolved:         in.AuthResolved,
		Authenticated:        in.Authenticated,
		FactsLoaded:          true,
		ConversationID:       in.ConversationID,
		HasMessages:          facts.ConversationMessages,
		IntakeCompleted:      facts.IntakeCompleted,
		ChatbotHasQuestions:  facts.HasQuestions,
		AllQuestionsAnswered: facts.AllQuestionsAnswered(),
	}
	h.state = DecideGate(gi)
	logGateDecision(gi, h.state)
	return h.state
}

// State returns the current gate state.
func (h *GateHook) State() models.GateState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pinned {
		return models.GateChat
	}
	return h.state
}

// Facts returns the most recently fetched welcome facts, or nil before
// the first successful refresh. The hosting surface uses them to
// construct the intake machine (question list, existing responses).
func (h *GateHook) Facts() *models.WelcomeFacts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.facts
}

// OnIntakeComplete synchronously forces the gate to chat for the given
// conversation, independent of any in-flight or future data fetch.
func (h *GateHook) OnIntakeComplete(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pinned = true
	h.pinnedConversationID = conversationID
	h.state = models.GateChat
	slog.Info("GateHook.OnIntakeComplete: gate pinned to chat", "conversationID", conversationID)
}

// CompletedConversationID returns the conversation the gate was pinned
// for, if completion has been signaled.
func (h *GateHook) CompletedConversationID() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pinnedConversationID, h.pinned
}
