package models

// Wire shapes exchanged with the conversation persistence service. The
// intake machine consumes these through the ConversationService
// interface; the HTTP API serves them.

// CreateConversationRequest asks the service to open a conversation for
// one participant of a chatbot.
type CreateConversationRequest struct {
	UserID string `json:"user_id"`
}

// Validate ensures the request carries a participant.
func (r *CreateConversationRequest) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	return nil
}

// CreateConversationResponse carries the server-assigned conversation id.
type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// WelcomeFacts bundles everything the gate and the intake machine need
// to open a session: chatbot identity, the question list, previously
// saved answers, and conversation-scoped flags.
type WelcomeFacts struct {
	ChatbotName          string                 `json:"chatbot_name"`
	ChatbotPurpose       string                 `json:"chatbot_purpose,omitempty"`
	HasQuestions         bool                   `json:"has_questions"`
	Questions            []Question             `json:"questions"`
	ExistingResponses    map[string]interface{} `json:"existing_responses"`
	IntakeCompleted      bool                   `json:"intake_completed"`
	ConversationMessages bool                   `json:"conversation_has_messages"`
}

// AllQuestionsAnswered reports whether every question already has a
// saved answer.
func (w *WelcomeFacts) AllQuestionsAnswered() bool {
	if len(w.Questions) == 0 {
		return true
	}
	for i := range w.Questions {
		if _, ok := w.ExistingResponses[w.Questions[i].ID]; !ok {
			return false
		}
	}
	return true
}

// BatchCommitRequest is the single deferred write that persists all
// collected messages and answers at intake completion.
type BatchCommitRequest struct {
	IntakeCompleted bool               `json:"intake_completed"`
	Messages        []Message          `json:"messages"`
	Responses       []QuestionResponse `json:"responses"`
}

// Validate checks the commit is marked complete and response entries are
// well-formed.
func (r *BatchCommitRequest) Validate() error {
	for i := range r.Responses {
		if r.Responses[i].QuestionID == "" {
			return ErrEmptyQuestionID
		}
	}
	return nil
}

// SuggestionsResponse carries post-completion suggestion pills.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}
