package intake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chatforms/intakegate/internal/models"
)

// Fixed conversation copy emitted by the machine.
const (
	// VerificationPrompt is shown under a previously saved answer.
	VerificationPrompt = "This is what I have. Is it still correct?"
	// Acknowledgement follows every submitted answer.
	Acknowledgement = "Thank you."
	// SkippedMarker is recorded as the user message for a skipped question.
	SkippedMarker = "(Skipped)"
	// ClosingMessage is emitted before the batch save.
	ClosingMessage = "When our conversation is finished, leave me a rating so I can improve!"
)

// DefaultCompletionDelay is the settle delay between a successful batch
// commit and the completion signal, giving the hosting surface a frame
// to render the closing state.
const DefaultCompletionDelay = 400 * time.Millisecond

// User-facing error copy.
const (
	errRequiredQuestion   = "This question is required and cannot be skipped."
	errConversationCreate = "Failed to start the conversation. Please try again."
	errBatchSave          = "Failed to save your answers. Please try again."
)

// lifecycle tracks initialization as an explicit progression so a
// re-entrant Initialize while one is in flight is rejected by state,
// not by an out-of-band flag.
type lifecycle int

const (
	lifecycleUninitialized lifecycle = iota
	lifecycleInitializing
	lifecycleReady
)

// Config assembles the inputs for one intake session. Questions and
// existing responses are snapshotted at construction; later mutation of
// the caller's copies never reaches the machine.
type Config struct {
	Service   ConversationService
	ChatbotID string
	UserID    string
	// ConversationID resumes an existing conversation when set; otherwise
	// Initialize creates one lazily.
	ConversationID string
	ChatbotName    string
	// WelcomeMessage overrides the default welcome copy when set.
	WelcomeMessage    string
	Questions         []models.Question
	ExistingResponses map[string]interface{}
	// OnComplete is invoked exactly once, with the conversation id, after
	// a successful batch commit.
	OnComplete func(conversationID string)
	// CompletionDelay overrides DefaultCompletionDelay (zero keeps the
	// default; negative disables the delay).
	CompletionDelay time.Duration
}

// Machine drives one intake session: it owns the state record, applies
// transitions, maintains the local message log, and performs the batched
// persistence at completion. All transitions are serialized; the only
// suspension points are the conversation-creation and batch-commit
// network calls, during which competing transitions are rejected as
// no-ops rather than queued.
type Machine struct {
	mu  sync.Mutex
	svc ConversationService

	chatbotID       string
	userID          string
	chatbotName     string
	welcomeMessage  string
	questions       []models.Question
	existing        map[string]interface{}
	onComplete      func(string)
	completionDelay time.Duration

	lifecycle      lifecycle
	phase          models.Phase
	mode           models.Mode
	stage          models.Stage
	currentInput   interface{}
	log            *MessageLog
	isSaving       bool
	isLoadingNext  bool
	errText        string
	errRetries     int
	pending        map[string]interface{}
	pendingOrder   []string
	conversationID string
	suggestions    []string
	version        uint64

	// batch holds the assembled commit payload while a save is pending or
	// failed; nil means no batch is outstanding.
	batch     *models.BatchCommitRequest
	completed bool
}

// NewMachine creates a machine for one (chatbot, user) intake session.
func NewMachine(cfg Config) *Machine {
	existing := make(map[string]interface{}, len(cfg.ExistingResponses))
	for k, v := range cfg.ExistingResponses {
		// Slice-typed answers (multi-select) are copied so later caller
		// mutation never reaches the snapshot.
		switch s := v.(type) {
		case []string:
			v = append([]string(nil), s...)
		case []interface{}:
			v = append([]interface{}(nil), s...)
		}
		existing[k] = v
	}
	delay := cfg.CompletionDelay
	if delay == 0 {
		delay = DefaultCompletionDelay
	} else if delay < 0 {
		delay = 0
	}
	slog.Debug("intake.NewMachine: creating machine",
		"chatbotID", cfg.ChatbotID, "userID", cfg.UserID,
		"questions", len(cfg.Questions), "existingResponses", len(existing),
		"resumeConversation", cfg.ConversationID != "")
	return &Machine{
		svc:             cfg.Service,
		chatbotID:       cfg.ChatbotID,
		userID:          cfg.UserID,
		chatbotName:     cfg.ChatbotName,
		welcomeMessage:  cfg.WelcomeMessage,
		questions:       models.SortQuestions(cfg.Questions),
		existing:        existing,
		onComplete:      cfg.OnComplete,
		completionDelay: delay,
		lifecycle:       lifecycleUninitialized,
		phase:           models.PhaseInitializing,
		mode:            models.ModeQuestion,
		stage:           models.WelcomeStage(),
		log:             NewMessageLog(),
		pending:         make(map[string]interface{}),
		conversationID:  cfg.ConversationID,
	}
}

// bumpLocked advances the version counter. Every logical transition
// bumps exactly once, atomically with its field changes, so a host
// driving UI frames can detect each transition individually.
func (m *Machine) bumpLocked() {
	m.version++
}

// State returns a read-only snapshot of the machine's state.
func (m *Machine) State() models.IntakeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := make([]models.QuestionResponse, 0, len(m.pendingOrder))
	for _, qid := range m.pendingOrder {
		pending = append(pending, models.QuestionResponse{QuestionID: qid, Value: m.pending[qid]})
	}
	suggestions := make([]string, len(m.suggestions))
	copy(suggestions, m.suggestions)
	return models.IntakeState{
		Phase:          m.phase,
		Mode:           m.mode,
		Stage:          m.stage,
		CurrentInput:   m.currentInput,
		Messages:       m.log.Messages(),
		IsSaving:       m.isSaving,
		IsLoadingNext:  m.isLoadingNext,
		Error:          m.errText,
		ErrorRetries:   m.errRetries,
		Pending:        pending,
		ConversationID: m.conversationID,
		Suggestions:    suggestions,
		Version:        m.version,
	}
}

// CurrentQuestion returns the active question, if the session is
// positioned at one.
func (m *Machine) CurrentQuestion() (models.Question, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stage.AtQuestion() {
		return models.Question{}, false
	}
	return m.questions[m.stage.Question], true
}

// SetCurrentInput records the in-progress, unsaved value for the active
// question. Ignored when the session is not positioned at a question.
func (m *Machine) SetCurrentInput(value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stage.AtQuestion() {
		slog.Warn("intake.Machine.SetCurrentInput: no active question, ignoring", "stage", m.stage.Kind)
		return
	}
	m.currentInput = value
	m.bumpLocked()
}

// Initialize creates or resumes the backing conversation and positions
// the session at the first unanswered question (or directly at final
// handling when there is nothing to ask). Runs at most once: a second
// call while initialization is in flight, or after it succeeded, is a
// rejected no-op.
func (m *Machine) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.lifecycle != lifecycleUninitialized {
		slog.Warn("intake.Machine.Initialize: already initializing or ready, ignoring", "lifecycle", m.lifecycle)
		m.mu.Unlock()
		return
	}
	m.lifecycle = lifecycleInitializing
	m.phase = models.PhaseInitializing
	m.isLoadingNext = true
	m.bumpLocked()
	needConversation := m.conversationID == ""
	chatbotID, userID := m.chatbotID, m.userID
	m.mu.Unlock()

	var convID string
	var err error
	if needConversation {
		convID, err = m.svc.CreateConversation(ctx, chatbotID, userID)
	}

	m.mu.Lock()
	m.isLoadingNext = false
	if err != nil {
		slog.Error("intake.Machine.Initialize: conversation creation failed", "error", err, "chatbotID", chatbotID, "userID", userID)
		// Back to uninitialized so the host can retry initialization.
		m.lifecycle = lifecycleUninitialized
		m.errText = errConversationCreate
		m.errRetries++
		m.bumpLocked()
		m.mu.Unlock()
		return
	}
	if needConversation {
		m.conversationID = convID
	}
	m.lifecycle = lifecycleReady
	m.errText = ""

	if len(m.questions) == 0 {
		slog.Debug("intake.Machine.Initialize: no questions, emitting welcome and finishing", "conversationID", m.conversationID)
		m.log.Append(models.MessageRoleAssistant, m.welcomeText())
		m.enterFinalLocked()
		m.mu.Unlock()
		m.commitBatch(ctx)
		return
	}

	first := m.firstUnansweredLocked()
	switch {
	case first < 0:
		// Everything already answered; nothing to ask.
		slog.Debug("intake.Machine.Initialize: all questions answered, finishing", "conversationID", m.conversationID)
		m.enterFinalLocked()
		m.mu.Unlock()
		m.commitBatch(ctx)
		return
	case first == 0:
		// Opening fresh: combined welcome plus the first question. By
		// construction question 0 has no saved answer here, so the flow
		// always opens in plain question mode.
		q := m.questions[0]
		m.stage = models.QuestionStage(0)
		m.mode = models.ModeQuestion
		m.phase = models.PhaseQuestion
		m.currentInput = nil
		m.log.Append(models.MessageRoleAssistant, m.welcomeText()+"\n\n"+questionText(q))
		m.bumpLocked()
		slog.Info("intake.Machine.Initialize: session opened at first question", "conversationID", m.conversationID)
	default:
		slog.Info("intake.Machine.Initialize: resuming at first unanswered question", "conversationID", m.conversationID, "index", first)
		m.showQuestionLocked(first)
	}
	m.mu.Unlock()
}

// firstUnansweredLocked returns the index of the first question without
// a saved answer, or -1 when every question is answered.
func (m *Machine) firstUnansweredLocked() int {
	for i := range m.questions {
		if _, ok := m.existing[m.questions[i].ID]; !ok {
			return i
		}
	}
	return -1
}

// latestKnownLocked resolves the most recent known value for a question:
// a locally pending re-answer overrides the originally saved one.
func (m *Machine) latestKnownLocked(questionID string) (interface{}, bool) {
	if v, ok := m.pending[questionID]; ok {
		return v, true
	}
	v, ok := m.existing[questionID]
	return v, ok
}

// welcomeText returns the session's welcome copy.
func (m *Machine) welcomeText() string {
	if m.welcomeMessage != "" {
		return m.welcomeMessage
	}
	name := m.chatbotName
	if name == "" {
		name = "your assistant"
	}
	return fmt.Sprintf("Hi! I'm %s. Before we start chatting, I have a few quick questions for you.", name)
}

// questionText renders a question for the conversation, helper text on
// its own line when present.
func questionText(q models.Question) string {
	if q.HelperText != "" {
		return q.Text + "\n" + q.HelperText
	}
	return q.Text
}

// showQuestionLocked positions the session at question i and emits the
// matching assistant message: a verification prompt when the question
// already has a known answer, the plain question otherwise.
func (m *Machine) showQuestionLocked(i int) {
	if i < 0 || i >= len(m.questions) {
		slog.Error("intake.Machine.showQuestion: index out of range, rejecting", "index", i, "questions", len(m.questions))
		return
	}
	m.stage = models.QuestionStage(i)
	m.currentInput = nil
	m.errText = ""
	q := m.questions[i]
	if val, ok := m.latestKnownLocked(q.ID); ok {
		m.mode = models.ModeVerification
		m.phase = models.PhaseVerification
		m.log.Append(models.MessageRoleAssistant,
			questionText(q)+"\n"+VerificationPrompt+"\n"+models.FormatAnswer(q.ResponseType, val))
	} else {
		m.mode = models.ModeQuestion
		m.phase = models.PhaseQuestion
		m.log.Append(models.MessageRoleAssistant, questionText(q))
	}
	m.bumpLocked()
	slog.Debug("intake.Machine.showQuestion: positioned at question", "index", i, "questionID", q.ID, "mode", m.mode)
}

// advanceLocked moves past the active question. Returns true when the
// session entered final handling and a batch commit is due.
func (m *Machine) advanceLocked() bool {
	next := m.stage.Question + 1
	if next < len(m.questions) {
		m.showQuestionLocked(next)
		return false
	}
	m.enterFinalLocked()
	return true
}

// enterFinalLocked emits the closing message, moves the session to the
// final stage, and assembles the batch commit payload. Responses carry
// the last answered value per question id, in first-answer order.
func (m *Machine) enterFinalLocked() {
	m.log.Append(models.MessageRoleAssistant, ClosingMessage)
	m.stage = models.FinalStage()
	m.phase = models.PhaseFinal
	m.mode = models.ModeQuestion
	m.currentInput = nil
	responses := make([]models.QuestionResponse, 0, len(m.pendingOrder))
	for _, qid := range m.pendingOrder {
		responses = append(responses, models.QuestionResponse{QuestionID: qid, Value: m.pending[qid]})
	}
	m.batch = &models.BatchCommitRequest{
		IntakeCompleted: true,
		Messages:        m.log.Messages(),
		Responses:       responses,
	}
	m.bumpLocked()
	slog.Info("intake.Machine.enterFinal: batch assembled", "conversationID", m.conversationID, "messages", len(m.batch.Messages), "responses", len(responses))
}

// HandleAnswer submits a value for the active question. Valid only in
// question or modify mode; a call while a save is in flight is a no-op,
// never queued.
func (m *Machine) HandleAnswer(ctx context.Context, value interface{}) {
	m.mu.Lock()
	if m.isSaving || m.isLoadingNext {
		slog.Warn("intake.Machine.HandleAnswer: busy, rejecting", "isSaving", m.isSaving, "isLoadingNext", m.isLoadingNext)
		m.mu.Unlock()
		return
	}
	if m.mode != models.ModeQuestion && m.mode != models.ModeModify {
		slog.Warn("intake.Machine.HandleAnswer: invalid mode, rejecting", "mode", m.mode)
		m.mu.Unlock()
		return
	}
	if !m.stage.AtQuestion() {
		slog.Warn("intake.Machine.HandleAnswer: no active question, rejecting", "stage", m.stage.Kind)
		m.mu.Unlock()
		return
	}
	q := m.questions[m.stage.Question]
	m.isSaving = true
	if _, answered := m.pending[q.ID]; !answered {
		m.pendingOrder = append(m.pendingOrder, q.ID)
	}
	m.pending[q.ID] = value
	m.log.Append(models.MessageRoleUser, models.FormatAnswer(q.ResponseType, value))
	m.log.Append(models.MessageRoleAssistant, Acknowledgement)
	m.isSaving = false
	slog.Info("intake.Machine.HandleAnswer: answer recorded", "questionID", q.ID, "index", m.stage.Question)
	commitDue := m.advanceLocked()
	m.mu.Unlock()
	if commitDue {
		m.commitBatch(ctx)
	}
}

// HandleSkip skips the active question. Skipping a required question is
// a validation error surfaced on the state; an optional skip records the
// skip marker in the conversation but contributes nothing to the
// persisted responses.
func (m *Machine) HandleSkip(ctx context.Context) {
	m.mu.Lock()
	if m.isSaving || m.isLoadingNext {
		slog.Warn("intake.Machine.HandleSkip: busy, rejecting", "isSaving", m.isSaving, "isLoadingNext", m.isLoadingNext)
		m.mu.Unlock()
		return
	}
	if m.mode != models.ModeQuestion {
		slog.Warn("intake.Machine.HandleSkip: invalid mode, rejecting", "mode", m.mode)
		m.mu.Unlock()
		return
	}
	if !m.stage.AtQuestion() {
		slog.Warn("intake.Machine.HandleSkip: no active question, rejecting", "stage", m.stage.Kind)
		m.mu.Unlock()
		return
	}
	q := m.questions[m.stage.Question]
	if q.IsRequired {
		m.errText = errRequiredQuestion
		m.bumpLocked()
		slog.Debug("intake.Machine.HandleSkip: required question, skip refused", "questionID", q.ID)
		m.mu.Unlock()
		return
	}
	m.log.Append(models.MessageRoleUser, SkippedMarker)
	m.log.Append(models.MessageRoleAssistant, Acknowledgement)
	slog.Info("intake.Machine.HandleSkip: question skipped", "questionID", q.ID, "index", m.stage.Question)
	commitDue := m.advanceLocked()
	m.mu.Unlock()
	if commitDue {
		m.commitBatch(ctx)
	}
}

// HandleVerifyYes confirms the previously saved answer for the active
// question and advances. The existing answer stands; no messages are
// appended and nothing new is persisted.
func (m *Machine) HandleVerifyYes(ctx context.Context) {
	m.mu.Lock()
	if m.isSaving || m.isLoadingNext {
		slog.Warn("intake.Machine.HandleVerifyYes: busy, rejecting", "isSaving", m.isSaving, "isLoadingNext", m.isLoadingNext)
		m.mu.Unlock()
		return
	}
	if m.mode != models.ModeVerification {
		slog.Warn("intake.Machine.HandleVerifyYes: not in verification mode, rejecting", "mode", m.mode)
		m.mu.Unlock()
		return
	}
	slog.Info("intake.Machine.HandleVerifyYes: answer confirmed", "index", m.stage.Question)
	commitDue := m.advanceLocked()
	m.mu.Unlock()
	if commitDue {
		m.commitBatch(ctx)
	}
}

// HandleVerifyModify switches the active question into modify mode, with
// the current input pre-filled from the latest known value (a pending
// re-answer overrides the originally saved one). The index is unchanged;
// the following HandleAnswer behaves exactly as in question mode.
func (m *Machine) HandleVerifyModify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != models.ModeVerification {
		slog.Warn("intake.Machine.HandleVerifyModify: not in verification mode, rejecting", "mode", m.mode)
		return
	}
	q := m.questions[m.stage.Question]
	val, _ := m.latestKnownLocked(q.ID)
	m.mode = models.ModeModify
	m.phase = models.PhaseModify
	m.currentInput = val
	m.bumpLocked()
	slog.Info("intake.Machine.HandleVerifyModify: entering modify mode", "questionID", q.ID, "index", m.stage.Question)
}

// RetryBatchSave re-attempts a failed batch commit with the originally
// assembled payload. When no batch is pending it is a no-op and performs
// no network call.
func (m *Machine) RetryBatchSave(ctx context.Context) {
	m.mu.Lock()
	if m.batch == nil || m.completed {
		slog.Debug("intake.Machine.RetryBatchSave: no batch pending, ignoring", "completed", m.completed)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	slog.Info("intake.Machine.RetryBatchSave: retrying batch commit", "conversationID", m.conversationID)
	m.commitBatch(ctx)
}

// commitBatch performs the single batched write of the assembled
// payload. On failure the session stays at the final stage with the
// payload retained for retry; on success the session completes, fetches
// suggestions (failure is non-blocking), and signals completion once.
func (m *Machine) commitBatch(ctx context.Context) {
	m.mu.Lock()
	if m.batch == nil || m.completed {
		slog.Debug("intake.Machine.commitBatch: nothing to commit", "completed", m.completed)
		m.mu.Unlock()
		return
	}
	if m.isSaving {
		slog.Warn("intake.Machine.commitBatch: commit already in flight, rejecting")
		m.mu.Unlock()
		return
	}
	m.isSaving = true
	m.phase = models.PhaseSaving
	m.bumpLocked()
	payload := *m.batch
	convID := m.conversationID
	m.mu.Unlock()

	err := m.svc.CommitIntake(ctx, convID, payload)

	m.mu.Lock()
	m.isSaving = false
	if err != nil {
		slog.Error("intake.Machine.commitBatch: batch commit failed", "error", err, "conversationID", convID)
		m.phase = models.PhaseFinal
		m.errText = errBatchSave
		m.errRetries++
		m.bumpLocked()
		m.mu.Unlock()
		return
	}
	m.errText = ""
	m.batch = nil
	m.completed = true
	m.phase = models.PhaseCompleted
	m.bumpLocked()
	onComplete := m.onComplete
	delay := m.completionDelay
	m.mu.Unlock()
	slog.Info("intake.Machine.commitBatch: batch commit succeeded", "conversationID", convID)

	suggestions, sErr := m.svc.FetchSuggestions(ctx, m.chatbotID)
	if sErr != nil {
		slog.Warn("intake.Machine.commitBatch: suggestion fetch failed, continuing", "error", sErr, "chatbotID", m.chatbotID)
	} else {
		m.mu.Lock()
		m.suggestions = suggestions
		m.bumpLocked()
		m.mu.Unlock()
	}

	if onComplete != nil {
		if delay > 0 {
			time.Sleep(delay)
		}
		onComplete(convID)
	}
}
