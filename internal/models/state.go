// Package models defines state management structures for intake flows.
package models

// Phase represents the coarse lifecycle position of an intake session.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseQuestion     Phase = "question"
	PhaseVerification Phase = "verification"
	PhaseModify       Phase = "modify"
	PhaseSaving       Phase = "saving"
	PhaseFinal        Phase = "final"
	PhaseCompleted    Phase = "completed"
)

// Mode represents the input sub-state of the active question.
type Mode string

const (
	// ModeQuestion collects a fresh answer.
	ModeQuestion Mode = "question"
	// ModeVerification presents a previously saved answer for confirmation.
	ModeVerification Mode = "verification"
	// ModeModify edits a previously saved answer before re-submitting.
	ModeModify Mode = "modify"
)

// StageKind discriminates the ordered position of a session within its
// question list.
type StageKind string

const (
	// StageWelcome is the position before the first question.
	StageWelcome StageKind = "welcome"
	// StageAtQuestion is a position at a concrete question index.
	StageAtQuestion StageKind = "at_question"
	// StageFinal is the position past the last question, where the batch
	// save happens.
	StageFinal StageKind = "final"
)

// Stage is the tagged position of an intake session: welcome, at a
// question, or final. The question index is only meaningful for
// StageAtQuestion.
type Stage struct {
	Kind     StageKind `json:"kind"`
	Question int       `json:"question,omitempty"`
}

// WelcomeStage returns the position before the first question.
func WelcomeStage() Stage { return Stage{Kind: StageWelcome} }

// QuestionStage returns the position at question index i.
func QuestionStage(i int) Stage { return Stage{Kind: StageAtQuestion, Question: i} }

// FinalStage returns the position past the last question.
func FinalStage() Stage { return Stage{Kind: StageFinal} }

// Index derives the legacy signed index for this stage: -1 for welcome,
// -2 for final, and the question index otherwise. Consumers that render
// progress keep working against the historical contract without the
// machine itself juggling sentinels.
func (s Stage) Index() int {
	switch s.Kind {
	case StageWelcome:
		return -1
	case StageFinal:
		return -2
	default:
		return s.Question
	}
}

// AtQuestion reports whether the stage points at a concrete question.
func (s Stage) AtQuestion() bool { return s.Kind == StageAtQuestion }

// IntakeState is a read-only snapshot of the intake machine's state,
// handed to the hosting surface on every observation. The machine owns
// the live record; hosts never mutate a snapshot back into it.
type IntakeState struct {
	Phase          Phase              `json:"phase"`
	Mode           Mode               `json:"mode"`
	Stage          Stage              `json:"stage"`
	CurrentInput   interface{}        `json:"current_input,omitempty"`
	Messages       []Message          `json:"messages"`
	IsSaving       bool               `json:"is_saving"`
	IsLoadingNext  bool               `json:"is_loading_next_question"`
	Error          string             `json:"error,omitempty"`
	ErrorRetries   int                `json:"error_retry_count"`
	Pending        []QuestionResponse `json:"pending_responses"`
	ConversationID string             `json:"conversation_id,omitempty"`
	Suggestions    []string           `json:"suggestions,omitempty"`
	Version        uint64             `json:"version"`
}

// CurrentQuestionIndex derives the legacy signed question index.
func (s IntakeState) CurrentQuestionIndex() int { return s.Stage.Index() }

// IsVerification reports whether the snapshot is collecting a
// confirmation of a saved answer. Presentation-boundary accessor; the
// mode field is the single source of truth.
func (s IntakeState) IsVerification() bool { return s.Mode == ModeVerification }

// IsModify reports whether the snapshot is editing a saved answer.
func (s IntakeState) IsModify() bool { return s.Mode == ModeModify }

// GateState is the outcome of the gate decision for a session.
type GateState string

const (
	// GateChecking means the gate facts are still being resolved.
	GateChecking GateState = "checking"
	// GateIntake means the intake questionnaire must be shown.
	GateIntake GateState = "intake"
	// GateChat means free-form chat may be shown.
	GateChat GateState = "chat"
)
