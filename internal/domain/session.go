package domain

// Phase is the named state of a quiz session.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseGenerating Phase = "generating"
	PhaseTaking     Phase = "taking"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// Pending reports whether a collaborator call is in flight in this phase.
func (p Phase) Pending() bool {
	return p == PhaseGenerating || p == PhaseSubmitting
}

// QuestionView is a question as shown to the participant, without the answer key.
type QuestionView struct {
	Text       string     `json:"question"`
	Choices    []string   `json:"choices"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	Topic      string     `json:"topic,omitempty"`
}

// Snapshot is a read-only copy of a session's state for rendering.
type Snapshot struct {
	SessionID       string         `json:"sessionId"`
	Attempt         uint64         `json:"attempt"`
	Phase           Phase          `json:"phase"`
	Config          *SessionConfig `json:"config,omitempty"`
	Question        *QuestionView  `json:"question,omitempty"`
	CurrentIndex    int            `json:"currentIndex"`
	Total           int            `json:"total"`
	Answered        int            `json:"answered"`
	Answers         []AnswerRecord `json:"answers,omitempty"`
	TimerEnabled    bool           `json:"timerEnabled"`
	TimeRemaining   int            `json:"timeRemaining"`
	FallbackUsed    bool           `json:"fallbackUsed"`
	ValidationError string         `json:"validationError,omitempty"`
	GenerationError string         `json:"generationError,omitempty"`
	SubmissionError string         `json:"submissionError,omitempty"`
	Provisional     *Result        `json:"provisional,omitempty"`
	Result          *Result        `json:"result,omitempty"`
}
