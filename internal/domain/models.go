package domain

import (
	"fmt"
	"strings"
)

// Difficulty labels a question or requested skill level.
type Difficulty string

const (
	DifficultyBeginner       Difficulty = "beginner"
	DifficultyIntermediate   Difficulty = "intermediate"
	DifficultyAdvanced       Difficulty = "advanced"
	DifficultySelfAssessment Difficulty = "self-assessment"
)

// Mode selects between the practice quiz flow and the placement assessment flow.
type Mode string

const (
	ModeQuiz      Mode = "quiz"
	ModePlacement Mode = "placement"
)

const (
	MinChoices       = 2
	MaxChoices       = 6
	MaxQuestionCount = 50
)

// Question models a multiple-choice question as returned by the generator.
type Question struct {
	Text          string     `json:"question"`
	Choices       []string   `json:"choices"`
	CorrectChoice string     `json:"answer"`
	Difficulty    Difficulty `json:"difficulty,omitempty"`
	Topic         string     `json:"topic,omitempty"`
	Explanation   string     `json:"explanation,omitempty"`
}

// Validate reports whether the question is usable in a session.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Choices) < MinChoices || len(q.Choices) > MaxChoices {
		return fmt.Errorf("question %q has %d choices, want %d-%d", q.Text, len(q.Choices), MinChoices, MaxChoices)
	}
	if q.CorrectChoice == "" {
		return fmt.Errorf("question %q has no correct choice", q.Text)
	}
	return nil
}

// QuestionSet is the ordered, fixed-length question list of one session.
type QuestionSet struct {
	QuizID    string     `json:"quizId,omitempty"`
	Questions []Question `json:"questions"`
}

func (s QuestionSet) Len() int {
	return len(s.Questions)
}

// Limit returns the set cut down to at most n questions.
func (s QuestionSet) Limit(n int) QuestionSet {
	if n <= 0 || len(s.Questions) <= n {
		return s
	}
	s.Questions = append([]Question(nil), s.Questions[:n]...)
	return s
}

// Validate rejects empty sets and sets containing malformed questions.
func (s QuestionSet) Validate() error {
	if len(s.Questions) == 0 {
		return ErrEmptyQuestionSet
	}
	for i, q := range s.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// AnswerRecord holds the selection and time spent for one question index.
// SelectedIndex stays nil until the user picks a choice.
type AnswerRecord struct {
	SelectedIndex    *int `json:"selectedIndex"`
	TimeSpentSeconds int  `json:"timeSpentSeconds"`
}

func (r AnswerRecord) Answered() bool {
	return r.SelectedIndex != nil
}

// SessionConfig is captured when a session is started and never changes afterwards.
// A nil PerQuestionSeconds disables the countdown.
type SessionConfig struct {
	QuestionCount      int        `json:"questionCount"`
	PerQuestionSeconds *int       `json:"perQuestionSeconds"`
	Topic              string     `json:"topic"`
	Difficulty         Difficulty `json:"difficulty,omitempty"`
	Mode               Mode       `json:"mode,omitempty"`
}

func (c SessionConfig) TimerEnabled() bool {
	return c.PerQuestionSeconds != nil
}

// MaxPerQuestion returns the countdown length, or 0 when timers are disabled.
func (c SessionConfig) MaxPerQuestion() int {
	if c.PerQuestionSeconds == nil {
		return 0
	}
	return *c.PerQuestionSeconds
}

// Validate checks the config before any collaborator is contacted.
func (c SessionConfig) Validate() error {
	if strings.TrimSpace(c.Topic) == "" {
		return &ValidationError{Field: "topic", Message: "please enter a topic for your quiz"}
	}
	if c.QuestionCount < 1 {
		return &ValidationError{Field: "questionCount", Message: "at least 1 question required"}
	}
	if c.QuestionCount > MaxQuestionCount {
		return &ValidationError{Field: "questionCount", Message: fmt.Sprintf("maximum %d questions allowed", MaxQuestionCount)}
	}
	if c.PerQuestionSeconds != nil && *c.PerQuestionSeconds <= 0 {
		return &ValidationError{Field: "perQuestionSeconds", Message: "must be positive when the timer is enabled"}
	}
	switch c.Mode {
	case "", ModeQuiz, ModePlacement:
	default:
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
	return nil
}

// GenerationRequest derives the collaborator request for this config.
func (c SessionConfig) GenerationRequest() GenerationRequest {
	mode := c.Mode
	if mode == "" {
		mode = ModeQuiz
	}
	return GenerationRequest{
		Topic:         strings.TrimSpace(c.Topic),
		QuestionCount: c.QuestionCount,
		Difficulty:    c.Difficulty,
		Mode:          mode,
	}
}

// GenerationRequest is sent to the question generation collaborator.
type GenerationRequest struct {
	Topic         string     `json:"topic"`
	QuestionCount int        `json:"questionCount"`
	Difficulty    Difficulty `json:"difficulty"`
	Mode          Mode       `json:"mode"`
}

// Key identifies equivalent requests for caching and de-duplication.
func (r GenerationRequest) Key() string {
	return fmt.Sprintf("%s:%s:%d:%s", r.Mode, strings.ToLower(r.Topic), r.QuestionCount, r.Difficulty)
}

// Intp is a convenience for optional int fields.
func Intp(v int) *int {
	return &v
}
