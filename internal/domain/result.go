package domain

// PassingPercentage is the score at which an attempt counts as passed.
const PassingPercentage = 70

// Score is a correctness tally for one attempt.
type Score struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// LevelEstimate is a skill level prediction for placement attempts.
type LevelEstimate struct {
	Predicted  string  `json:"predictedLevel"`
	Confidence float64 `json:"confidence"`
	Accuracy   float64 `json:"accuracy"`
}

// Result is the display-ready outcome of a submission.
// Estimated is set when the score was computed locally and not confirmed by the server.
type Result struct {
	Score            Score          `json:"score"`
	Passed           bool           `json:"passed"`
	Estimated        bool           `json:"estimated"`
	AttemptID        string         `json:"attemptId,omitempty"`
	Level            *LevelEstimate `json:"level,omitempty"`
	Recommendations  []string       `json:"recommendations,omitempty"`
	TotalTimeSpent   int            `json:"totalTimeSpent"`
	AverageTimeSpent int            `json:"averageTimeSpent"`
}

// ServerResult is the scoring collaborator's response. Nil fields were absent.
type ServerResult struct {
	AttemptID       string
	Percentage      *float64
	CorrectCount    *int
	TotalCount      *int
	PredictedLevel  string
	Confidence      *float64
	Recommendations []string
}

// PayloadAnswer is one resolved answer in a submission payload.
type PayloadAnswer struct {
	Index            int    `json:"index"`
	Answer           string `json:"answer"`
	AnswerIndex      *int   `json:"answerIndex"`
	TimeSpentSeconds int    `json:"timeSpent"`
	Difficulty       string `json:"difficulty,omitempty"`
}

// TimingData aggregates per-question time spent.
type TimingData struct {
	TimePerQuestion      int   `json:"timePerQuestion"`
	TimeSpentPerQuestion []int `json:"timeSpentPerQuestion"`
	TimerEnabled         bool  `json:"timerEnabled"`
	TotalTimeSpent       int   `json:"totalTimeSpent"`
}

// Payload is the network-ready submission sent to the scoring collaborator.
type Payload struct {
	QuizID         string          `json:"quizId,omitempty"`
	Mode           Mode            `json:"mode"`
	Topic          string          `json:"topic"`
	Answers        []PayloadAnswer `json:"answers"`
	CorrectAnswers int             `json:"correctAnswers"`
	TotalQuestions int             `json:"totalQuestions"`
	Timing         TimingData      `json:"timingData"`
}
