// Package scoring turns a finished ledger into a submission payload and a display result.
//
// Correctness computed here is provisional: it compares the selected choice text
// literally to Question.CorrectChoice and is superseded by the scoring server.
package scoring

import (
	"fmt"
	"math"

	"quiz-session-engine/internal/domain"
)

// BuildPayload resolves selections to choice text and aggregates timing.
// The returned score is the provisional correct count.
func BuildPayload(set domain.QuestionSet, answers []domain.AnswerRecord, cfg domain.SessionConfig) (domain.Payload, domain.Score) {
	mode := cfg.Mode
	if mode == "" {
		mode = domain.ModeQuiz
	}

	payload := domain.Payload{
		QuizID:         set.QuizID,
		Mode:           mode,
		Topic:          cfg.Topic,
		Answers:        make([]domain.PayloadAnswer, len(set.Questions)),
		TotalQuestions: len(set.Questions),
		Timing: domain.TimingData{
			TimePerQuestion:      cfg.MaxPerQuestion(),
			TimeSpentPerQuestion: make([]int, len(set.Questions)),
			TimerEnabled:         cfg.TimerEnabled(),
		},
	}

	correct := 0
	for i, q := range set.Questions {
		var record domain.AnswerRecord
		if i < len(answers) {
			record = answers[i]
		}
		text := resolveChoice(q, record.SelectedIndex)
		if text == q.CorrectChoice {
			correct++
		}

		answer := domain.PayloadAnswer{
			Index:            i,
			Answer:           text,
			TimeSpentSeconds: record.TimeSpentSeconds,
			Difficulty:       string(q.Difficulty),
		}
		if record.SelectedIndex != nil {
			answer.AnswerIndex = domain.Intp(*record.SelectedIndex)
		}
		payload.Answers[i] = answer
		payload.Timing.TimeSpentPerQuestion[i] = record.TimeSpentSeconds
		payload.Timing.TotalTimeSpent += record.TimeSpentSeconds
	}
	payload.CorrectAnswers = correct

	return payload, domain.Score{
		Correct:    correct,
		Total:      len(set.Questions),
		Percentage: Percentage(correct, len(set.Questions)),
	}
}

// Provisional builds the locally estimated result for a payload.
func Provisional(payload domain.Payload, score domain.Score, level *domain.LevelEstimate) domain.Result {
	result := domain.Result{
		Score:          score,
		Passed:         score.Percentage >= domain.PassingPercentage,
		Estimated:      true,
		Level:          level,
		TotalTimeSpent: payload.Timing.TotalTimeSpent,
	}
	if score.Total > 0 {
		result.AverageTimeSpent = int(math.Round(float64(payload.Timing.TotalTimeSpent) / float64(score.Total)))
	}
	if level != nil {
		result.Recommendations = []string{
			fmt.Sprintf("Start with %s-level content to match your assessment", level.Predicted),
			"Take regular quizzes to track your progress and improve",
		}
	}
	return result
}

// Reconcile merges a server response into the provisional result. Any field the
// server provides wins; with no server result the provisional one is returned flagged as estimated.
func Reconcile(server *domain.ServerResult, provisional domain.Result) domain.Result {
	result := provisional
	if server == nil {
		result.Estimated = true
		return result
	}

	result.Estimated = false
	result.AttemptID = server.AttemptID

	score := provisional.Score
	if server.CorrectCount != nil {
		score.Correct = *server.CorrectCount
	}
	if server.TotalCount != nil {
		score.Total = *server.TotalCount
	}
	switch {
	case server.Percentage != nil:
		score.Percentage = *server.Percentage
	case server.CorrectCount != nil || server.TotalCount != nil:
		score.Percentage = Percentage(score.Correct, score.Total)
	}
	result.Score = score
	result.Passed = score.Percentage >= domain.PassingPercentage

	if server.PredictedLevel != "" {
		level := domain.LevelEstimate{Predicted: server.PredictedLevel}
		if score.Total > 0 {
			level.Accuracy = float64(score.Correct) / float64(score.Total)
		}
		if server.Confidence != nil {
			level.Confidence = *server.Confidence
		} else if provisional.Level != nil {
			level.Confidence = provisional.Level.Confidence
		}
		result.Level = &level
	}
	if len(server.Recommendations) > 0 {
		result.Recommendations = append([]string(nil), server.Recommendations...)
	}
	return result
}

// Percentage returns correct/total as a whole-number percentage.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(correct) * 100 / float64(total))
}

func resolveChoice(q domain.Question, selected *int) string {
	if selected == nil || *selected < 0 || *selected >= len(q.Choices) {
		return ""
	}
	return q.Choices[*selected]
}
