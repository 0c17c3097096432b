package scoring

import "quiz-session-engine/internal/domain"

const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelExpert       = "expert"
)

var difficultyWeight = map[domain.Difficulty]int{
	domain.DifficultyBeginner:     1,
	domain.DifficultyIntermediate: 2,
	domain.DifficultyAdvanced:     3,
}

// EstimateLevel predicts a placement level from correct answers weighted by difficulty.
func EstimateLevel(set domain.QuestionSet, answers []domain.AnswerRecord) domain.LevelEstimate {
	total := len(set.Questions)
	if total == 0 {
		return domain.LevelEstimate{Predicted: LevelBeginner, Confidence: 0.7}
	}

	correct, weighted := 0, 0
	for i, q := range set.Questions {
		if i >= len(answers) {
			break
		}
		if resolveChoice(q, answers[i].SelectedIndex) != q.CorrectChoice {
			continue
		}
		correct++
		weighted += difficultyWeight[q.Difficulty]
	}

	accuracy := float64(correct) / float64(total)
	avgWeight := float64(weighted) / float64(total)

	switch {
	case accuracy >= 0.8 && avgWeight >= 2.5:
		return domain.LevelEstimate{Predicted: LevelExpert, Confidence: 0.9, Accuracy: accuracy}
	case accuracy >= 0.6 && avgWeight >= 1.5:
		return domain.LevelEstimate{Predicted: LevelIntermediate, Confidence: 0.8, Accuracy: accuracy}
	default:
		return domain.LevelEstimate{Predicted: LevelBeginner, Confidence: 0.7, Accuracy: accuracy}
	}
}
