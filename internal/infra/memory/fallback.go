package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quiz-session-engine/internal/domain"
)

// FallbackSource mirrors app.FallbackSource so chains can mix implementations.
type FallbackSource interface {
	FallbackQuestions(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error)
}

// StaticFallback builds local question sets when generation is unavailable.
type StaticFallback struct {
	choices int
}

func NewStaticFallback() *StaticFallback {
	return &StaticFallback{choices: 4}
}

func (f *StaticFallback) FallbackQuestions(_ context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
	if req.Mode == domain.ModePlacement {
		return domain.QuestionSet{Questions: placementQuestions(req.Topic)}, nil
	}

	count := req.QuestionCount
	if count <= 0 {
		return domain.QuestionSet{}, domain.ErrEmptyQuestionSet
	}

	var base []domain.Question
	if strings.Contains(strings.ToLower(req.Topic), "machine learning") {
		base = machineLearningQuestions
	}

	questions := make([]domain.Question, 0, count)
	for i := 0; i < count; i++ {
		if i < len(base) {
			q := base[i]
			q.Choices = append([]string(nil), q.Choices...)
			q.Difficulty = req.Difficulty
			q.Topic = req.Topic
			questions = append(questions, q)
			continue
		}
		questions = append(questions, f.sample(i, req))
	}
	return domain.QuestionSet{Questions: questions}, nil
}

func (f *StaticFallback) sample(i int, req domain.GenerationRequest) domain.Question {
	choices := make([]string, f.choices)
	for j := range choices {
		choices[j] = fmt.Sprintf("Option %c", 'A'+j)
	}
	return domain.Question{
		Text:          fmt.Sprintf("Sample question %d on %s (%s)", i+1, req.Topic, req.Difficulty),
		Choices:       choices,
		CorrectChoice: choices[0],
		Difficulty:    req.Difficulty,
		Topic:         req.Topic,
		Explanation:   fmt.Sprintf("This is a fallback explanation for question %d.", i+1),
	}
}

func placementQuestions(field string) []domain.Question {
	if strings.TrimSpace(field) == "" {
		field = "your field of study"
	}
	return []domain.Question{
		{
			Text:          fmt.Sprintf("What is your current level of expertise in %s?", field),
			Choices:       []string{"Complete beginner", "Some basic knowledge", "Intermediate understanding", "Advanced expertise"},
			CorrectChoice: "Some basic knowledge",
			Difficulty:    domain.DifficultySelfAssessment,
			Topic:         "skill-level",
		},
		{
			Text:          "How do you prefer to learn new concepts?",
			Choices:       []string{"Step-by-step with examples", "Reading comprehensive theory first", "Hands-on practice immediately", "Group discussions and explanations"},
			CorrectChoice: "Step-by-step with examples",
			Difficulty:    domain.DifficultySelfAssessment,
			Topic:         "learning-style",
		},
		{
			Text:          "When facing a challenging problem, what's your approach?",
			Choices:       []string{"Break it into smaller parts", "Research similar solutions online", "Ask for help immediately", "Try different approaches until one works"},
			CorrectChoice: "Break it into smaller parts",
			Difficulty:    domain.DifficultyBeginner,
			Topic:         "problem-solving",
		},
		{
			Text:          "How often do you engage with learning materials outside of formal education?",
			Choices:       []string{"Daily", "Weekly", "Monthly", "Rarely"},
			CorrectChoice: "Weekly",
			Difficulty:    domain.DifficultyBeginner,
			Topic:         "learning-habits",
		},
		{
			Text:          fmt.Sprintf("Which aspect of %s interests you most?", field),
			Choices:       []string{"Fundamental principles and theory", "Practical applications and projects", "Advanced research and innovation", "Problem-solving and troubleshooting"},
			CorrectChoice: "Practical applications and projects",
			Difficulty:    domain.DifficultyIntermediate,
			Topic:         "interests",
		},
	}
}

var machineLearningQuestions = []domain.Question{
	{
		Text:          "What is the primary goal of machine learning?",
		Choices:       []string{"To make predictions from data", "To store data", "To delete data", "To compress data"},
		CorrectChoice: "To make predictions from data",
		Explanation:   "Machine learning aims to learn patterns from data to make accurate predictions on new, unseen data.",
	},
	{
		Text:          "Which of the following is a supervised learning algorithm?",
		Choices:       []string{"Linear Regression", "K-means", "PCA", "Apriori"},
		CorrectChoice: "Linear Regression",
		Explanation:   "Linear regression learns from labeled training examples.",
	},
	{
		Text:          "What is overfitting in machine learning?",
		Choices:       []string{"Model performs well on training but poorly on new data", "Model is too simple", "Data is corrupted", "Algorithm is slow"},
		CorrectChoice: "Model performs well on training but poorly on new data",
		Explanation:   "Overfitting occurs when a model memorizes training data but fails to generalize to new data.",
	},
	{
		Text:          "Which metric is commonly used for classification problems?",
		Choices:       []string{"Accuracy", "Mean", "Median", "Standard deviation"},
		CorrectChoice: "Accuracy",
		Explanation:   "Accuracy measures the percentage of correct predictions in classification tasks.",
	},
	{
		Text:          "What is the difference between training and testing data?",
		Choices:       []string{"Training data is used to build model, testing data evaluates it", "No difference", "Testing data is larger", "Training data is newer"},
		CorrectChoice: "Training data is used to build model, testing data evaluates it",
		Explanation:   "Training data teaches the model patterns, while testing data provides unbiased evaluation.",
	},
	{
		Text:          "Which algorithm is best for linear relationships?",
		Choices:       []string{"Linear Regression", "Decision Tree", "K-means", "Random Forest"},
		CorrectChoice: "Linear Regression",
		Explanation:   "Linear regression models linear relationships between variables.",
	},
	{
		Text:          "What is feature engineering?",
		Choices:       []string{"Creating new features from existing data", "Deleting features", "Renaming features", "Copying features"},
		CorrectChoice: "Creating new features from existing data",
		Explanation:   "Feature engineering transforms raw data into meaningful features for better model performance.",
	},
	{
		Text:          "Which of these is an unsupervised learning technique?",
		Choices:       []string{"Clustering", "Classification", "Regression", "Prediction"},
		CorrectChoice: "Clustering",
		Explanation:   "Clustering groups similar data points without using labeled examples.",
	},
	{
		Text:          "What is cross-validation used for?",
		Choices:       []string{"To validate model performance", "To clean data", "To visualize data", "To store data"},
		CorrectChoice: "To validate model performance",
		Explanation:   "Cross-validation estimates performance by testing on multiple data splits.",
	},
	{
		Text:          "Which activation function is commonly used in neural networks?",
		Choices:       []string{"ReLU", "Linear", "Step", "Constant"},
		CorrectChoice: "ReLU",
		Explanation:   "ReLU is widely used for its simplicity and effectiveness in neural networks.",
	},
}

// ChainFallback tries each source in order and returns the first usable set.
type ChainFallback struct {
	sources []FallbackSource
}

func NewChainFallback(sources ...FallbackSource) *ChainFallback {
	return &ChainFallback{sources: sources}
}

func (c *ChainFallback) FallbackQuestions(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
	var errs []error
	for _, src := range c.sources {
		set, err := src.FallbackQuestions(ctx, req)
		if err == nil {
			err = set.Validate()
		}
		if err == nil {
			return set, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return domain.QuestionSet{}, domain.ErrFallbackNotFound
	}
	return domain.QuestionSet{}, fmt.Errorf("%w: %w", domain.ErrFallbackNotFound, errors.Join(errs...))
}
