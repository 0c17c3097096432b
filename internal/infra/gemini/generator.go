// Package gemini generates question sets directly with the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"quiz-session-engine/internal/domain"
)

// ContentGenerator is the part of *genai.GenerativeModel the generator calls.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Generator struct {
	client *genai.Client
	model  ContentGenerator
	log    *zap.Logger
}

// New connects to Gemini with apiKey and uses the named model.
func New(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0.3)
	m.SetTopP(0.95)

	g := NewWithModel(m, logger)
	g.client = client
	return g, nil
}

// NewWithModel wraps an existing model, e.g. a stub in tests.
func NewWithModel(model ContentGenerator, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{model: model, log: logger}
}

func (g *Generator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Generate prompts the model and parses its JSON answer into a question set.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(req)))
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("Gemini API error: %w", err)
	}

	questions, err := parseQuestions(extractText(resp))
	if err != nil {
		return domain.QuestionSet{}, err
	}
	valid := validateQuestions(questions)
	if dropped := len(questions) - len(valid); dropped > 0 {
		g.log.Warn("dropped malformed generated questions", zap.Int("dropped", dropped), zap.String("topic", req.Topic))
	}
	if len(valid) > req.QuestionCount && req.QuestionCount > 0 {
		valid = valid[:req.QuestionCount]
	}

	set := domain.QuestionSet{QuizID: uuid.NewString(), Questions: valid}
	if err := set.Validate(); err != nil {
		return domain.QuestionSet{}, err
	}
	return set, nil
}

func buildPrompt(req domain.GenerationRequest) string {
	var b strings.Builder
	if req.Mode == domain.ModePlacement {
		fmt.Fprintf(&b, "Create a placement assessment quiz for the %s field.\n\n", req.Topic)
		fmt.Fprintf(&b, "Generate exactly %d questions with mixed difficulty:\n", req.QuestionCount)
		b.WriteString("- some beginner level questions (basic concepts)\n")
		b.WriteString("- some intermediate level questions (applied knowledge)\n")
		b.WriteString("- some advanced level questions (complex analysis)\n\n")
	} else {
		difficulty := req.Difficulty
		if difficulty == "" {
			difficulty = domain.DifficultyBeginner
		}
		fmt.Fprintf(&b, "Generate exactly %d %s level multiple-choice questions about %s.\n\n", req.QuestionCount, difficulty, req.Topic)
	}
	b.WriteString("Each question MUST have exactly 4 options and the answer MUST be the exact text of one option.\n\n")
	b.WriteString(`Return ONLY valid JSON:
{"questions":[{"question":"...","choices":["...","...","...","..."],"answer":"...","difficulty":"beginner|intermediate|advanced","topic":"...","explanation":"..."}]}`)
	return b.String()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// parseQuestions accepts {"questions":[...]} or a bare array, with or without code fences.
func parseQuestions(raw string) ([]domain.Question, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var wrapped struct {
		Questions []domain.Question `json:"questions"`
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &wrapped); err == nil && len(wrapped.Questions) > 0 {
			return wrapped.Questions, nil
		}
	}

	var list []domain.Question
	if start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &list); err == nil && len(list) > 0 {
			return list, nil
		}
	}
	return nil, fmt.Errorf("parse generated questions: %w", domain.ErrEmptyQuestionSet)
}

// validateQuestions drops questions whose answer is not one of their choices.
func validateQuestions(questions []domain.Question) []domain.Question {
	var valid []domain.Question
	for _, q := range questions {
		if q.Validate() != nil {
			continue
		}
		found := false
		for _, c := range q.Choices {
			if c == q.CorrectChoice {
				found = true
				break
			}
		}
		if found {
			valid = append(valid, q)
		}
	}
	return valid
}
