// Package httpapi talks to the quiz backend that generates question sets and scores submissions.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"quiz-session-engine/internal/domain"
)

const (
	generatePath        = "/api/quiz/generate"
	placementPath       = "/api/quiz/placement"
	submitPath          = "/api/quiz/submit"
	placementSubmitPath = "/api/quiz/placement/submit"

	defaultChoices = 4
	maxErrorBody   = 64 << 10
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Client implements question generation and submission over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

type generateRequest struct {
	CustomTopic string `json:"customTopic"`
	Category    string `json:"category"`
	Questions   int    `json:"questions"`
	Choices     int    `json:"choices"`
	Language    string `json:"language"`
	Difficulty  string `json:"difficulty"`
}

type placementRequest struct {
	Department      string   `json:"department"`
	Interests       []string `json:"interests"`
	QuestionCount   int      `json:"questionCount"`
	MixedDifficulty bool     `json:"mixedDifficulty"`
	AdaptiveMode    bool     `json:"adaptiveMode"`
}

type generateResponse struct {
	QuizID    string            `json:"quizId"`
	Questions []domain.Question `json:"questions"`
	Quiz      *struct {
		Questions []domain.Question `json:"questions"`
	} `json:"quiz"`
}

// Generate requests a question set. Placement requests go to the placement endpoint.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
	var (
		path string
		body any
	)
	if req.Mode == domain.ModePlacement {
		path = placementPath
		body = placementRequest{
			Department:      req.Topic,
			Interests:       []string{},
			QuestionCount:   req.QuestionCount,
			MixedDifficulty: true,
			AdaptiveMode:    true,
		}
	} else {
		difficulty := string(req.Difficulty)
		if difficulty == "" {
			difficulty = string(domain.DifficultyBeginner)
		}
		path = generatePath
		body = generateRequest{
			CustomTopic: req.Topic,
			Category:    "general",
			Questions:   req.QuestionCount,
			Choices:     defaultChoices,
			Language:    "English",
			Difficulty:  difficulty,
		}
	}

	var resp generateResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("generate questions: %w", err)
	}

	questions := resp.Questions
	if resp.Quiz != nil && len(resp.Quiz.Questions) > 0 {
		questions = resp.Quiz.Questions
	}
	set := domain.QuestionSet{QuizID: resp.QuizID, Questions: questions}
	if err := set.Validate(); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("generate questions: %w", err)
	}
	return set, nil
}

type submitResponse struct {
	AttemptID      string   `json:"attemptId"`
	Percentage     *float64 `json:"percentage"`
	CorrectCount   *int     `json:"correctCount"`
	TotalCount     *int     `json:"totalCount"`
	CorrectAnswers *int     `json:"correctAnswers"`
	TotalQuestions *int     `json:"totalQuestions"`
	Score          *struct {
		Correct *int `json:"correct"`
		Total   *int `json:"total"`
	} `json:"score"`
	PredictedLevel  string   `json:"predictedLevel"`
	Confidence      *float64 `json:"confidence"`
	Recommendations []string `json:"recommendations"`
}

// Submit posts the payload and normalizes the backend's result shapes.
func (c *Client) Submit(ctx context.Context, payload domain.Payload) (domain.ServerResult, error) {
	path := submitPath
	if payload.Mode == domain.ModePlacement {
		path = placementSubmitPath
	}

	var resp submitResponse
	if err := c.post(ctx, path, payload, &resp); err != nil {
		return domain.ServerResult{}, fmt.Errorf("submit answers: %w", err)
	}

	result := domain.ServerResult{
		AttemptID:       resp.AttemptID,
		Percentage:      resp.Percentage,
		CorrectCount:    firstInt(resp.CorrectCount, resp.CorrectAnswers),
		TotalCount:      firstInt(resp.TotalCount, resp.TotalQuestions),
		PredictedLevel:  resp.PredictedLevel,
		Confidence:      resp.Confidence,
		Recommendations: resp.Recommendations,
	}
	if resp.Score != nil {
		result.CorrectCount = firstInt(result.CorrectCount, resp.Score.Correct)
		result.TotalCount = firstInt(result.TotalCount, resp.Score.Total)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.log.Debug("collaborator call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Status: resp.StatusCode, Message: errorMessage(resp, body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {error: string|[]string} or {message} from an error body.
func errorMessage(resp *http.Response, body []byte) string {
	msg := http.StatusText(resp.StatusCode)
	if msg == "" {
		msg = "request failed"
	}

	var parsed struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return msg
	}

	if len(parsed.Error) > 0 {
		var list []string
		if err := json.Unmarshal(parsed.Error, &list); err == nil && len(list) > 0 {
			return strings.Join(list, ", ")
		}
		var single string
		if err := json.Unmarshal(parsed.Error, &single); err == nil && single != "" {
			return single
		}
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return msg
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
