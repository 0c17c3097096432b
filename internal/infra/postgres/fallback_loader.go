package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"

	"quiz-session-engine/internal/domain"
)

// DefaultTopic is the row used when no set matches the requested topic.
const DefaultTopic = "default"

// Querier is the subset of *pgxpool.Pool the loader needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// FallbackLoader loads curated question sets stored as JSONB in fallback_question_sets.
type FallbackLoader struct {
	db Querier
}

func NewFallbackLoader(db Querier) *FallbackLoader {
	return &FallbackLoader{db: db}
}

func (l *FallbackLoader) FallbackQuestions(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeQuiz
	}

	set, err := l.load(ctx, mode, strings.ToLower(strings.TrimSpace(req.Topic)))
	if errors.Is(err, domain.ErrFallbackNotFound) {
		set, err = l.load(ctx, mode, DefaultTopic)
	}
	if err != nil {
		return domain.QuestionSet{}, err
	}

	if mode == domain.ModeQuiz && req.QuestionCount > 0 && set.Len() > req.QuestionCount {
		set.Questions = set.Questions[:req.QuestionCount]
	}
	return set, nil
}

func (l *FallbackLoader) load(ctx context.Context, mode domain.Mode, topic string) (domain.QuestionSet, error) {
	var raw []byte
	err := l.db.QueryRow(ctx, `SELECT data FROM fallback_question_sets WHERE mode=$1 AND topic=$2`, string(mode), topic).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSet{}, fmt.Errorf("%s/%s: %w", mode, topic, domain.ErrFallbackNotFound)
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load fallback set: %w", err)
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("unmarshal fallback set: %w", err)
	}
	return set, nil
}
