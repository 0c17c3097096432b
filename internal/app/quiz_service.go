package app

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-session-engine/internal/domain"
)

// SessionRepository abstracts how quiz sessions are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, bool)
	Delete(ctx context.Context, id string)
}

// Defaults fill in the parts of a session config the client left out.
type Defaults struct {
	PerQuestionSeconds     int
	QuestionCount          int
	PlacementQuestionCount int
	Difficulty             domain.Difficulty
}

// DefaultSettings mirrors the values used when no config file overrides them.
func DefaultSettings() Defaults {
	return Defaults{
		PerQuestionSeconds:     45,
		QuestionCount:          10,
		PlacementQuestionCount: 8,
		Difficulty:             domain.DifficultyBeginner,
	}
}

// QuizService creates and tracks sessions by ID.
type QuizService struct {
	sessions SessionRepository
	deps     Deps
	defaults Defaults
	log      *zap.Logger
}

func NewQuizService(store SessionRepository, deps Deps, defaults Defaults) *QuizService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &QuizService{sessions: store, deps: deps, defaults: defaults, log: deps.Logger}
}

// Open starts a new session in the setup phase.
func (s *QuizService) Open(ctx context.Context) (*Session, error) {
	session := NewSession(uuid.NewString(), s.deps)
	if err := s.sessions.Save(ctx, session); err != nil {
		session.Close()
		return nil, err
	}
	s.log.Debug("session opened", zap.String("session_id", session.ID()))
	return session, nil
}

func (s *QuizService) Get(ctx context.Context, id string) (*Session, error) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Leave closes the session and forgets it. Unknown IDs are ignored.
func (s *QuizService) Leave(ctx context.Context, id string) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(ctx, id)
	s.log.Debug("session left", zap.String("session_id", id))
}

// ApplyDefaults completes cfg from the service defaults. timerEnabled without an
// explicit duration selects the default countdown.
func (s *QuizService) ApplyDefaults(cfg domain.SessionConfig, timerEnabled bool) domain.SessionConfig {
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeQuiz
	}
	if cfg.QuestionCount == 0 {
		cfg.QuestionCount = s.defaults.QuestionCount
		if cfg.Mode == domain.ModePlacement {
			cfg.QuestionCount = s.defaults.PlacementQuestionCount
		}
	}
	if strings.TrimSpace(string(cfg.Difficulty)) == "" && cfg.Mode == domain.ModeQuiz {
		cfg.Difficulty = s.defaults.Difficulty
	}
	if cfg.PerQuestionSeconds == nil && timerEnabled && s.defaults.PerQuestionSeconds > 0 {
		cfg.PerQuestionSeconds = domain.Intp(s.defaults.PerQuestionSeconds)
	}
	return cfg
}
