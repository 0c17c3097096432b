package app

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"quiz-session-engine/internal/countdown"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/ledger"
	"quiz-session-engine/internal/scoring"
)

// QuestionGenerator produces a question set for a request (HTTP collaborator, Gemini, cache).
type QuestionGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error)
}

// FallbackSource supplies a local question set when generation fails.
type FallbackSource interface {
	FallbackQuestions(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error)
}

// Submitter sends a payload to the scoring collaborator.
type Submitter interface {
	Submit(ctx context.Context, payload domain.Payload) (domain.ServerResult, error)
}

// Deps are the collaborators a session talks to. Fallback may be nil, which
// turns generation failures into the error phase instead of degrading.
type Deps struct {
	Generator QuestionGenerator
	Fallback  FallbackSource
	Submitter Submitter
	Clock     clockwork.Clock
	Logger    *zap.Logger
}

type failureKind int

const (
	failureNone failureKind = iota
	failureGeneration
	failureSubmission
)

type generationResult struct {
	request     uint64
	set         domain.QuestionSet
	err         error
	fallback    domain.QuestionSet
	fallbackErr error
}

type submissionResult struct {
	request uint64
	result  domain.ServerResult
	err     error
}

// Session drives one participant through setup, question taking and submission.
//
// All state transitions run on a single event loop goroutine: public methods
// enqueue a command and wait for it, timer events and collaborator results
// are folded in by the same loop. Collaborator calls run on their own
// goroutines and are tagged with a request id so late responses are dropped.
type Session struct {
	id        string
	generator QuestionGenerator
	fallback  FallbackSource
	submitter Submitter
	clock     clockwork.Clock
	log       *zap.Logger

	ctx       context.Context
	cancelAll context.CancelFunc
	cmds      chan func()
	ticks     chan countdown.Event
	results   chan any
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.RWMutex
	latest      domain.Snapshot
	subscribers map[chan domain.Snapshot]struct{}
	closed      bool

	// owned by the loop goroutine
	phase         domain.Phase
	attempt       uint64
	request       uint64
	cancelRequest context.CancelFunc
	cfg           *domain.SessionConfig
	questions     domain.QuestionSet
	answers       *ledger.Ledger
	current       int
	shownAt       time.Time
	timer         *countdown.Timer
	armID         uint64
	remaining     int
	fallbackUsed  bool
	failure       failureKind
	validationErr string
	generationErr string
	submissionErr string
	payload       *domain.Payload
	provisional   *domain.Result
	result        *domain.Result
}

// NewSession starts the event loop for a new session in the setup phase.
// Close must be called to release it.
func NewSession(id string, deps Deps) *Session {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:          id,
		generator:   deps.Generator,
		fallback:    deps.Fallback,
		submitter:   deps.Submitter,
		clock:       clock,
		log:         logger.With(zap.String("session_id", id)),
		ctx:         ctx,
		cancelAll:   cancel,
		cmds:        make(chan func()),
		ticks:       make(chan countdown.Event),
		results:     make(chan any),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		subscribers: make(map[chan domain.Snapshot]struct{}),
		phase:       domain.PhaseSetup,
		attempt:     1,
	}
	s.latest = s.snapshot()
	go s.run()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Start validates cfg and requests questions. On a validation failure the
// session stays in setup with the message recorded.
func (s *Session) Start(cfg domain.SessionConfig) error {
	return s.do(func() error {
		if s.phase != domain.PhaseSetup {
			return s.refuse("start")
		}
		if err := cfg.Validate(); err != nil {
			s.validationErr = err.Error()
			s.log.Info("session config rejected", zap.Error(err))
			s.publish()
			return err
		}
		s.validationErr = ""
		s.cfg = cloneConfig(cfg)
		s.beginGeneration()
		return nil
	})
}

// Select records choice for the visible question without advancing.
func (s *Session) Select(choice int) error {
	return s.do(func() error {
		// pending calls own a frozen payload, selections wait for Taking
		if s.phase != domain.PhaseTaking {
			return s.refuse("select")
		}
		q := s.questions.Questions[s.current]
		if choice < 0 || choice >= len(q.Choices) {
			return fmt.Errorf("choice %d of %d: %w", choice, len(q.Choices), domain.ErrChoiceOutOfRange)
		}
		if err := s.answers.RecordAnswer(s.current, choice); err != nil {
			return err
		}
		s.publish()
		return nil
	})
}

// Advance moves past the visible question, submitting after the last one.
// It is refused while the visible question has no selection.
func (s *Session) Advance() error {
	return s.do(func() error {
		if s.phase != domain.PhaseTaking {
			return s.refuse("advance")
		}
		if _, ok := s.answers.Selected(s.current); !ok {
			return fmt.Errorf("advance from question %d: %w", s.current, domain.ErrNoSelection)
		}
		s.moveForward(s.elapsed())
		return nil
	})
}

// Retreat returns to the previous question, keeping its recorded selection.
func (s *Session) Retreat() error {
	return s.do(func() error {
		if s.phase != domain.PhaseTaking {
			return s.refuse("retreat")
		}
		if s.current == 0 {
			return fmt.Errorf("retreat from first question: %w", domain.ErrInvalidTransition)
		}
		s.leave(s.elapsed())
		s.current--
		s.show()
		s.publish()
		return nil
	})
}

// Submit sends the answers once every question is answered. After a failed
// submission it resends the same payload.
func (s *Session) Submit() error {
	return s.do(func() error {
		switch {
		case s.phase == domain.PhaseTaking:
			if !s.answers.IsComplete() {
				return fmt.Errorf("submit with %d of %d answered: %w", s.answers.CountAnswered(), s.answers.Len(), domain.ErrIncomplete)
			}
			s.leave(s.elapsed())
			s.beginSubmission()
		case s.phase == domain.PhaseError && s.failure == failureSubmission:
			s.sendSubmission()
		default:
			return s.refuse("submit")
		}
		return nil
	})
}

// Retry re-attempts whichever collaborator call failed.
func (s *Session) Retry() error {
	return s.do(func() error {
		if s.phase != domain.PhaseError {
			return s.refuse("retry")
		}
		switch s.failure {
		case failureGeneration:
			s.beginGeneration()
		case failureSubmission:
			s.sendSubmission()
		default:
			return s.refuse("retry")
		}
		return nil
	})
}

// AcceptEstimate completes a failed submission with the locally estimated result.
func (s *Session) AcceptEstimate() error {
	return s.do(func() error {
		if s.phase != domain.PhaseError || s.failure != failureSubmission || s.provisional == nil {
			return s.refuse("accept estimate")
		}
		result := scoring.Reconcile(nil, *s.provisional)
		s.result = &result
		s.phase = domain.PhaseCompleted
		s.log.Info("completing with estimated result",
			zap.Int("correct", result.Score.Correct),
			zap.Int("total", result.Score.Total))
		s.publish()
		return nil
	})
}

// Abandon gives up on a failed generation or submission and returns to setup.
func (s *Session) Abandon() error {
	return s.do(func() error {
		if s.phase != domain.PhaseError {
			return s.refuse("abandon")
		}
		s.reset()
		return nil
	})
}

// Restart discards the questions and answers and returns to setup.
// Any live timer is disarmed and in-flight responses are ignored.
func (s *Session) Restart() error {
	return s.do(func() error {
		s.reset()
		return nil
	})
}

// Snapshot returns the state as of the last completed transition.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.latest
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the session: the timer is disarmed, in-flight calls are
// cancelled and subscriber channels are closed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
}

func (s *Session) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- func() { reply <- fn() }:
	case <-s.quit:
		return domain.ErrSessionClosed
	}
	return <-reply
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			s.shutdown()
			return
		case cmd := <-s.cmds:
			cmd()
		case ev := <-s.ticks:
			s.onTimer(ev)
		case res := <-s.results:
			switch r := res.(type) {
			case generationResult:
				s.onGeneration(r)
			case submissionResult:
				s.onSubmission(r)
			}
		}
	}
}

func (s *Session) shutdown() {
	if s.timer != nil {
		s.timer.Disarm()
	}
	s.cancelAll()

	s.mu.Lock()
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
	s.log.Debug("session closed", zap.String("phase", string(s.phase)))
}

func (s *Session) refuse(action string) error {
	err := domain.ErrInvalidTransition
	if s.phase.Pending() {
		err = domain.ErrRequestPending
	}
	return fmt.Errorf("%s in phase %s: %w", action, s.phase, err)
}

func (s *Session) beginGeneration() {
	ctx, request := s.newRequest()
	s.phase = domain.PhaseGenerating
	s.failure = failureNone
	s.generationErr = ""
	req := s.cfg.GenerationRequest()
	go s.generate(ctx, request, req)
	s.publish()
}

func (s *Session) generate(ctx context.Context, request uint64, req domain.GenerationRequest) {
	res := generationResult{request: request}
	set, err := s.generator.Generate(ctx, req)
	if err == nil {
		err = set.Validate()
	}
	if err == nil {
		res.set = set.Limit(req.QuestionCount)
		s.post(res)
		return
	}

	res.err = err
	if s.fallback != nil && ctx.Err() == nil {
		res.fallback, res.fallbackErr = s.fallback.FallbackQuestions(ctx, req)
		if res.fallbackErr == nil {
			res.fallbackErr = res.fallback.Validate()
			res.fallback = res.fallback.Limit(req.QuestionCount)
		}
	}
	s.post(res)
}

func (s *Session) onGeneration(res generationResult) {
	if res.request != s.request || s.phase != domain.PhaseGenerating {
		s.log.Debug("discarding stale generation response", zap.Uint64("request", res.request))
		return
	}
	s.finishRequest()

	if res.err == nil {
		s.beginTaking(res.set, false)
		return
	}

	cause := fmt.Errorf("%w: %w", domain.ErrGeneration, res.err)
	if s.fallback != nil && res.fallbackErr == nil {
		s.log.Warn("question generation failed, using fallback question set",
			zap.Error(res.err),
			zap.Int("questions", res.fallback.Len()))
		s.generationErr = cause.Error()
		s.beginTaking(res.fallback, true)
		return
	}

	fields := []zap.Field{zap.Error(res.err)}
	if res.fallbackErr != nil {
		fields = append(fields, zap.NamedError("fallback_error", res.fallbackErr))
	}
	s.log.Error("question generation failed", fields...)
	s.generationErr = cause.Error()
	s.failure = failureGeneration
	s.phase = domain.PhaseError
	s.publish()
}

func (s *Session) beginTaking(set domain.QuestionSet, fallback bool) {
	s.questions = set
	s.fallbackUsed = fallback
	s.answers = ledger.New(set.Len(), s.cfg.MaxPerQuestion())
	s.timer = countdown.New(s.clock, s.ticks, s.cfg.TimerEnabled())
	s.current = 0
	s.phase = domain.PhaseTaking
	s.show()
	s.publish()
}

// show makes the current question visible and arms its countdown.
func (s *Session) show() {
	s.shownAt = s.clock.Now()
	s.remaining = s.cfg.MaxPerQuestion()
	s.armID = s.timer.Arm(s.remaining)
}

// leave stops the countdown and records time spent on the current question.
func (s *Session) leave(seconds int) {
	s.timer.Disarm()
	s.armID = 0
	if err := s.answers.RecordTimeSpent(s.current, seconds); err != nil {
		s.log.Error("record time spent", zap.Int("index", s.current), zap.Error(err))
	}
}

func (s *Session) moveForward(seconds int) {
	s.leave(seconds)
	if s.current == s.questions.Len()-1 {
		s.beginSubmission()
		return
	}
	s.current++
	s.show()
	s.publish()
}

func (s *Session) elapsed() int {
	return int(math.Round(s.clock.Since(s.shownAt).Seconds()))
}

func (s *Session) onTimer(ev countdown.Event) {
	if s.phase != domain.PhaseTaking || ev.Arm == 0 || ev.Arm != s.armID {
		s.log.Debug("discarding stale timer event", zap.Uint64("arm", ev.Arm), zap.Uint64("current_arm", s.armID))
		return
	}
	s.remaining = ev.Remaining
	if !ev.Expired {
		s.publish()
		return
	}
	s.log.Info("question timed out", zap.Int("index", s.current))
	s.moveForward(s.cfg.MaxPerQuestion())
}

func (s *Session) beginSubmission() {
	answers := s.answers.Records()
	payload, score := scoring.BuildPayload(s.questions, answers, *s.cfg)

	var level *domain.LevelEstimate
	if s.cfg.Mode == domain.ModePlacement {
		estimate := scoring.EstimateLevel(s.questions, answers)
		level = &estimate
	}
	provisional := scoring.Provisional(payload, score, level)
	s.payload = &payload
	s.provisional = &provisional
	s.sendSubmission()
}

func (s *Session) sendSubmission() {
	ctx, request := s.newRequest()
	s.phase = domain.PhaseSubmitting
	s.failure = failureNone
	s.submissionErr = ""
	go s.submit(ctx, request, clonePayload(*s.payload))
	s.publish()
}

func (s *Session) submit(ctx context.Context, request uint64, payload domain.Payload) {
	result, err := s.submitter.Submit(ctx, payload)
	s.post(submissionResult{request: request, result: result, err: err})
}

func (s *Session) onSubmission(res submissionResult) {
	if res.request != s.request || s.phase != domain.PhaseSubmitting {
		s.log.Debug("discarding stale submission response", zap.Uint64("request", res.request))
		return
	}
	s.finishRequest()

	if res.err != nil {
		s.log.Warn("submission failed, estimated result available", zap.Error(res.err))
		s.submissionErr = fmt.Errorf("%w: %w", domain.ErrSubmission, res.err).Error()
		s.failure = failureSubmission
		s.phase = domain.PhaseError
		s.publish()
		return
	}

	result := scoring.Reconcile(&res.result, *s.provisional)
	s.result = &result
	s.phase = domain.PhaseCompleted
	s.log.Info("submission confirmed",
		zap.String("attempt_id", result.AttemptID),
		zap.Float64("percentage", result.Score.Percentage))
	s.publish()
}

func (s *Session) reset() {
	if s.timer != nil {
		s.timer.Disarm()
	}
	s.finishRequest()
	// bump so any response already on its way no longer matches
	s.request++

	prev := s.phase
	s.attempt++
	s.phase = domain.PhaseSetup
	s.cfg = nil
	s.questions = domain.QuestionSet{}
	s.answers = nil
	s.current = 0
	s.timer = nil
	s.armID = 0
	s.remaining = 0
	s.fallbackUsed = false
	s.failure = failureNone
	s.validationErr = ""
	s.generationErr = ""
	s.submissionErr = ""
	s.payload = nil
	s.provisional = nil
	s.result = nil

	s.log.Info("session restarted", zap.String("from_phase", string(prev)), zap.Uint64("attempt", s.attempt))
	s.publish()
}

func (s *Session) newRequest() (context.Context, uint64) {
	s.finishRequest()
	s.request++
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelRequest = cancel
	return ctx, s.request
}

func (s *Session) finishRequest() {
	if s.cancelRequest != nil {
		s.cancelRequest()
		s.cancelRequest = nil
	}
}

func (s *Session) post(res any) {
	select {
	case s.results <- res:
	case <-s.quit:
	}
}

func (s *Session) publish() {
	snap := s.snapshot()
	s.mu.Lock()
	s.latest = snap
	s.broadcastLocked(snap)
	s.mu.Unlock()
}

func (s *Session) broadcastLocked(snap domain.Snapshot) {
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the oldest pending snapshot so a slow reader never blocks the loop
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID:       s.id,
		Attempt:         s.attempt,
		Phase:           s.phase,
		CurrentIndex:    s.current,
		Total:           s.questions.Len(),
		FallbackUsed:    s.fallbackUsed,
		ValidationError: s.validationErr,
		GenerationError: s.generationErr,
		SubmissionError: s.submissionErr,
	}
	if s.cfg != nil {
		snap.Config = cloneConfig(*s.cfg)
		snap.TimerEnabled = s.cfg.TimerEnabled()
	}
	if s.answers != nil {
		snap.Answers = s.answers.Records()
		snap.Answered = s.answers.CountAnswered()
	}
	if s.phase == domain.PhaseTaking {
		q := s.questions.Questions[s.current]
		snap.Question = &domain.QuestionView{
			Text:       q.Text,
			Choices:    append([]string(nil), q.Choices...),
			Difficulty: q.Difficulty,
			Topic:      q.Topic,
		}
		snap.TimeRemaining = s.remaining
	}
	if s.provisional != nil {
		p := *s.provisional
		snap.Provisional = &p
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}

func cloneConfig(cfg domain.SessionConfig) *domain.SessionConfig {
	out := cfg
	if cfg.PerQuestionSeconds != nil {
		out.PerQuestionSeconds = domain.Intp(*cfg.PerQuestionSeconds)
	}
	if out.Mode == "" {
		out.Mode = domain.ModeQuiz
	}
	return &out
}

func clonePayload(p domain.Payload) domain.Payload {
	out := p
	out.Answers = make([]domain.PayloadAnswer, len(p.Answers))
	for i, a := range p.Answers {
		out.Answers[i] = a
		if a.AnswerIndex != nil {
			out.Answers[i].AnswerIndex = domain.Intp(*a.AnswerIndex)
		}
	}
	out.Timing.TimeSpentPerQuestion = append([]int(nil), p.Timing.TimeSpentPerQuestion...)
	return out
}

// IsClosed reports whether Close has completed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

