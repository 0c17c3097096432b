package app_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/memory"
)

func TestTimedQuizHappyPath(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sub := &recordingSubmitter{}
	s := newSession(t, app.Deps{Generator: staticGenerator(threeQuestions()), Submitter: sub, Clock: clock})

	if err := s.Start(timedConfig(3, 45)); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := waitForPhase(t, s, domain.PhaseTaking)
	if snap.TimeRemaining != 45 || !snap.TimerEnabled || snap.Question.Text != "What is 2 + 2?" {
		t.Fatalf("unexpected first question snapshot %+v", snap)
	}

	tick(t, clock, s, 5)
	mustDo(t, s.Select(1))
	mustDo(t, s.Advance())

	snap = s.Snapshot()
	if snap.CurrentIndex != 1 || snap.TimeRemaining != 45 {
		t.Fatalf("expected fresh countdown on question 2, got %+v", snap)
	}
	tick(t, clock, s, 2)
	mustDo(t, s.Select(0))
	mustDo(t, s.Advance())
	mustDo(t, s.Select(2))
	mustDo(t, s.Submit())

	done := waitForPhase(t, s, domain.PhaseCompleted)
	payload := sub.last(t)
	if got := payload.Timing.TimeSpentPerQuestion; !reflect.DeepEqual(got, []int{5, 2, 0}) {
		t.Fatalf("unexpected time spent %v", got)
	}
	if payload.Timing.TotalTimeSpent != 7 || payload.Timing.TimePerQuestion != 45 || !payload.Timing.TimerEnabled {
		t.Fatalf("unexpected timing %+v", payload.Timing)
	}
	if payload.CorrectAnswers != 3 || payload.Answers[2].Answer != "Paris" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if done.Result == nil || done.Result.Estimated || done.Result.AttemptID != "attempt-1" || done.Result.Score.Percentage != 100 {
		t.Fatalf("unexpected result %+v", done.Result)
	}
}

func TestTimeoutAdvancesAndSubmitsUnanswered(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sub := &recordingSubmitter{}
	set := threeQuestions()
	set.Questions = set.Questions[:2]
	s := newSession(t, app.Deps{Generator: staticGenerator(set), Submitter: sub, Clock: clock})

	mustDo(t, s.Start(timedConfig(2, 3)))
	waitForPhase(t, s, domain.PhaseTaking)

	// Q1: answered but never advanced, Q2: untouched.
	mustDo(t, s.Select(1))
	tick(t, clock, s, 3)
	snap := s.Snapshot()
	if snap.CurrentIndex != 1 || snap.TimeRemaining != 3 {
		t.Fatalf("expected auto-advance to question 2, got %+v", snap)
	}
	tick(t, clock, s, 3)

	waitForPhase(t, s, domain.PhaseCompleted)
	payload := sub.last(t)
	if !reflect.DeepEqual(payload.Timing.TimeSpentPerQuestion, []int{3, 3}) {
		t.Fatalf("expected full time recorded on expiry, got %v", payload.Timing.TimeSpentPerQuestion)
	}
	if payload.Answers[0].Answer != "4" || payload.Answers[1].Answer != "" || payload.Answers[1].AnswerIndex != nil {
		t.Fatalf("expected selection kept and unanswered entry empty, got %+v", payload.Answers)
	}
	if payload.CorrectAnswers != 1 || payload.TotalQuestions != 2 {
		t.Fatalf("expected 1 of 2 correct, got %d of %d", payload.CorrectAnswers, payload.TotalQuestions)
	}

	// the timer is gone once the session left taking
	clock.Advance(10 * time.Second)
	if got := s.Snapshot(); got.Phase != domain.PhaseCompleted || got.TimeRemaining != 0 {
		t.Fatalf("unexpected state after completion %+v", got)
	}
}

func TestTimeSpentNeverExceedsBudget(t *testing.T) {
	// the generator serves more questions than requested
	for _, tc := range []struct{ count, seconds int }{{1, 2}, {2, 3}, {3, 1}} {
		clock := clockwork.NewFakeClock()
		sub := &recordingSubmitter{}
		s := newSession(t, app.Deps{Generator: staticGenerator(threeQuestions()), Submitter: sub, Clock: clock})

		mustDo(t, s.Start(timedConfig(tc.count, tc.seconds)))
		snap := waitForPhase(t, s, domain.PhaseTaking)
		if snap.Total != tc.count {
			t.Fatalf("count %d: expected %d questions, got %d", tc.count, tc.count, snap.Total)
		}
		for i := 0; i < tc.count; i++ {
			tick(t, clock, s, tc.seconds)
		}
		waitForPhase(t, s, domain.PhaseCompleted)

		payload := sub.last(t)
		if len(payload.Answers) != tc.count {
			t.Fatalf("count %d: expected %d answers, got %d", tc.count, tc.count, len(payload.Answers))
		}
		sum := 0
		for _, v := range payload.Timing.TimeSpentPerQuestion {
			sum += v
		}
		if sum > tc.count*tc.seconds || payload.Timing.TotalTimeSpent > tc.count*tc.seconds {
			t.Fatalf("count %d: time spent %d exceeds %d", tc.count, sum, tc.count*tc.seconds)
		}
	}
}

func TestRetreatKeepsSelectionAndOverwritesTime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sub := &recordingSubmitter{}
	s := newSession(t, app.Deps{Generator: staticGenerator(threeQuestions()), Submitter: sub, Clock: clock})

	mustDo(t, s.Start(timedConfig(3, 45)))
	waitForPhase(t, s, domain.PhaseTaking)

	if err := s.Retreat(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected retreat refused on first question, got %v", err)
	}

	tick(t, clock, s, 4)
	mustDo(t, s.Select(0))
	mustDo(t, s.Advance())
	tick(t, clock, s, 2)
	mustDo(t, s.Retreat())

	snap := s.Snapshot()
	if snap.CurrentIndex != 0 || *snap.Answers[0].SelectedIndex != 0 || snap.TimeRemaining != 45 {
		t.Fatalf("expected back on question 1 with its selection, got %+v", snap)
	}
	if snap.Answers[1].TimeSpentSeconds != 2 {
		t.Fatalf("expected time recorded for the question left, got %+v", snap.Answers[1])
	}

	tick(t, clock, s, 1)
	mustDo(t, s.Advance())
	snap = s.Snapshot()
	if snap.Answers[0].TimeSpentSeconds != 1 {
		t.Fatalf("expected last visit to overwrite time, got %+v", snap.Answers[0])
	}
	for i, a := range snap.Answers {
		if a.TimeSpentSeconds > 45 || a.TimeSpentSeconds < 0 {
			t.Fatalf("answer %d outside [0,45]: %+v", i, a)
		}
	}
}

func TestUntimedSessionRecordsUncappedTime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sub := &recordingSubmitter{}
	s := newSession(t, app.Deps{Generator: staticGenerator(threeQuestions()), Submitter: sub, Clock: clock})

	mustDo(t, s.Start(domain.SessionConfig{Topic: "general", QuestionCount: 3}))
	snap := waitForPhase(t, s, domain.PhaseTaking)
	if snap.TimerEnabled || snap.TimeRemaining != 0 {
		t.Fatalf("expected no countdown, got %+v", snap)
	}

	clock.Advance(90 * time.Second)
	for i := 0; i < 3; i++ {
		mustDo(t, s.Select(0))
		mustDo(t, s.Advance())
	}
	waitForPhase(t, s, domain.PhaseCompleted)
	payload := sub.last(t)
	if payload.Timing.TimeSpentPerQuestion[0] != 90 || payload.Timing.TimerEnabled || payload.Timing.TimePerQuestion != 0 {
		t.Fatalf("unexpected timing %+v", payload.Timing)
	}
}

func TestStartValidation(t *testing.T) {
	gen := &countingGenerator{set: threeQuestions()}
	s := newSession(t, app.Deps{Generator: gen, Submitter: &recordingSubmitter{}})

	cases := []domain.SessionConfig{
		{Topic: "  ", QuestionCount: 5},
		{Topic: "go", QuestionCount: 0},
		{Topic: "go", QuestionCount: 51},
		{Topic: "go", QuestionCount: 5, PerQuestionSeconds: domain.Intp(0)},
		{Topic: "go", QuestionCount: 5, Mode: "exam"},
	}
	for _, cfg := range cases {
		err := s.Start(cfg)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) || !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", cfg, err)
		}
		snap := s.Snapshot()
		if snap.Phase != domain.PhaseSetup || snap.ValidationError == "" {
			t.Fatalf("expected setup with message, got %+v", snap)
		}
	}
	if gen.count() != 0 {
		t.Fatalf("generator must not be called for invalid config, calls=%d", gen.count())
	}
}

func TestRefusedActionsLeaveStateUntouched(t *testing.T) {
	gate := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
		<-gate
		return threeQuestions(), nil
	})
	s := newSession(t, app.Deps{Generator: gen, Submitter: &recordingSubmitter{}})

	if err := s.Advance(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition in setup, got %v", err)
	}

	mustDo(t, s.Start(timedConfig(3, 45)))
	before := s.Snapshot()
	if before.Phase != domain.PhaseGenerating {
		t.Fatalf("expected generating, got %s", before.Phase)
	}
	if err := s.Select(0); !errors.Is(err, domain.ErrRequestPending) {
		t.Fatalf("expected pending error, got %v", err)
	}
	if err := s.Start(timedConfig(3, 45)); !errors.Is(err, domain.ErrRequestPending) {
		t.Fatalf("expected pending error on double start, got %v", err)
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Fatalf("refused action changed state")
	}

	close(gate)
	waitForPhase(t, s, domain.PhaseTaking)

	if err := s.Advance(); !errors.Is(err, domain.ErrNoSelection) {
		t.Fatalf("expected no selection, got %v", err)
	}
	if err := s.Select(7); !errors.Is(err, domain.ErrChoiceOutOfRange) {
		t.Fatalf("expected choice out of range, got %v", err)
	}
	mustDo(t, s.Select(1))
	if err := s.Submit(); !errors.Is(err, domain.ErrIncomplete) {
		t.Fatalf("expected incomplete, got %v", err)
	}
	if snap := s.Snapshot(); snap.Phase != domain.PhaseTaking || snap.CurrentIndex != 0 {
		t.Fatalf("refused submit changed state %+v", snap)
	}
}

func TestGenerationFailureUsesFallback(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	gen := generatorFunc(func(context.Context, domain.GenerationRequest) (domain.QuestionSet, error) {
		return domain.QuestionSet{}, errors.New("connection refused")
	})
	s := newSession(t, app.Deps{
		Generator: gen,
		Fallback:  memory.NewStaticFallback(),
		Submitter: &recordingSubmitter{},
		Logger:    zap.New(core),
	})

	mustDo(t, s.Start(timedConfig(4, 45)))
	snap := waitForPhase(t, s, domain.PhaseTaking)
	if !snap.FallbackUsed || snap.Total != 4 || snap.GenerationError == "" {
		t.Fatalf("expected degraded session with fallback flag, got %+v", snap)
	}
	if logs.FilterMessage("question generation failed, using fallback question set").Len() != 1 {
		t.Fatalf("expected fallback warning, got %v", logs.All())
	}
}

func TestGenerationFailureWithoutFallback(t *testing.T) {
	gen := &countingGenerator{err: errors.New("503")}
	s := newSession(t, app.Deps{Generator: gen, Submitter: &recordingSubmitter{}})

	mustDo(t, s.Start(timedConfig(3, 45)))
	snap := waitForPhase(t, s, domain.PhaseError)
	if snap.GenerationError == "" || snap.Question != nil {
		t.Fatalf("expected generation error, got %+v", snap)
	}

	gen.succeed(threeQuestions())
	mustDo(t, s.Retry())
	waitForPhase(t, s, domain.PhaseTaking)
	if gen.count() != 2 {
		t.Fatalf("expected retry to call generator again, calls=%d", gen.count())
	}
}

func TestEmptyQuestionSetIsGenerationFailure(t *testing.T) {
	gen := staticGenerator(domain.QuestionSet{})
	s := newSession(t, app.Deps{Generator: gen, Submitter: &recordingSubmitter{}})

	mustDo(t, s.Start(timedConfig(3, 45)))
	waitForPhase(t, s, domain.PhaseError)

	mustDo(t, s.Abandon())
	snap := s.Snapshot()
	if snap.Phase != domain.PhaseSetup || snap.Config != nil || snap.GenerationError != "" {
		t.Fatalf("expected clean setup after abandon, got %+v", snap)
	}
}

func TestSubmissionFailureResubmitsIdenticalPayload(t *testing.T) {
	sub := &recordingSubmitter{failures: 1}
	s := newSession(t, app.Deps{Generator: staticGenerator(threeQuestions()), Submitter: sub, Clock: clockwork.NewFakeClock()})

	answerAll(t, s, timedConfig(3, 45), 0)
	failed := waitForPhase(t, s, domain.PhaseError)
	if failed.SubmissionError == "" || failed.Provisional == nil || failed.Result != nil {
		t.Fatalf("expected provisional result kept on failure, got %+v", failed)
	}
	if err := s.Select(1); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("answers must be frozen after failure, got %v", err)
	}

	mustDo(t, s.Submit())
	done := waitForPhase(t, s, domain.PhaseCompleted)
	payloads := sub.all()
	if len(payloads) != 2 || !reflect.DeepEqual(payloads[0], payloads[1]) {
		t.Fatalf("expected identical resubmission, got %+v", payloads)
	}
	if done.Result.Estimated {
		t.Fatalf("expected confirmed result")
	}
}

func TestSubmissionFailureAcceptEstimate(t *testing.T) {
	sub := &recordingSubmitter{failures: 5}
	s := newSession(t, app.Deps{Generator: staticGenerator(threeQuestions()), Submitter: sub})

	if err := s.AcceptEstimate(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected refusal before any failure, got %v", err)
	}
	answerAll(t, s, domain.SessionConfig{Topic: "general", QuestionCount: 3}, 1)
	failed := waitForPhase(t, s, domain.PhaseError)

	mustDo(t, s.AcceptEstimate())
	done := s.Snapshot()
	if done.Phase != domain.PhaseCompleted || !done.Result.Estimated {
		t.Fatalf("expected estimated completion, got %+v", done)
	}
	if done.Result.Score != failed.Provisional.Score {
		t.Fatalf("expected provisional score, got %+v", done.Result.Score)
	}
}

func TestPlacementAttachesLevel(t *testing.T) {
	sub := &recordingSubmitter{result: func(p domain.Payload) domain.ServerResult {
		conf := 0.8
		return domain.ServerResult{PredictedLevel: "intermediate", Confidence: &conf, CorrectCount: domain.Intp(p.CorrectAnswers), TotalCount: domain.Intp(p.TotalQuestions)}
	}}
	s := newSession(t, app.Deps{Generator: staticGenerator(threeQuestions()), Submitter: sub})

	answerAll(t, s, domain.SessionConfig{Topic: "Physics", QuestionCount: 3, Mode: domain.ModePlacement}, 0)
	done := waitForPhase(t, s, domain.PhaseCompleted)

	if done.Provisional == nil || done.Provisional.Level == nil {
		t.Fatalf("expected local level estimate, got %+v", done.Provisional)
	}
	if done.Result.Level == nil || done.Result.Level.Predicted != "intermediate" || done.Result.Level.Confidence != 0.8 {
		t.Fatalf("expected server level to win, got %+v", done.Result.Level)
	}
	if sub.last(t).Mode != domain.ModePlacement {
		t.Fatalf("expected placement payload")
	}
}

func TestRestartDiscardsLateGenerationResult(t *testing.T) {
	gate := make(chan struct{})
	var calls sync.WaitGroup
	calls.Add(1)
	first := true
	var mu sync.Mutex
	gen := generatorFunc(func(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			calls.Done()
			<-gate
		}
		return threeQuestions(), nil
	})
	s := newSession(t, app.Deps{Generator: gen, Submitter: &recordingSubmitter{}})

	mustDo(t, s.Start(timedConfig(3, 45)))
	calls.Wait()
	mustDo(t, s.Restart())
	if snap := s.Snapshot(); snap.Phase != domain.PhaseSetup || snap.Attempt != 2 {
		t.Fatalf("expected setup on attempt 2, got %+v", snap)
	}

	close(gate)
	time.Sleep(50 * time.Millisecond)
	if snap := s.Snapshot(); snap.Phase != domain.PhaseSetup || snap.Total != 0 {
		t.Fatalf("late response must be discarded, got %+v", snap)
	}

	mustDo(t, s.Start(timedConfig(3, 45)))
	waitForPhase(t, s, domain.PhaseTaking)
}

func TestRestartDoesNotFailSessionSharingLoad(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	var once sync.Once
	loader := generatorFunc(func(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return domain.QuestionSet{}, err
		}
		return threeQuestions(), nil
	})
	cache := memory.NewQuestionRepository(loader, time.Minute)

	first := newSession(t, app.Deps{Generator: cache, Submitter: &recordingSubmitter{}})
	second := newSession(t, app.Deps{Generator: cache, Submitter: &recordingSubmitter{}})

	mustDo(t, first.Start(timedConfig(3, 45)))
	<-started
	mustDo(t, second.Start(timedConfig(3, 45)))
	time.Sleep(20 * time.Millisecond)

	mustDo(t, first.Restart())
	close(release)

	snap := waitForPhase(t, second, domain.PhaseTaking)
	if snap.FallbackUsed || snap.GenerationError != "" || snap.Total != 3 {
		t.Fatalf("expected a normal generated set, got %+v", snap)
	}
	if got := first.Snapshot(); got.Phase != domain.PhaseSetup {
		t.Fatalf("expected restarted session in setup, got %s", got.Phase)
	}
}

func TestRestartDuringTakingDisarmsTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newSession(t, app.Deps{Generator: staticGenerator(threeQuestions()), Submitter: &recordingSubmitter{}, Clock: clock})

	mustDo(t, s.Start(timedConfig(3, 2)))
	waitForPhase(t, s, domain.PhaseTaking)
	tick(t, clock, s, 1)
	mustDo(t, s.Restart())

	clock.Advance(time.Second)
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	if snap := s.Snapshot(); snap.Phase != domain.PhaseSetup || snap.CurrentIndex != 0 || snap.Answers != nil {
		t.Fatalf("expected untouched setup after restart, got %+v", snap)
	}
}

func TestSubscribeAndClose(t *testing.T) {
	s := app.NewSession("s-1", app.Deps{Generator: staticGenerator(threeQuestions()), Submitter: &recordingSubmitter{}, Logger: zaptest.NewLogger(t)})

	ch, cancel := s.Subscribe()
	defer cancel()
	if first := <-ch; first.Phase != domain.PhaseSetup || first.SessionID != "s-1" {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	mustDo(t, s.Start(timedConfig(3, 45)))
	for snap := range ch {
		if snap.Phase == domain.PhaseTaking {
			break
		}
	}

	s.Close()
	s.Close()
	if !s.IsClosed() {
		t.Fatalf("expected closed session")
	}
	if err := s.Select(0); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	for range ch {
	}
}

// helpers

func newSession(t *testing.T, deps app.Deps) *app.Session {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = zaptest.NewLogger(t)
	}
	s := app.NewSession("session-test", deps)
	t.Cleanup(s.Close)
	return s
}

func timedConfig(count, seconds int) domain.SessionConfig {
	return domain.SessionConfig{Topic: "general", QuestionCount: count, PerQuestionSeconds: domain.Intp(seconds), Difficulty: domain.DifficultyBeginner}
}

func answerAll(t *testing.T, s *app.Session, cfg domain.SessionConfig, choice int) {
	t.Helper()
	mustDo(t, s.Start(cfg))
	snap := waitForPhase(t, s, domain.PhaseTaking)
	for i := 0; i < snap.Total; i++ {
		mustDo(t, s.Select(choice))
		mustDo(t, s.Advance())
	}
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func waitFor(t *testing.T, s *app.Session, what string, cond func(domain.Snapshot) bool) domain.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := s.Snapshot()
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last snapshot %+v", what, snap)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForPhase(t *testing.T, s *app.Session, phase domain.Phase) domain.Snapshot {
	t.Helper()
	return waitFor(t, s, string(phase), func(snap domain.Snapshot) bool { return snap.Phase == phase })
}

// tick advances the fake clock one second at a time and waits for each tick to land.
func tick(t *testing.T, clock clockwork.FakeClock, s *app.Session, seconds int) {
	t.Helper()
	for i := 0; i < seconds; i++ {
		before := s.Snapshot()
		clock.Advance(time.Second)
		waitFor(t, s, "tick", func(snap domain.Snapshot) bool {
			return snap.Phase != domain.PhaseTaking ||
				snap.CurrentIndex != before.CurrentIndex ||
				snap.TimeRemaining == before.TimeRemaining-1
		})
	}
}

func threeQuestions() domain.QuestionSet {
	return domain.QuestionSet{
		QuizID: "quiz-1",
		Questions: []domain.Question{
			{Text: "What is 2 + 2?", Choices: []string{"3", "4", "5"}, CorrectChoice: "4", Difficulty: domain.DifficultyBeginner},
			{Text: "What is 3 * 2?", Choices: []string{"6", "9", "12"}, CorrectChoice: "6", Difficulty: domain.DifficultyIntermediate},
			{Text: "Capital of France?", Choices: []string{"Rome", "Berlin", "Paris"}, CorrectChoice: "Paris", Difficulty: domain.DifficultyAdvanced},
		},
	}
}

type generatorFunc func(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error)

func (f generatorFunc) Generate(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
	return f(ctx, req)
}

func staticGenerator(set domain.QuestionSet) app.QuestionGenerator {
	return generatorFunc(func(context.Context, domain.GenerationRequest) (domain.QuestionSet, error) {
		return set, nil
	})
}

type countingGenerator struct {
	mu    sync.Mutex
	calls int
	set   domain.QuestionSet
	err   error
}

func (g *countingGenerator) Generate(context.Context, domain.GenerationRequest) (domain.QuestionSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.set, g.err
}

func (g *countingGenerator) succeed(set domain.QuestionSet) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set, g.err = set, nil
}

func (g *countingGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingSubmitter struct {
	mu       sync.Mutex
	payloads []domain.Payload
	failures int
	result   func(domain.Payload) domain.ServerResult
}

func (r *recordingSubmitter) Submit(_ context.Context, p domain.Payload) (domain.ServerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	if r.failures > 0 {
		r.failures--
		return domain.ServerResult{}, errors.New("scoring backend unavailable")
	}
	if r.result != nil {
		return r.result(p), nil
	}
	return domain.ServerResult{
		AttemptID:    "attempt-1",
		CorrectCount: domain.Intp(p.CorrectAnswers),
		TotalCount:   domain.Intp(p.TotalQuestions),
	}, nil
}

func (r *recordingSubmitter) all() []domain.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Payload(nil), r.payloads...)
}

func (r *recordingSubmitter) last(t *testing.T) domain.Payload {
	t.Helper()
	all := r.all()
	if len(all) == 0 {
		t.Fatalf("nothing submitted")
	}
	return all[len(all)-1]
}
