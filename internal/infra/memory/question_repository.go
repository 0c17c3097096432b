package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"quiz-session-engine/internal/domain"
)

// LoadTimeout bounds a shared load once its callers have gone away.
const LoadTimeout = 2 * time.Minute

// QuestionLoader generates question sets, e.g. the HTTP collaborator or Gemini.
type QuestionLoader interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error)
}

// QuestionRepository caches generated question sets with TTL so identical
// requests do not hit the generator repeatedly.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  clockwork.Clock
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return NewQuestionRepositoryWithClock(loader, ttl, clockwork.NewRealClock())
}

// NewQuestionRepositoryWithClock allows deterministic expiry in tests.
func NewQuestionRepositoryWithClock(loader QuestionLoader, ttl time.Duration, clock clockwork.Clock) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  clock,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (r *QuestionRepository) Generate(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
	key := req.Key()
	if set, ok := r.lookup(key); ok {
		return set, nil
	}

	// The shared load outlives any single caller; each caller waits on its own ctx.
	ch := r.sf.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()

		if set, ok := r.lookup(key); ok {
			return set, nil
		}

		set, err := r.loader.Generate(loadCtx, req)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		if err := set.Validate(); err != nil {
			// malformed sets are never cached
			return domain.QuestionSet{}, err
		}

		r.mu.Lock()
		r.cache[key] = cachedSet{
			set:       set,
			expiresAt: r.clock.Now().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return set, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.QuestionSet{}, res.Err
		}
		return res.Val.(domain.QuestionSet), nil
	case <-ctx.Done():
		return domain.QuestionSet{}, ctx.Err()
	}
}

func (r *QuestionRepository) lookup(key string) (domain.QuestionSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock.Now()) {
		return domain.QuestionSet{}, false
	}
	return entry.set, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves fixed sets by topic (useful for tests/demos).
type StaticQuestionLoader struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionLoader(sets map[string]domain.QuestionSet) *StaticQuestionLoader {
	return &StaticQuestionLoader{sets: sets}
}

func (l *StaticQuestionLoader) Generate(_ context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
	if set, ok := l.sets[req.Topic]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrEmptyQuestionSet
}
