package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quiz-session-engine/internal/domain"
)

// LoadTimeout bounds a shared load once its callers have gone away.
const LoadTimeout = 2 * time.Minute

// QuestionLoader generates question sets on cache miss.
type QuestionLoader interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error)
}

// QuestionRepository caches generated question sets in Redis and falls back to a loader on miss.
// Sets are stored as JSON: SET quiz:questions:{mode}:{topic}:{count}:{difficulty} {set}
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration, logger *zap.Logger) *QuestionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) Generate(ctx context.Context, req domain.GenerationRequest) (domain.QuestionSet, error) {
	key := r.key(req)
	if set, ok := r.cached(ctx, key); ok {
		return set, nil
	}

	// The shared load outlives any single caller; each caller waits on its own ctx.
	ch := r.sf.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()

		// Re-check cache in case another goroutine filled it.
		if set, ok := r.cached(loadCtx, key); ok {
			return set, nil
		}

		set, err := r.loader.Generate(loadCtx, req)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		if err := set.Validate(); err != nil {
			return domain.QuestionSet{}, err
		}

		raw, err := json.Marshal(set)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		if err := r.client.Set(loadCtx, key, raw, r.ttlWithJitter()).Err(); err != nil {
			// cache writes are best effort
			r.log.Warn("cache question set", zap.String("key", key), zap.Error(err))
		}
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

func (r *QuestionRepository) cached(ctx context.Context, key string) (domain.QuestionSet, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("read cached question set", zap.String("key", key), zap.Error(err))
		}
		return domain.QuestionSet{}, false
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil || set.Validate() != nil {
		return domain.QuestionSet{}, false
	}
	return set, true
}

func (r *QuestionRepository) key(req domain.GenerationRequest) string {
	return "quiz:questions:" + req.Key()
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
