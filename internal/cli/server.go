package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/config"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/gemini"
	"quiz-session-engine/internal/infra/httpapi"
	"quiz-session-engine/internal/infra/memory"
	pgfallback "quiz-session-engine/internal/infra/postgres"
	rediscache "quiz-session-engine/internal/infra/redis"
	"quiz-session-engine/internal/logger"
	transport "quiz-session-engine/internal/transport/http"
)


// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	static := memory.NewStaticFallback()

	var submitter app.Submitter = offlineSubmitter{}
	var loader memory.QuestionLoader
	switch {
	case cfg.API.BaseURL != "":
		client := httpapi.NewClient(cfg.API.BaseURL, cfg.API.Token, config.TTLDuration(cfg.API.Timeout, 30*time.Second), log.Named("httpapi"))
		loader = client
		submitter = client
	case cfg.Gemini.APIKey != "":
		gen, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, log.Named("gemini"))
		if err != nil {
			return err
		}
		defer gen.Close()
		loader = gen
	default:
		log.Warn("no question generator configured, sessions will use fallback question sets",
			zap.Bool("fallback_enabled", cfg.Engine.Fallback()))
		loader = unconfiguredGenerator{}
	}
	if cfg.API.BaseURL == "" {
		log.Warn("no scoring backend configured, results will be estimated")
	}

	cacheTTL := config.TTLDuration(cfg.Generation.CacheTTL, 10*time.Minute)
	var generator app.QuestionGenerator
	if redisClient != nil {
		generator = rediscache.NewQuestionRepository(redisClient, loader, cacheTTL, log.Named("cache"))
	} else {
		generator = memory.NewQuestionRepository(loader, cacheTTL)
	}

	var fallback app.FallbackSource
	if cfg.Engine.Fallback() {
		if pool != nil {
			fallback = memory.NewChainFallback(pgfallback.NewFallbackLoader(pool), static)
		} else {
			fallback = static
		}
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = rediscache.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	service := app.NewQuizService(store, app.Deps{
		Generator: generator,
		Fallback:  fallback,
		Submitter: submitter,
		Logger:    log.Named("session"),
	}, app.Defaults{
		PerQuestionSeconds:     cfg.Engine.PerQuestionSeconds,
		QuestionCount:          cfg.Engine.QuestionCount,
		PlacementQuestionCount: cfg.Engine.PlacementQuestionCount,
		Difficulty:             domain.Difficulty(cfg.Engine.Difficulty),
	})
	wsHandler := transport.NewWSHandler(service, log.Named("ws"))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, wsHandler),
		ReadTimeout: 15 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting quiz session engine", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

var (
	errNoGenerator      = errors.New("no question generator configured")
	errNoScoringBackend = errors.New("scoring backend not configured")
)

// unconfiguredGenerator fails every request so sessions take the flagged fallback path.
type unconfiguredGenerator struct{}

func (unconfiguredGenerator) Generate(context.Context, domain.GenerationRequest) (domain.QuestionSet, error) {
	return domain.QuestionSet{}, errNoGenerator
}

type offlineSubmitter struct{}

func (offlineSubmitter) Submit(context.Context, domain.Payload) (domain.ServerResult, error) {
	return domain.ServerResult{}, errNoScoringBackend
}
