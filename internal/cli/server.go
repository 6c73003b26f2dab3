package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecolearn-engine/internal/app"
	"ecolearn-engine/internal/config"
	"ecolearn-engine/internal/infra/memory"
	pg "ecolearn-engine/internal/infra/postgres"
	redisinfra "ecolearn-engine/internal/infra/redis"
	"ecolearn-engine/internal/logging"
	"ecolearn-engine/internal/seed"
	transport "ecolearn-engine/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServerCmd builds the CLI subcommand to start the server.
func NewServerCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the gamification API server",
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

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	engine, err := buildEngine(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}

	handler := transport.NewHandler(engine, logger)
	wsHandler := transport.NewWSHandler(engine, logger)

	mux := http.NewServeMux()
	handler.Register(mux, wsHandler)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting gamification engine", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildEngine wires repositories by what is configured: Postgres when a URL
// is present, otherwise an in-memory store seeded with the starter content;
// Redis layers content and snapshot caches on top when an address is set.
func buildEngine(ctx context.Context, cfg config.Config, redisClient *redis.Client, logger *zap.Logger) (*app.Engine, error) {
	quizTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	lbTTL := config.TTLDuration(cfg.Leaderboard.CacheTTL, 15*time.Second)

	var lbCache app.LeaderboardCache
	if redisClient != nil {
		lbCache = redisinfra.NewLeaderboardCache(redisClient, lbTTL)
	}

	if cfg.Postgres.URL == "" {
		store := memory.NewStore()
		now := time.Now()
		for _, q := range seed.Quizzes(now) {
			store.PutQuiz(q)
		}
		for _, c := range seed.Challenges(now) {
			store.PutChallenge(c)
		}
		for _, b := range seed.Badges() {
			store.PutBadge(b)
		}

		badges := app.NewBadgeEvaluator(store, store, store, store, logger)
		leaderboard := app.NewAggregator(store, store, store.Completions(), lbCache, logger)
		return app.NewEngine(store, store, store, store, store, store, badges, leaderboard, logger), nil
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	db, err := openBun(cfg)
	if err != nil {
		return nil, err
	}
	repos := pg.NewRepositories(db)

	loader := pg.NewQuizLoader(pool)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizCache(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizCache(loader, quizTTL)
	}

	badges := app.NewBadgeEvaluator(repos.Users, repos.Badges, repos.Awards, repos.Attempts, logger)
	leaderboard := app.NewAggregator(repos.Users, repos.Attempts, repos.Completions, lbCache, logger)
	return app.NewEngine(repos.Users, quizRepo, repos.QuizStats, repos.Attempts, repos.Challenges, repos.Completions, badges, leaderboard, logger), nil
}
