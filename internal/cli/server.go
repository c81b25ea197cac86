package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	transport "quiz-attempt-service/internal/transport/http"
	"quiz-attempt-service/internal/worker"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server and leaderboard workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// deps is everything the server and the maintenance commands share.
type deps struct {
	store     app.Store
	source    app.AnalyticsSource
	cache     app.Cache
	queue     app.RankJobQueue
	feed      *app.RankFeed
	attempts  *app.AttemptManager
	analytics *app.AnalyticsService
	updater   *app.LeaderboardUpdater
	redis     *redis.Client
	closers   []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*deps, error) {
	d := &deps{feed: app.NewRankFeed()}

	if cfg.Postgres.URL != "" {
		db := postgres.Open(cfg.Postgres.URL)
		d.closers = append(d.closers, func() { db.Close() })
		if err := runMigrationsOnDB(ctx, db, log); err != nil {
			d.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		d.store = postgres.NewStore(db)
		d.source = postgres.NewAnalyticsSource(pool)
	} else {
		log.Warn("postgres url not configured, using in-memory store")
		store := memory.NewStore()
		store.SeedQuiz(sampleQuiz())
		d.store = store
		d.source = store
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, err
		}
		d.redis = client
		d.cache = redisinfra.NewCache(client)
		d.queue = redisinfra.NewQueue(client, cfg.Redis.QueueKey)
	} else {
		d.cache = memory.NewCache()
		d.queue = memory.NewQueue(1024)
	}

	d.attempts = app.NewAttemptManager(d.store, d.queue, log)
	d.updater = app.NewLeaderboardUpdater(d.store, d.feed, log)
	d.analytics = app.NewAnalyticsService(d.source, d.cache, app.AnalyticsOptions{
		TTL:         config.TTLDuration(cfg.Analytics.TTL, app.DefaultAnalyticsTTL),
		AdminTTL:    config.TTLDuration(cfg.Analytics.AdminTTL, app.DefaultAdminAnalyticsTTL),
		RecentLimit: cfg.Analytics.RecentLimit,
	}, log)
	return d, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	// Jobs a previous process dequeued but never acknowledged.
	if q, ok := d.queue.(*redisinfra.Queue); ok {
		n, err := q.Recover(ctx)
		if err != nil {
			log.WithError(err).Warn("recover in-flight rank jobs")
		} else if n > 0 {
			log.WithField("count", n).Info("requeued in-flight rank jobs")
		}
	}

	handler := transport.NewHandler(d.attempts, d.analytics, d.updater, d.feed, log)
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", finalPort).Info("starting quiz attempt service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	workers := cfg.Leaderboard.Workers
	if workers <= 0 {
		workers = 1
	}
	opts := worker.Options{
		MaxRetries:     cfg.Leaderboard.MaxRetries,
		InitialBackoff: config.TTLDuration(cfg.Leaderboard.InitialBackoff, worker.DefaultInitialBackoff),
	}
	for i := 0; i < workers; i++ {
		w := worker.New(d.queue, d.updater, opts, log.WithField("worker", i))
		g.Go(func() error { return w.Run(gctx) })
	}

	if schedule := cfg.Leaderboard.ReconcileSchedule; schedule != "" {
		sweep, err := worker.NewSweep(schedule, d.updater, d.queue, log)
		if err != nil {
			return err
		}
		g.Go(func() error { return sweep.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// sampleQuiz seeds the in-memory store so the service is usable without a database.
func sampleQuiz() (domain.Quiz, []domain.Question) {
	quiz := domain.Quiz{ID: 1, Title: "General knowledge", Category: "General"}
	questions := []domain.Question{
		{
			ID:   1,
			Text: "What is 2 + 2?",
			Choices: []domain.Choice{
				{ID: 1, Text: "3"},
				{ID: 2, Text: "4", IsCorrect: true},
				{ID: 3, Text: "5"},
			},
		},
		{
			ID:   2,
			Text: "Which planet is closest to the sun?",
			Choices: []domain.Choice{
				{ID: 4, Text: "Mercury", IsCorrect: true},
				{ID: 5, Text: "Venus"},
				{ID: 6, Text: "Mars"},
			},
		},
		{
			ID:   3,
			Text: "What is the chemical symbol for water?",
			Choices: []domain.Choice{
				{ID: 7, Text: "O2"},
				{ID: 8, Text: "H2O", IsCorrect: true},
			},
		},
	}
	return quiz, questions
}
