package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/quiz-widget/internal/config"
	"github.com/gokatarajesh/quiz-widget/internal/logging"
	"github.com/gokatarajesh/quiz-widget/internal/metrics"
	"github.com/gokatarajesh/quiz-widget/internal/quiz"
	"github.com/gokatarajesh/quiz-widget/internal/server"
	"github.com/gokatarajesh/quiz-widget/internal/session"
	ws "github.com/gokatarajesh/quiz-widget/pkg/http/ws"
)

// Application aggregates the quiz service's infrastructure.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis   *redis.Client
	http    *http.Server
	sweeper *session.Sweeper
}

// New loads the question bank, picks a session store and builds the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	bank := quiz.DefaultBank()
	if cfg.Quiz.BankPath != "" {
		loaded, err := quiz.LoadBank(cfg.Quiz.BankPath)
		if err != nil {
			return nil, err
		}
		bank = loaded
	}
	logger.Info().Int("questions", bank.Len()).Str("source", bankSource(cfg)).Msg("question bank loaded")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	// Redis keys expire on their own, so an active count would only grow.
	var metricOpts []metrics.Option
	if cfg.Redis.Addr != "" {
		metricOpts = append(metricOpts, metrics.WithoutActiveSessions())
	}
	recorder := metrics.New(reg, metricOpts...)

	a := &Application{cfg: cfg, logger: logger}
	checkers := map[string]server.Checker{}

	var store session.Store
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rs := session.NewRedisStore(a.redis, cfg.Session.IdleTTL, logger)
		checkers["redis"] = server.CheckerFunc(rs.Ping)
		store = rs
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("sessions stored in redis")
	} else {
		mem := session.NewMemoryStore()
		a.sweeper = session.NewSweeper(mem, recorder, cfg.Session.SweepInterval, cfg.Session.IdleTTL, logger)
		store = mem
		logger.Info().Msg("sessions stored in memory")
	}

	manager := session.NewManager(bank, store, recorder, logger)
	hub := ws.NewHub(logger)
	sessions := server.NewSessionHandler(manager, hub, cfg.CORS.AllowedOrigins, logger)

	a.http = server.NewHTTPServer(cfg, logger, server.Deps{
		Sessions: sessions,
		Checkers: checkers,
		Gatherer: reg,
	})
	return a, nil
}

func bankSource(cfg *config.App) string {
	if cfg.Quiz.BankPath != "" {
		return cfg.Quiz.BankPath
	}
	return "builtin"
}

// Run serves HTTP and background workers until ctx is cancelled, then shuts down.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.sweeper != nil {
		g.Go(func() error {
			if err := a.sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
		defer cancel()
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("http shutdown error")
		}
		return nil
	})

	err := g.Wait()

	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.logger.Error().Err(cerr).Msg("redis shutdown error")
		}
	}
	a.logger.Info().Msg("shutdown complete")
	return err
}
