// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vidiwise/internal/application"
	"vidiwise/internal/config"
	"vidiwise/internal/domain/ports/adapter"
	"vidiwise/internal/domain/ports/repository"
	"vidiwise/internal/infra/adapters/backend"
	"vidiwise/internal/infra/adapters/credentials"
	tele "vidiwise/internal/infra/adapters/telegram"
	pg "vidiwise/internal/infra/db/postgres"
	"vidiwise/internal/infra/i18n"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/memstore"
	"vidiwise/internal/infra/metrics"
	red "vidiwise/internal/infra/redis"
	"vidiwise/internal/infra/sched"
	"vidiwise/internal/infra/scheduler"
	"vidiwise/internal/infra/security"
	"vidiwise/internal/infra/web"
	"vidiwise/internal/infra/worker"
	"vidiwise/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("gateway stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Backend ----
	creds, err := credentials.New(cfg.Backend.Token, cfg.Backend.JWTSecret, cfg.Backend.JWTSubject, cfg.Backend.JWTTTL)
	if err != nil {
		return err
	}
	httpBackend, err := backend.NewHTTPBackend(cfg.Backend.BaseURL, cfg.Backend.Timeout, creds, logger)
	if err != nil {
		return err
	}
	vb := backend.NewLimitedBackend(httpBackend, cfg.Backend.MaxConcurrent)

	jobs := usecase.NewJobClient(vb, usecase.JobClientConfig{
		PollInterval:     cfg.Jobs.PollInterval,
		ChatPollInterval: cfg.Jobs.ChatPollInterval,
		Timeout:          cfg.Jobs.Timeout,
		Retain:           cfg.Jobs.Retain,
	}, logger)

	// ---- Redis (optional) ----
	var (
		chatCache *red.ChatCache
		limiter   web.RateLimiter
		locker    application.SubmitLocker
		tracked   repository.TrackedJobStore
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rc.Close()
		chatCache = red.NewChatCache(rc, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(rc)
		locker = red.NewSubmitLock(rc)
		tracked = red.NewTrackedJobs(rc)
	} else {
		logger.Warn().Msg("redis.url not set; submit locks, rate limits and job resume are disabled")
	}

	// ---- Encryption ----
	enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		return err
	}

	// ---- Postgres (optional) ----
	var (
		sessions repository.ChatSessionRepository = memstore.NewChatSessions()
		history  repository.VideoJobRepository
		sent     repository.NotificationLogRepository
		tm       repository.TransactionManager
	)
	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			return err
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second)
		sessions = pg.NewChatSessionRepo(pool, chatCache, enc)
		history = pg.NewVideoJobRepo(pool)
		sent = pg.NewNotificationLogRepo(pool)
		tm = pg.NewTxManager(pool)
	} else {
		logger.Warn().Msg("database.url not set; chat sessions live in memory and job history is off")
	}

	// ---- Telegram ----
	var bot adapter.TelegramBotAdapter = tele.NewNoopBotAdapter(logger)
	if cfg.Telegram.Token != "" {
		bn, err := tele.NewBotNotifier(cfg.Telegram.Token, logger)
		if err != nil {
			return err
		}
		bot = bn
	}
	notifUC := usecase.NewNotificationUseCase(bot, sent, i18n.Default(), cfg.Telegram.ChatID, logger)

	// ---- Workers ----
	pool := worker.NewPool(cfg.Gateway.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()
	sink := worker.NewJobSink(pool, history, tracked, notifUC, logger)

	prober := scheduler.NewScheduler(cfg.Backend.ProbeInterval, vb, logger)
	prober.OnChange = func(up bool) {
		if err := notifUC.NotifyBackend(ctx, up); err != nil {
			logger.Warn().Err(err).Msg("backend status notification")
		}
	}
	prober.Start(ctx)
	defer prober.Stop()

	retention := sched.NewRetentionWorker(cfg.History.SweepInterval, cfg.History.Retention, sessions, logger)
	go func() { _ = retention.Run(ctx) }()

	// ---- Facade ----
	videos := usecase.NewVideoUseCase(vb, jobs, logger)
	facade := application.NewDashboardFacade(jobs, videos, logger)
	facade.Chat = usecase.NewChatUseCase(jobs, sessions, tm, logger)
	facade.Stats = usecase.NewStatsUseCase(jobs, history, logger)
	facade.Locker = locker
	facade.Tracked = tracked
	facade.History = history
	facade.Sink = sink
	facade.Probe = prober
	facade.LockTTL = cfg.Redis.SubmitLockTTL
	facade.Retry = usecase.RetryPolicy{MaxAttempts: cfg.Jobs.SubmitRetries + 1, Backoff: cfg.Jobs.RetryBackoff}
	defer facade.Close()

	if n, err := facade.Resume(ctx); err != nil {
		logger.Warn().Err(err).Msg("resume tracked jobs")
	} else if n > 0 {
		logger.Info().Int("jobs", n).Msg("resumed tracked jobs")
	}

	// ---- Gateway ----
	var auth *web.AuthManager
	if cfg.Auth.JWTSecret != "" {
		auth, err = web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("auth.jwt_secret not set; /api/v1 answers 403")
	}
	opts := []web.Option{}
	if limiter != nil && cfg.Gateway.RateLimitPerMinute > 0 {
		opts = append(opts, web.WithRateLimit(limiter, cfg.Gateway.RateLimitPerMinute))
	}
	srv := web.NewServer(facade, auth, logger, opts...)

	if cfg.Gateway.MetricsAddr != "" && cfg.Gateway.MetricsAddr != cfg.Gateway.Addr {
		go serveMetrics(ctx, cfg.Gateway.MetricsAddr, logger)
	}
	return srv.Run(ctx, cfg.Gateway.Addr)
}

func serveMetrics(ctx context.Context, addr string, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	ms := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = ms.Close()
	}()
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server")
	}
}
