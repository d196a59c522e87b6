package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gator-course-advisor/internal/config"
	"gator-course-advisor/internal/domain/ports/adapter"
	"gator-course-advisor/internal/domain/ports/repository"
	"gator-course-advisor/internal/infra/adapters/search"
	"gator-course-advisor/internal/infra/api"
	pg "gator-course-advisor/internal/infra/db/postgres"
	"gator-course-advisor/internal/infra/ids"
	"gator-course-advisor/internal/infra/logging"
	"gator-course-advisor/internal/infra/metrics"
	red "gator-course-advisor/internal/infra/redis"
	"gator-course-advisor/internal/infra/sched"
	"gator-course-advisor/internal/infra/worker"
	"gator-course-advisor/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted queries)")
	useCatalog := flag.Bool("catalog", false, "serve recommendations from the built-in course catalog instead of search.base_url")
	mintFor := flag.String("mint-token", "", "print a bearer token for the given subject and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	var auth *api.AuthManager
	if cfg.Auth.Enabled() {
		auth = api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TTL)
	}
	if *mintFor != "" {
		if auth == nil {
			log.Fatalf("mint-token: auth.jwt_secret is not configured in %s", *cfgPath)
		}
		tok, err := auth.Mint(*mintFor)
		if err != nil {
			log.Fatalf("mint-token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Course search ----
	var backend adapter.CourseSearchAdapter
	if *useCatalog {
		backend = search.NewCatalog(0)
		logger.Info().Msg("course search: built-in catalog")
	} else {
		httpSearch, err := search.NewHTTPAdapter(cfg.Search.BaseURL, cfg.Search.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("search adapter")
		}
		backend = httpSearch
		logger.Info().Str("base_url", cfg.Search.BaseURL).Dur("timeout", cfg.Search.Timeout).Msg("course search: http")
	}
	backend = search.NewLimited(backend, cfg.Search.ConcurrentLimit)

	// ---- Redis (optional) ----
	var (
		sessionStore repository.SessionSnapshotStore
		limiter      api.Limiter
	)
	if cfg.Redis.Enabled() {
		redisClient, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer func() { _ = redisClient.Close() }()
		sessionStore = red.NewSessionStore(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
		logger.Info().Dur("ttl", cfg.Redis.TTL).Msg("session mirror: redis")
	}

	// ---- Postgres (optional) ----
	var (
		savedRepo repository.SavedCourseRepository
		poolStats sched.PoolStats
	)
	if cfg.Database.Enabled() {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		savedRepo = pg.NewPostgresSavedCourseRepo(pool)
		poolStats = func() (int32, int32, int32) {
			st := pool.Stat()
			return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
		}
		logger.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("saved courses: postgres")
	}

	// ---- Workers ----
	workers := worker.NewPool(cfg.Advisor.Workers, cfg.Advisor.Queue, logger)
	workers.Start(ctx)
	defer workers.Stop()

	// ---- Use cases ----
	hub := api.NewHub(32, logger)
	recUC := usecase.NewRecommendationUseCase(backend, logger, cfg.Runtime.Dev)
	advisorUC := usecase.NewAdvisorUseCase(recUC, workers, ids.NewGenerator(), time.Now, sessionStore, hub, cfg.Search.TopK, logger)
	if err := advisorUC.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("session restore failed; starting empty")
	}
	savedUC := usecase.NewSavedCoursesUseCase(savedRepo, logger)
	if err := savedUC.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("saved courses")
	}

	// ---- HTTP ----
	srv := api.NewServer(advisorUC, savedUC, hub, api.ServerConfig{
		RequestTimeout:       cfg.HTTP.RequestTimeout,
		Auth:                 auth,
		Limiter:              limiter,
		SubmissionsPerMinute: cfg.RateLimit.SubmissionsPerMinute,
		LimitKey:             red.SubmissionKey,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Bool("auth", auth != nil).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Backend probe ----
	probe := sched.NewProbeWorker(cfg.Search.ProbeInterval, backend, poolStats, logger)
	go func() { _ = probe.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
}
