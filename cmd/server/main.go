// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/codeduel/internal/auth"
	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/jason-s-yu/codeduel/internal/cache"
	"github.com/jason-s-yu/codeduel/internal/config"
	"github.com/jason-s-yu/codeduel/internal/database"
	"github.com/jason-s-yu/codeduel/internal/executor"
	"github.com/jason-s-yu/codeduel/internal/handlers"
	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/jason-s-yu/codeduel/internal/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if err := configureLogger(logger, cfg); err != nil {
		logger.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func configureLogger(logger *logrus.Logger, cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	// redis: notification bus and problem cache
	var rdb *redis.Client
	var bus realtime.Bus = realtime.NewLocalBus()
	if cfg.Redis.Enabled() {
		var err error
		rdb, err = cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		bus = realtime.NewRedisBus(rdb, cfg.Redis.Prefix, logger)
		logger.Infof("Using redis at %s for notifications", cfg.Redis.Addr)
	} else {
		logger.Warn("REDIS_ADDR not set; notifications stay inside this process")
	}

	store, problems, cleanup, err := openStorage(ctx, cfg, logger, rdb)
	if err != nil {
		return err
	}
	defer cleanup()

	exec, closeExec, err := openExecutor(cfg, logger)
	if err != nil {
		return err
	}
	defer closeExec()

	profiles, err := battle.LoadBotProfiles(cfg.Battle.BotProfiles)
	if err != nil {
		return err
	}
	opts := battle.DefaultOptions()
	opts.FirstCorrectMode = battle.FirstCorrectMode(cfg.Battle.FirstCorrectMode)
	opts.AutoAdvance = cfg.Battle.AutoAdvance
	opts.BotProfiles = profiles

	engine := battle.NewEngine(store, problems, exec, bus, logger, opts)
	defer engine.Close()

	expire, err := auth.ParseExpire(cfg.Auth.TokenExpire)
	if err != nil {
		return err
	}
	var authority *auth.Authority
	if cfg.Auth.PrivateKeyPath != "" {
		authority, err = auth.NewFromPath(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, expire)
	} else {
		logger.Warn("JWT key paths not set; using an ephemeral key pair")
		authority, err = auth.New(expire)
	}
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(&handlers.Server{
			Engine:         engine,
			Auth:           authority,
			Logger:         logger,
			SubmitTimeout:  cfg.Battle.SubmitTimeout,
			SecureCookies:  cfg.Production(),
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		battle.NewReaper(engine, cfg.Battle.RoomTTL, cfg.Battle.ReapInterval).Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStorage picks Postgres when configured, otherwise the in-memory store with a file-backed problem bank.
func openStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger, rdb *redis.Client) (battle.Store, battle.ProblemPool, func(), error) {
	var filePool *battle.StaticPool
	var seed []models.Problem
	if cfg.ProblemsFile != "" {
		var err error
		filePool, err = battle.LoadProblemsFile(cfg.ProblemsFile)
		if err != nil {
			return nil, nil, nil, err
		}
		seed = filePool.Problems()
	}

	if !cfg.Postgres.Enabled() {
		logger.Warn("PG_HOST not set; battles are kept in memory")
		if filePool == nil {
			return nil, nil, nil, fmt.Errorf("PROBLEMS_FILE is required without a database")
		}
		return battle.NewMemoryStore(), filePool, func() {}, nil
	}

	if err := database.Migrate(cfg.Postgres); err != nil {
		return nil, nil, nil, err
	}
	pool, err := database.Connect(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Infof("Connected to database at %s:%s/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)

	repo := database.NewProblemRepository(pool)
	if len(seed) > 0 {
		if err := repo.UpsertProblems(ctx, seed); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		logger.Infof("Seeded %d problems from %s", len(seed), cfg.ProblemsFile)
	}

	var problems battle.ProblemPool = repo
	if rdb != nil {
		pc := cache.NewProblemCache(repo, rdb, cfg.Redis.Prefix, cfg.ProblemCacheTTL, logger)
		if len(seed) > 0 {
			if err := pc.Invalidate(ctx); err != nil {
				logger.WithError(err).Warn("failed to invalidate problem cache")
			}
		}
		problems = pc
	}
	return database.NewBattleRepository(pool), problems, pool.Close, nil
}

func openExecutor(cfg *config.Config, logger *logrus.Logger) (executor.Executor, func(), error) {
	if cfg.Executor.Kind == "docker" {
		d, err := executor.NewDockerExecutor(executor.DockerOptions{
			MemoryLimit: cfg.Executor.DockerMemory,
			CPUs:        cfg.Executor.DockerCPUs,
			PidsLimit:   cfg.Executor.DockerPids,
			RunTimeout:  cfg.Executor.Timeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Executing submissions in local docker containers")
		return d, func() { _ = d.Close() }, nil
	}
	logger.Infof("Executing submissions through piston at %s", cfg.Executor.PistonURL)
	return executor.NewPistonClient(cfg.Executor.PistonURL, cfg.Executor.Timeout), func() {}, nil
}
