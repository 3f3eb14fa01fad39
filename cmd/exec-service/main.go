package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeexec/internal/common/cache"
	"codeexec/internal/common/db"
	commonmw "codeexec/internal/common/http/middleware"
	"codeexec/internal/common/limiter"
	"codeexec/internal/execution/controller"
	"codeexec/internal/execution/repository"
	"codeexec/internal/execution/sandbox"
	"codeexec/internal/execution/sandbox/compiler"
	"codeexec/internal/execution/sandbox/config"
	"codeexec/internal/execution/sandbox/engine"
	"codeexec/internal/execution/sandbox/observer"
	"codeexec/internal/execution/sandbox/stager"
	"codeexec/pkg/utils/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/exec_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envPath := flag.String("env", ".env", "Path to optional .env file")
	flag.Parse()

	if err := loadEnvFile(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := os.MkdirAll(appCfg.Sandbox.WorkRoot, 0o755); err != nil {
		logger.Error(context.Background(), "create work root failed", zap.String("root", appCfg.Sandbox.WorkRoot), zap.Error(err))
		return
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := observer.NewPrometheusRecorder(registry)

	localRepo := config.NewLocalRepository(appCfg.Language.languageSpecs())
	eng := engine.NewProcessRunner(engine.Config{
		SampleInterval: appCfg.Sandbox.SampleInterval,
		OutputMaxBytes: appCfg.Sandbox.OutputMaxBytes,
		EnableRlimits:  appCfg.Sandbox.EnableRlimits,
		InitHelper:     appCfg.Sandbox.InitHelper,
		SeccompProfile: appCfg.Sandbox.SeccompProfile,
	})
	execSvc, err := sandbox.NewService(
		sandbox.Config{
			DefaultTimeLimitMs:   appCfg.Sandbox.DefaultTimeLimitMs,
			DefaultMemoryLimitKB: appCfg.Sandbox.DefaultMemoryLimitKB,
			MaxTimeLimitMs:       appCfg.Sandbox.MaxTimeLimitMs,
			MaxMemoryLimitKB:     appCfg.Sandbox.MaxMemoryLimitKB,
			MaxSourceBytes:       appCfg.Sandbox.MaxSourceBytes,
		},
		localRepo,
		eng,
		compiler.New(compiler.Config{Timeout: appCfg.Sandbox.CompileTimeout}),
		stager.New(appCfg.Sandbox.WorkRoot),
		recorder,
	)
	if err != nil {
		logger.Error(context.Background(), "init execution service failed", zap.Error(err))
		return
	}

	opts := controller.Options{
		Admission: limiter.NewTokenLimiter(appCfg.Server.MaxConcurrent),
		Observer:  recorder,
	}
	if appCfg.Store.Enabled {
		store, closeStore, err := buildResultStore(context.Background(), appCfg.Store)
		if err != nil {
			logger.Error(context.Background(), "init result store failed", zap.String("driver", appCfg.Store.Driver), zap.Error(err))
			return
		}
		defer closeStore()
		opts.Store = store
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	rateLimiter := limiter.NewKeyedRateLimiter(appCfg.Server.RateLimit)
	rateLimiter.StartCleanup(rootCtx, time.Minute)

	execController := controller.NewExecutionController(execSvc, execSvc, opts)
	httpServer := buildHTTPServer(appCfg.Server, execController, rateLimiter, recorder, registry)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "exec http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("work_root", appCfg.Sandbox.WorkRoot),
			zap.Int("max_concurrent", appCfg.Server.MaxConcurrent),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	eng.KillAll(ctx)
}

// buildResultStore wires the configured result store. The returned func
// releases everything opened here.
func buildResultStore(ctx context.Context, cfg StoreConfig) (controller.ResultStore, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var cached *repository.ResultRepository
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = redisCache.Close() })
		cached, err = repository.NewResultRepository(redisCache, cfg.KeyPrefix, cfg.TTL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = cached.Close() })
	}

	if cfg.Driver != storeDriverMySQL {
		return cached, closeAll, nil
	}

	mysqlDB, err := db.NewMySQLWithConfig(&cfg.MySQL)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = mysqlDB.Close() })
	mysqlRepo, err := repository.NewMySQLResultRepository(mysqlDB, cached)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = mysqlRepo.Close() })
	if err := mysqlRepo.EnsureSchema(ctx); err != nil {
		closeAll()
		return nil, nil, err
	}
	return mysqlRepo, closeAll, nil
}

func buildHTTPServer(cfg ServerConfig, execController *controller.ExecutionController, rateLimiter commonmw.KeyLimiter, recorder *observer.PrometheusRecorder, registry *prometheus.Registry) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())
	router.Use(corsMiddleware(cfg.CORSOrigins))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	limited := router.Group("")
	if cfg.RateLimit.RPS > 0 {
		limited.Use(commonmw.RateLimitMiddleware(rateLimiter, func() { recorder.ObserveRejected("rate_limit") }))
	}
	execController.RegisterRoutes(limited)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", commonmw.TraceIDHeader, commonmw.RequestIDHeader},
		ExposeHeaders: []string{commonmw.TraceIDHeader, commonmw.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	})
}
