package main

import (
	"artsheets/internal/api"
	"artsheets/internal/catalog"
	"artsheets/internal/config"
	"artsheets/internal/llm"
	"artsheets/internal/model"
	"artsheets/internal/quota"
	"artsheets/internal/service"
	"artsheets/internal/storage"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化logger
	logrus.SetFormatter(&logrus.JSONFormatter{})

	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		os.Exit(1)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
		logrus.SetLevel(logrus.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	repo, err := model.InitRepository(&cfg)
	if err != nil {
		return fmt.Errorf("initialise repository: %w", err)
	}

	seeded, err := model.SeedQuotaAccounts(ctx, repo, cfg.PlanFreeCredits)
	if err != nil {
		logrus.WithError(err).Warn("failed to seed quota accounts")
	} else if seeded > 0 {
		logrus.WithField("count", seeded).Info("quota_accounts_seeded")
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("initialise storage: %w", err)
	}

	backend, err := llm.NewBackend(cfg)
	if err != nil {
		return fmt.Errorf("initialise generation backend: %w", err)
	}

	generationOpts := service.Options{Timeout: cfg.GenerationTimeout}
	if err := generationOpts.CheckReservationTTL(cfg.ReservationTTL); err != nil {
		return fmt.Errorf("invalid RESERVATION_TTL: %w", err)
	}

	ledger := quota.NewLedger(repo, cfg.ReservationTTL, quota.Allotments{
		Free:    cfg.PlanFreeCredits,
		Basic:   cfg.PlanBasicCredits,
		Premium: cfg.PlanPremiumCredits,
	})
	invoker := llm.NewInvoker(backend, store, llm.InvokerOptions{
		Concurrency:    cfg.GenerationConcurrency,
		MaxAttempts:    cfg.GenerationMaxAttempts,
		ThumbnailWidth: cfg.ThumbnailWidth,
	})
	generation := service.NewGenerationService(
		catalog.NewValidator(cfg.GenerationMaxQuantity),
		ledger,
		invoker,
		service.NewRecorder(repo),
		generationOpts,
	)

	limiter, closeLimiter, err := newRateLimiter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialise rate limiter: %w", err)
	}
	defer closeLimiter()

	httpHandler, err := api.NewHTTPHandler(cfg, repo, store, api.Dependencies{
		Generation: generation,
		Ledger:     ledger,
		Limiter:    limiter,
	})
	if err != nil {
		return fmt.Errorf("initialise http handler: %w", err)
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	httpHandler.RegisterRoutes(r)

	if localProvider, ok := store.(storage.LocalBaseDirProvider); ok {
		if publicPrefix := httpHandler.PublicBase(); publicPrefix != "" {
			r.Static(publicPrefix, localProvider.LocalBaseDir())
		}
	}

	go ledger.RunSweeper(ctx, cfg.ReservationSweepInterval)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	// 创建HTTP服务器，写超时需覆盖生成超时
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 60*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"host":    serverHost,
			"backend": backend.Name(),
			"storage": cfg.StorageType,
		}).Info("服务器启动")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("服务器关闭中")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newRateLimiter 配置了 Redis 时使用共享计数，否则使用进程内令牌桶
func newRateLimiter(ctx context.Context, cfg config.Config) (api.RateLimiter, func(), error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return api.NewLocalRateLimiter(cfg.GenerationRatePerMin, time.Minute), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close redis client")
		}
	}
	return api.NewRedisRateLimiter(client, cfg.GenerationRatePerMin, time.Minute), closeFn, nil
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
