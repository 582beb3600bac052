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

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
	"codearena/internal/common/http/middleware"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	"codearena/internal/hint"
	hintcontroller "codearena/internal/hint/controller"
	hintservice "codearena/internal/hint/service"
	"codearena/internal/judge"
	problemcontroller "codearena/internal/problem/controller"
	problemrepo "codearena/internal/problem/repository"
	problemservice "codearena/internal/problem/service"
	submissioncontroller "codearena/internal/submission/controller"
	submissionrepo "codearena/internal/submission/repository"
	submissionservice "codearena/internal/submission/service"
	usercontroller "codearena/internal/user/controller"
	userrepo "codearena/internal/user/repository"
	userservice "codearena/internal/user/service"
	"codearena/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/server.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	cfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	database, err := db.NewMySQLWithConfig(&cfg.Database)
	if err != nil {
		logger.Error(ctx, "init mysql failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = database.Close() }()
	provider := db.NewStaticProvider(database)

	redisCache, err := cache.NewRedisCacheWithConfig(cfg.Redis.toCacheConfig())
	if err != nil {
		logger.Error(ctx, "init redis failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = redisCache.Close() }()

	judgeClient, err := judge.NewHTTPClient(judge.ClientOptions{
		BaseURL:      cfg.Judge.BaseURL,
		APIKey:       cfg.Judge.APIKey,
		APIKeyHeader: cfg.Judge.APIKeyHeader,
		PollAttempts: cfg.Judge.PollAttempts,
		PollInterval: cfg.Judge.PollInterval,
	})
	if err != nil {
		logger.Error(ctx, "init judge client failed", zap.Error(err))
		os.Exit(1)
	}

	userRepository := userrepo.NewUserRepository(provider, redisCache)
	solvedRepository := userrepo.NewSolvedRepository(provider, redisCache)
	tokenRepository := userrepo.NewTokenRepository(redisCache)
	problemRepository := problemrepo.NewProblemRepository(provider, redisCache)
	submissionRepository := submissionrepo.NewSubmissionRepository(provider)

	authService := userservice.NewAuthService(provider, userRepository, tokenRepository, solvedRepository, userservice.AuthServiceConfig{
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		JWTIssuer: cfg.Auth.JWTIssuer,
		TokenTTL:  cfg.Auth.TokenTTL,
	})

	var archiver submissionservice.SourceArchiver
	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewMinIOStorage(cfg.Storage.MinIOConfig)
		if err != nil {
			logger.Error(ctx, "init object storage failed", zap.Error(err))
			os.Exit(1)
		}
		archiver, err = submissionservice.NewSourceArchiver(objectStorage, cfg.Storage.Bucket)
		if err != nil {
			logger.Error(ctx, "init source archiver failed", zap.Error(err))
			os.Exit(1)
		}
	}

	var publisher submissionservice.VerdictPublisher
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(mq.KafkaConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			logger.Error(ctx, "init kafka producer failed", zap.Error(err))
			os.Exit(1)
		}
		defer func() { _ = producer.Close() }()
		publisher = submissionservice.NewVerdictPublisher(producer, cfg.Kafka.Topic)
	}

	solved := &solvedAdapter{repo: solvedRepository}
	evalService := submissionservice.NewEvalService(submissionservice.EvalServiceOptions{
		DBProvider:     provider,
		Submissions:    submissionRepository,
		Problems:       problemRepository,
		Solved:         solved,
		Judge:          judgeClient,
		Archiver:       archiver,
		Publisher:      publisher,
		MaxSourceBytes: cfg.Submission.MaxSourceBytes,
	})
	problemService := problemservice.NewProblemService(problemRepository, evalService, solved)

	var hintService *hintservice.HintService
	if cfg.Hint.Enabled {
		hintClient, err := hint.NewClient(hint.ClientOptions{
			BaseURL: cfg.Hint.BaseURL,
			APIKey:  cfg.Hint.APIKey,
			Model:   cfg.Hint.Model,
		})
		if err != nil {
			logger.Error(ctx, "init hint client failed", zap.Error(err))
			os.Exit(1)
		}
		hintService = hintservice.NewHintService(hintClient, problemRepository)
	}

	sweeper := submissionservice.NewSweeper(submissionservice.SweeperOptions{
		Submissions: submissionRepository,
		Locker:      redisCache,
		Window:      cfg.Sweeper.Window,
		Interval:    cfg.Sweeper.Interval,
	})

	router := buildRouter(cfg, authService, evalService, problemService, hintService)
	httpServer := &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		logger.Error(ctx, "init http listener failed", zap.Error(err))
		os.Exit(1)
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server started", zap.String("addr", cfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopSweeper()
	timeoutCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
}

func buildRouter(
	cfg *AppConfig,
	authService *userservice.AuthService,
	evalService *submissionservice.EvalService,
	problemService *problemservice.ProblemService,
	hintService *hintservice.HintService,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceContextMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORS))

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	authRequired := middleware.AuthMiddleware(authService)
	authOptional := middleware.OptionalAuthMiddleware(authService)
	adminOnly := middleware.RequireAdmin()

	authController := usercontroller.NewAuthController(authService)
	userGroup := router.Group("/user")
	{
		userGroup.POST("/register", authController.Register)
		userGroup.POST("/login", authController.Login)
		userGroup.POST("/admin/login", authController.LoginAdmin)
		userGroup.POST("/admin/register", authRequired, adminOnly, authController.RegisterAdmin)
		userGroup.POST("/logout", authRequired, authController.Logout)
		userGroup.GET("/check", authRequired, authController.Check)
		userGroup.DELETE("/profile", authRequired, authController.DeleteProfile)
	}

	problemController := problemcontroller.NewProblemController(problemService)
	submissionController := submissioncontroller.NewSubmissionController(evalService)
	problemGroup := router.Group("/problem")
	{
		problemGroup.GET("", problemController.List)
		problemGroup.GET("/solved", authRequired, problemController.ListSolved)
		problemGroup.GET("/:id", authOptional, problemController.Get)
		problemGroup.POST("", authRequired, adminOnly, problemController.Create)
		problemGroup.PUT("/:id", authRequired, adminOnly, problemController.Update)
		problemGroup.DELETE("/:id", authRequired, adminOnly, problemController.Delete)

		problemGroup.POST("/:id/submit", authRequired, submissionController.Submit)
		problemGroup.POST("/:id/run", authRequired, submissionController.Run)
		problemGroup.GET("/:id/submissions", authRequired, submissionController.List)
	}

	if hintService != nil {
		hintController := hintcontroller.NewHintController(hintService)
		router.POST("/ai/hint", authRequired, hintController.Hint)
	}

	return router
}

// solvedAdapter bridges the user module's solved-set repository to the
// narrow interfaces the problem and submission services consume.
type solvedAdapter struct {
	repo userrepo.SolvedRepository
}

func (a *solvedAdapter) MarkSolved(ctx context.Context, tx db.Transaction, userID, problemID int64) (bool, error) {
	return a.repo.Add(ctx, tx, userID, problemID)
}

func (a *solvedAdapter) ListSolved(ctx context.Context, userID int64) ([]int64, error) {
	return a.repo.List(ctx, nil, userID)
}
