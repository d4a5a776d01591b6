package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/handler"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/repository"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/scheme"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/service"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/config"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/finance"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/middleware"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/shared/notify"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting commission settlement service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// 建表
	if err := db.AutoMigrate(
		&entity.CommissionRule{},
		&entity.CommissionTier{},
		&entity.PenaltyRule{},
		&entity.CommissionRecord{},
		&entity.PenaltyRecord{},
		&entity.Settlement{},
		&finance.Voucher{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// AutoMigrate 不支持部分唯一索引，手动建
	migrationSQL := []string{
		// 同一业务员同一月份最多一张非 rejected 结算单，
		// Generate 的先查后插存在并发窗口，由该索引兜底
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_settlement_person_month
			ON commission_settlements (salesperson_id, settlement_month)
			WHERE status <> 'rejected'`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_month_status
			ON commission_settlements (settlement_month, status)`,
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			zapLogger.Warn("Migration warning", zap.String("sql", sql), zap.Error(err))
		}
	}
	zapLogger.Info("Database migration completed")

	// Redis
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, reward cache falls back to database", zap.Error(err))
	}

	// 提成方案计算器
	startDate, err := time.Parse("2006-01-02", cfg.Commission.SchemeStartDate)
	if err != nil {
		zapLogger.Fatal("Invalid commission.scheme_start_date", zap.Error(err))
	}
	calc := scheme.NewCalculator(scheme.Config{
		StartDate:         startDate,
		TrialPeriodMonths: cfg.Commission.TrialPeriodMonths,
		SchemeMinMonths:   cfg.Commission.SchemeMinMonths,
		SchemeMaxMonths:   cfg.Commission.SchemeMaxMonths,
	})

	// 装配
	repos := repository.NewRepositories(db)
	financeSvc := finance.NewService(db)
	notifier := notify.NewNotifier(cfg.Finance.NotifyWebhookURL, cfg.Finance.NotifyTimeout, zapLogger)
	services := service.NewServices(db, repos, calc, rdb, financeSvc, notifier, zapLogger)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	api := r.Group("/api/v1", middleware.JWTAuth(cfg.JWT.Secret))
	commission := api.Group("/commission")
	{
		// 方案阶段
		commission.GET("/scheme/status", h.Scheme.Status)

		// 提成规则
		rules := commission.Group("/rules")
		{
			rules.GET("", h.Rule.List)
			rules.POST("", h.Rule.Create)
			rules.GET("/:id", h.Rule.Get)
			rules.PUT("/:id", h.Rule.Update)
			rules.DELETE("/:id", h.Rule.Delete)
			rules.POST("/:id/activate", h.Rule.Activate)
			rules.POST("/:id/deactivate", h.Rule.Deactivate)
			rules.DELETE("/:id/tiers/:tierId", h.Rule.RemoveTier)
		}

		// 处罚规则
		penaltyRules := commission.Group("/penalty-rules")
		{
			penaltyRules.GET("", h.PenaltyRule.List)
			penaltyRules.POST("", h.PenaltyRule.Create)
			penaltyRules.GET("/:id", h.PenaltyRule.Get)
			penaltyRules.PUT("/:id", h.PenaltyRule.Update)
			penaltyRules.DELETE("/:id", h.PenaltyRule.Delete)
			penaltyRules.POST("/:id/activate", h.PenaltyRule.Activate)
			penaltyRules.POST("/:id/deactivate", h.PenaltyRule.Deactivate)
		}

		// 提成/处罚记录
		records := commission.Group("/records")
		{
			records.GET("", h.Record.ListCommissions)
			records.POST("/evaluate", h.Record.Evaluate)
			records.POST("/penalty", h.Record.EvaluatePenalty)
			records.GET("/penalties", h.Record.ListPenalties)
			records.GET("/monthly-reward", h.Record.MonthlyReward)
		}

		// 结算单
		settlements := commission.Group("/settlements")
		{
			settlements.GET("", h.Settlement.List)
			settlements.GET("/summary", h.Settlement.Summary)
			settlements.GET("/export", h.Settlement.Export)
			settlements.POST("/generate", h.Settlement.Generate)
			settlements.POST("/auto-generate", h.Settlement.AutoGenerate)
			settlements.POST("/batch-submit", h.Settlement.BatchSubmit)
			settlements.GET("/:id", h.Settlement.Get)
			settlements.POST("/:id/submit", h.Settlement.Submit)
			review := settlements.Group("")
			review.Use(middleware.RequireRole("finance_manager"), middleware.RequirePermission("commission:review"))
			review.POST("/:id/approve", h.Settlement.Approve)
			review.POST("/:id/reject", h.Settlement.Reject)
			review.POST("/:id/paid", h.Settlement.MarkPaid)
		}
	}
}
