package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/handler"
	"github.com/bitfantasy/nimo-mes/internal/metrics"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	switch strings.ToLower(cfg.Level) {
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

func initDatabase(cfg config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite 不支持并发写
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return db, nil
}

// initRedis 未配置时返回 nil
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// newRouter 组装中间件、探针和业务路由
func newRouter(cfg *config.Config, db *gorm.DB, rdb *redis.Client, handlers *handler.Handlers, zapLogger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 健康检查
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "nimo-mes"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		checks := gin.H{"database": "ok"}
		status := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			checks["database"] = "down"
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = "down"
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "service": "nimo-mes", "checks": checks})
	})

	// 版本信息
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":    "nimo-mes",
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1/mes")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	handler.RegisterRoutes(v1, handlers)

	return router
}
