package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/erp"
	"github.com/bitfantasy/nimo-mes/internal/mes/handler"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		migrate, _ := cmd.Flags().GetBool("migrate")
		return runServer(configPath, migrate)
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "Run database migrations before serving")
}

func runServer(configPath string, migrate bool) error {
	// 加载配置
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-mes service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		return err
	}
	if migrate {
		if err := entity.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to auto-migrate MES tables: %w", err)
		}
		zapLogger.Info("MES database migration completed")
	}

	// Redis 可选：缓存停机原因、分配批次流水号
	rdb, err := initRedis(context.Background(), cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		zapLogger.Info("Redis enabled", zap.String("addr", cfg.Redis.Addr()))
	} else {
		zapLogger.Info("Redis disabled, batch sequence uses database counter")
	}

	loc, _ := cfg.Production.Location()
	erpClient := erp.NewClient(erp.Config{
		BaseURL:   cfg.ERP.BaseURL,
		CompanyDB: cfg.ERP.CompanyDB,
		Username:  cfg.ERP.Username,
		Password:  cfg.ERP.Password,
		Timeout:   cfg.ERP.Timeout,
	}, zapLogger)

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, rdb, erpClient, service.Options{
		BatchPrefix:     cfg.Production.BatchPrefix,
		RejectWarehouse: cfg.Production.RejectWarehouse,
		Location:        loc,
	}, zapLogger)
	handlers := handler.NewHandlers(services, zapLogger)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, db, rdb, handlers, zapLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("MES Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	zapLogger.Info("Shutting down MES server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("MES Server exited")
	return nil
}
