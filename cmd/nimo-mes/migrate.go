package main

import (
	"fmt"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the MES database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		zapLogger, err := initLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		defer zapLogger.Sync()

		db, err := initDatabase(cfg.Database, false)
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, _ := db.DB(); sqlDB != nil {
				sqlDB.Close()
			}
		}()

		zapLogger.Info("Running database migrations", zap.String("driver", cfg.Database.Driver))
		if err := entity.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		zapLogger.Info("Database migrations completed")
		return nil
	},
}
