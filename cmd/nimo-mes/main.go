package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "nimo-mes",
	Short: "Shop-floor activity tracking and production reporting service",
	Long: `nimo-mes tracks operator start/stop/resume/finish activity on production
orders and reports produced quantities to the ERP, issuing components by
backflush and receiving finished goods under a generated batch number.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: ./configs/config.yaml or ./config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
