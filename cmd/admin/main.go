package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"resumeCraft/internal/config"
	"resumeCraft/internal/database"
)

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "resumeCraft operator tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openDB 读取配置并连接数据库；migrate 为 true 时先执行迁移。
func openDB(migrate bool) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.InitDatabase(cfg.Database, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("init database: %w", err)
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			return nil, nil, err
		}
	}
	return cfg, db, nil
}
