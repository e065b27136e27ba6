// Command qcsctl QCS运维命令行
package main

import (
	"fmt"
	"os"

	"github.com/bitfantasy/qcs/internal/config"
	"github.com/bitfantasy/qcs/internal/database"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "qcsctl",
	Short:         "QCS maintenance commands",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig 需要数据库的命令在PersistentPreRunE中加载配置
func loadConfig(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	c, err := config.Load()
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

func openDB() (*gorm.DB, error) {
	return database.Open(cfg.Database)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
