package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/qcs/internal/database"
	"github.com/spf13/cobra"
)

var checkDBCmd = &cobra.Command{
	Use:               "check-db",
	Short:             "Verify the database connection",
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("ping %s: %w", cfg.Database.Driver, err)
		}

		var issues int64
		if err := db.WithContext(ctx).Table("issues").Count(&issues).Error; err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s (issues table not readable: %v)\n", cfg.Database.Driver, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s, %d issues\n", cfg.Database.Driver, issues)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:               "migrate",
	Short:             "Create or update the database schema",
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migration completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkDBCmd)
	rootCmd.AddCommand(migrateCmd)
}
