package main

import (
	"fmt"

	"github.com/bitfantasy/qcs/internal/database"
	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
	"github.com/bitfantasy/qcs/internal/qcs/service"
	"github.com/spf13/cobra"
)

var createUserInput service.CreateUserInput

var createUserCmd = &cobra.Command{
	Use:               "create-user",
	Short:             "Create a user account",
	Long:              `Create a user account directly in the database, typically the first admin.`,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		svc := service.NewUserService(repository.NewUserRepository(db), access.DefaultGate())
		user, err := svc.CreateUnchecked(cmd.Context(), &createUserInput)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s (%s)\n", user.Role, user.Username, user.ID)
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&createUserInput.Username, "username", "", "login name")
	createUserCmd.Flags().StringVar(&createUserInput.Password, "password", "", "password (at least 6 characters)")
	createUserCmd.Flags().StringVar(&createUserInput.Role, "role", "user", "admin or user")
	createUserCmd.Flags().StringVar(&createUserInput.FullName, "full-name", "", "display name")
	createUserCmd.Flags().StringVar(&createUserInput.Email, "email", "", "email address")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createUserCmd)
}
