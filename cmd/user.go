/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/storefront-hq/backoffice/config"
	"github.com/storefront-hq/backoffice/internal/db"
	"github.com/storefront-hq/backoffice/internal/services"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/types"
)

var (
	userEmail    string
	userPassword string
	userRole     string
)

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	Long: `Creates an account directly in the database. Usage:

	backoffice user add --email admin@example.com --password secret123 --role admin
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		users := services.NewUserService(store.NewUserRepository(dbConn), cfg.BcryptCost)
		user, err := users.AddUser(cmd.Context(), services.NewUserInput{
			Email:    userEmail,
			Password: userPassword,
			Role:     types.Role(userRole),
		})
		if err != nil {
			return fmt.Errorf("add user: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)

	userAddCmd.Flags().StringVar(&userEmail, "email", "", "login email")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "password (8 to 72 characters)")
	userAddCmd.Flags().StringVar(&userRole, "role", string(types.RoleCustomer), "customer or admin")
	_ = userAddCmd.MarkFlagRequired("email")
	_ = userAddCmd.MarkFlagRequired("password")
}
