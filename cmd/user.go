/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zqadmin/ojadmin/internal/cache"
	"github.com/zqadmin/ojadmin/internal/db"
	"github.com/zqadmin/ojadmin/internal/handlers"
	"github.com/zqadmin/ojadmin/internal/services"
	"github.com/zqadmin/ojadmin/internal/store"
	"github.com/zqadmin/ojadmin/pkg/logger"
)

// userCmd groups user administration commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users directly in the database",
}

var userRoleCmd = &cobra.Command{
	Use:   "role USERNAME ROLE",
	Short: "Set a user's role (admin, staff or user)",
	Long: `Sets a user's role. Admins and staff see every problem, including
private problems set by other users. Usage:

	ojadmin user role alice staff
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn))
		if err := users.SetRole(ctx, args[0], args[1]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("user %q not found", args[0])
			}
			return err
		}
		logger.Get().Info(ctx, "role updated",
			logger.String("username", args[0]),
			logger.String("role", args[1]),
		)
		return nil
	},
}

func newUserActiveCmd(use string, active bool) *cobra.Command {
	verb := "Disables"
	if active {
		verb = "Enables"
	}
	return &cobra.Command{
		Use:   use + " USERNAME",
		Short: verb + " a user account",
		Long: verb + ` a user account. Disabled users cannot log in and their
existing tokens are refused with 403. Usage:

	ojadmin user ` + use + ` alice
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, err := db.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			users := services.NewUserService(store.NewUserRepository(conn))
			if err := users.SetActive(ctx, args[0], active); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("user %q not found", args[0])
				}
				return err
			}
			logger.Get().Info(ctx, "account updated",
				logger.String("username", args[0]),
				logger.Any("active", active),
			)
			return nil
		},
	}
}

var userRevokeCmd = &cobra.Command{
	Use:   "revoke USERNAME",
	Short: "Revoke every token issued to a user so far",
	Long: `Blacklists all access tokens issued to the user up to now. Requires
REDIS_ADDR. Usage:

	ojadmin user revoke alice
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := cache.NewRedisClient(cfg.Redis)
		if client == nil {
			return errors.New("REDIS_ADDR is not set")
		}
		defer client.Close()

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		user, err := services.NewUserService(store.NewUserRepository(conn)).GetByUsername(ctx, args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("user %q not found", args[0])
			}
			return err
		}
		if err := cache.NewTokenBlacklist(client).RevokeUser(ctx, user.ID, handlers.TokenTTL); err != nil {
			return err
		}
		logger.Get().Info(ctx, "tokens revoked", logger.String("username", user.Username))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userRoleCmd)
	userCmd.AddCommand(newUserActiveCmd("enable", true))
	userCmd.AddCommand(newUserActiveCmd("disable", false))
	userCmd.AddCommand(userRevokeCmd)
}
