package main

import (
	"Circlet/internal/auth"
	"Circlet/internal/configuration"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// buildTokenCmd signs a bearer token with the configured secret so the
// websocket and REST endpoints can be tried locally.
func buildTokenCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed token for a user id",
		Example: `  circlet token --user 64f1c0ffee
  CIRCLET_AUTH_SECRET=dev circlet token -u alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}

			config, err := configuration.LoadConfig(configPath)
			if err != nil {
				return err
			}

			jwtService, err := auth.NewJWTService(auth.JWTConfig{
				Secret:   config.Auth.Secret,
				Issuer:   config.Auth.Issuer,
				TokenTTL: config.Auth.TokenTTL,
			})
			if err != nil {
				return err
			}

			token, err := jwtService.Issue(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id to put in the token")
	return cmd
}
