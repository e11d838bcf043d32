package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"job-ingest/internal/pkg/jwt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	tokenUser  string
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token signed with JWT_SECRET, for local testing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
		if secret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		userID := uuid.New()
		if tokenUser != "" {
			id, err := uuid.Parse(tokenUser)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			userID = id
		}
		tok, err := jwt.NewHMACService(secret, tokenTTL).GenerateAccessToken(userID, tokenEmail)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (random when empty)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}
