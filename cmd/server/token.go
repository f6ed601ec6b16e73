package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docchat.dev/pdf-rag/internal/auth"
	"docchat.dev/pdf-rag/internal/config"
)

var (
	tokenEmail string
	tokenName  string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Mint a bearer token for local development",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "name claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	authenticator, err := auth.NewAuthenticator(cfg.JWTSecret, tokenTTL)
	if err != nil {
		return err
	}
	token, err := authenticator.GenerateJWT(auth.Principal{Subject: args[0], Email: tokenEmail, Name: tokenName})
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	cmd.Println(token)
	return nil
}
