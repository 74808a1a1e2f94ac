package main

import (
	"fmt"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/auth"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/config"
	"github.com/spf13/cobra"
)

var tokenTTL string

// tokenCmd issues HS256 tokens for local development against a shared secret.
var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a development bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ttl, err := parseDuration(tokenTTL)
		if err != nil {
			return err
		}
		v, err := auth.NewVerifier(auth.VerifierConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
		if err != nil {
			return err
		}
		tok, err := v.Sign(args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenTTL, "ttl", "24h", "token lifetime")
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
