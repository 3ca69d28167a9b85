package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	defaultIssuer   = "bernerspace-ecosystem"
	defaultAudience = "relay-gateway"
)

func resolveSecret(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("RELAY_JWT_SECRET"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("signing secret required: use --secret flag or set RELAY_JWT_SECRET")
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint and inspect caller tokens for the relay gateway",
	}
	cmd.AddCommand(newTokenMintCmd())
	cmd.AddCommand(newTokenInspectCmd())
	return cmd
}

func newTokenMintCmd() *cobra.Command {
	var (
		sub       string
		scopes    []string
		expiresIn time.Duration
		secret    string
		issuer    string
		audience  string
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an HS256 caller token accepted by the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolveSecret(secret)
			if err != nil {
				return err
			}
			if sub == "" {
				return fmt.Errorf("--sub is required")
			}

			now := time.Now().UTC()
			claims := jwt.MapClaims{
				"sub": sub,
				"iss": issuer,
				"aud": audience,
				"iat": now.Unix(),
				"exp": now.Add(expiresIn).Unix(),
				"jti": uuid.NewString(),
			}
			if len(scopes) > 0 {
				claims["scopes"] = scopes
			}

			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			fmt.Println(signed)
			fmt.Fprintf(os.Stderr, "subject=%s expires=%s\n", sub, now.Add(expiresIn).Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&sub, "sub", "", "Caller identifier placed in the subject claim (required)")
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{"read", "write"}, "Permission scopes embedded in the token")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 24*time.Hour, "Token validity window")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (or RELAY_JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", defaultIssuer, "Issuer claim")
	cmd.Flags().StringVar(&audience, "audience", defaultAudience, "Audience claim")
	return cmd
}

func newTokenInspectCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a caller token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolveSecret(secret)
			if err != nil {
				return err
			}

			claims := jwt.MapClaims{}
			_, err = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})).
				ParseWithClaims(strings.TrimSpace(args[0]), claims, func(t *jwt.Token) (any, error) {
					return []byte(key), nil
				})
			if err != nil {
				return fmt.Errorf("token invalid: %w", err)
			}

			out, err := json.MarshalIndent(claims, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (or RELAY_JWT_SECRET)")
	return cmd
}
