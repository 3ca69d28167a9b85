package main

import (
	"fmt"
	"os"

	"github.com/bernerspace/relay/internal/version"
	"github.com/spf13/cobra"
)

// resolveServerURL returns the server URL from the flag or RELAY_SERVER_URL
// env var. Prints a warning to stderr when falling back to the env var.
func resolveServerURL(cmd *cobra.Command, flagValue string) (string, error) {
	normalize := func(v string) string {
		for len(v) > 0 && v[len(v)-1] == '/' {
			v = v[:len(v)-1]
		}
		return v
	}
	if cmd.Flags().Changed("server") {
		return normalize(flagValue), nil
	}
	if v := os.Getenv("RELAY_SERVER_URL"); v != "" {
		fmt.Fprintf(os.Stderr, "relay: WARNING: using server URL from RELAY_SERVER_URL environment variable\n")
		return normalize(v), nil
	}
	return "", fmt.Errorf("server URL required: use --server flag or set RELAY_SERVER_URL")
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "relay",
		Short:   "Relay - one authenticated gateway for agent tool integrations",
		Version: version.Version,
	}
	rootCmd.SetVersionTemplate(version.String("relay") + "\n")

	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
