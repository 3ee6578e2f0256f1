package main

import (
	"fmt"
	"os"

	"github.com/henrib/lumen/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lumen",
		Short: "Lumen CLI - Grounded assistant for a learning portfolio",
		Long: `Lumen CLI provides commands to query and update the learning portfolio.

Environment variables:
  LUMEN_API_KEY   API key for write operations
  LUMEN_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.LogCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
