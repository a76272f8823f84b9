package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "huntzen-care",
	Short: "HuntZen Care backend",
	Long: `huntzen-care runs the HuntZen Care API and its supporting jobs.

Configuration is read from the environment (DB_*, REDIS_*, KAFKA_*,
ELASTICSEARCH_URL, SENTRY_DSN, JWT_*, LOG_*). Redis, Kafka, Elasticsearch
and Sentry are optional: leave their variables empty to run without them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		newServeCmd(),
		newConsumeCmd(),
		newMigrateCmd(),
		newCreateAdminCmd(),
		newReindexCmd(),
	)
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
