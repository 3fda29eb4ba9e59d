package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davicafu/promolab/internal/config"
	"github.com/davicafu/promolab/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.LoadConfig()

	root := &cobra.Command{
		Use:           "promolab",
		Short:         "Promotion and cashback service for posted transactions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.Init(cfg.LogLevel)
		},
		// Sin subcomando arranca el servicio.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the consumer, the outbox relayer and the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the SQL (and ClickHouse, if configured) schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), cfg)
		},
	}

	var seedFile string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load promotions from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), cfg, seedFile)
		},
	}
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "promotions.yaml", "YAML file with a top-level 'promotions' list")

	root.AddCommand(serveCmd, migrateCmd, seedCmd)
	return root
}
