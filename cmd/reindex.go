package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"huntzen-care/utils"
)

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the practitioner search index from the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.ElasticsearchURL == "" {
				return errors.New("ELASTICSEARCH_URL is required")
			}

			db, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			search, err := connect(log, "elasticsearch", func() (utils.ElasticsearchClient, error) {
				return utils.NewElasticsearchClient(cfg.ElasticsearchURL)
			})
			if err != nil {
				return err
			}
			in := &infra{cfg: cfg, log: log, db: db, search: search, flush: func() {}}
			defer in.Close()

			ctx, cancel := withTimeout(10 * time.Minute)
			defer cancel()
			n, err := in.buildServices().Indexer.Reindex(ctx)
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d practitioners into %q\n", n, cfg.PractitionerIndex)
			return nil
		},
	}
}
