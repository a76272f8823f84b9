package cmd

import (
	"github.com/spf13/cobra"

	"huntzen-care/models"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer models.CloseDatabase(db)

			log.Info("migrations completed", "tables", len(models.AllModels()))
			return nil
		},
	}
}
