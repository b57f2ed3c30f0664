package cmd

import (
	"context"
	"fmt"

	"daily-digest/internal/model"
	"daily-digest/internal/storage"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg.Storage.Driver != "postgres" {
			return fmt.Errorf("%w: migrate needs storage.driver=postgres, got %q", model.ErrConfiguration, cfg.Storage.Driver)
		}
		ctx := context.Background()
		st, err := storage.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
