package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"daily-digest/internal/model"
	"daily-digest/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	runUser string
	runAt   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one digest batch now and print per-user results",
	Long:  "Without --user, runs every user whose digest hour matches --at (default now). With --user, runs that user regardless of the hour.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := context.Background()

		now := time.Now()
		if runAt != "" {
			t, err := time.Parse(time.RFC3339, runAt)
			if err != nil {
				return fmt.Errorf("%w: --at: %v", model.ErrConfiguration, err)
			}
			now = t
		}

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		p, err := newPipeline(cfg, store)
		if err != nil {
			return err
		}
		p.Now = func() time.Time { return now }

		var results []pipeline.UserResult
		if runUser != "" {
			u, err := store.GetUser(ctx, runUser)
			if err != nil {
				return fmt.Errorf("user %s: %w", runUser, err)
			}
			results = p.RunUsers(ctx, []model.UserProfile{u}, now)
		} else {
			results, err = p.RunBatch(ctx)
			if err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"processed": len(results),
			"summary":   pipeline.Summary(results),
			"results":   results,
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runUser, "user", "", "run a single user by id")
	runCmd.Flags().StringVar(&runAt, "at", "", "evaluate the schedule at this RFC3339 time")
	rootCmd.AddCommand(runCmd)
}
