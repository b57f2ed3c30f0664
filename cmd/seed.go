package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"daily-digest/internal/seed"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load users, sources and API keys from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		fixture, err := seed.Load(f)
		if err != nil {
			return err
		}

		cfg := GetConfig()
		ctx := context.Background()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		c, err := seed.Apply(ctx, store, fixture, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d sources, %d keys\n", c.Users, c.Sources, c.Keys)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
