package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var generateDate string

var generateCmd = &cobra.Command{
	Use:   "generate <user-id>",
	Short: "Build and store a digest from content already stored for a day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := context.Background()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		p, err := newPipeline(cfg, store)
		if err != nil {
			return err
		}

		date := generateDate
		if date == "" {
			u, err := store.GetUser(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			date = u.LocalDate(p.Now())
		}
		d, err := p.GenerateForDate(ctx, args[0], date)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), d.FullText)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateDate, "date", "", "digest date YYYY-MM-DD (default: the user's local today)")
	rootCmd.AddCommand(generateCmd)
}
