package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deliverDate string

var deliverCmd = &cobra.Command{
	Use:   "deliver <user-id>",
	Short: "Send a stored digest through the delivery channels again",
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

		date := deliverDate
		if date == "" {
			u, err := store.GetUser(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			date = u.LocalDate(p.Now())
		}
		ok, err := p.Redeliver(ctx, args[0], date)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("digest %s/%s: every delivery channel failed", args[0], date)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "delivered %s/%s\n", args[0], date)
		return nil
	},
}

func init() {
	deliverCmd.Flags().StringVar(&deliverDate, "date", "", "digest date YYYY-MM-DD (default: the user's local today)")
	rootCmd.AddCommand(deliverCmd)
}
