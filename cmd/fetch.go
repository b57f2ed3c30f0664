package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <source-id>",
	Short: "Fetch one source now and store its new items",
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
		res, err := p.IngestSource(ctx, args[0])
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
