package cmd

import (
	"testing"

	"daily-digest/internal/config"
)

func TestFetcherOptionsUseExtractWorkers(t *testing.T) {
	var cfg config.Config
	cfg.Pipeline.EnrichWorkers = 2
	cfg.Pipeline.ExtractWorkers = 7
	cfg.Pipeline.ItemLimit = 5
	opts := fetcherOptions(cfg)
	if opts.ExtractWorkers != 7 {
		t.Fatalf("extract workers = %d, want 7", opts.ExtractWorkers)
	}
	if opts.Limit != 5 || opts.Extractor == nil {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
