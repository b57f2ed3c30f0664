package cmd

import (
	"context"
	"fmt"
	"time"

	"daily-digest/internal/config"
	"daily-digest/internal/delivery"
	"daily-digest/internal/extract"
	"daily-digest/internal/fetcher"
	"daily-digest/internal/model"
	"daily-digest/internal/pipeline"
	"daily-digest/internal/redisclient"
	"daily-digest/internal/storage"
)

// openStore connects the configured backend. The caller closes it.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "redis":
		rdb := redisclient.New(cfg.Redis)
		if _, err := redisclient.Ping(ctx, rdb); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		return storage.NewRedisStore(rdb), nil
	case "postgres":
		pg, err := storage.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", model.ErrConfiguration, cfg.Storage.Driver)
	}
}

func newExtractor(cfg config.Config) extract.Extractor {
	timeout := config.Duration(cfg.HTTP.Timeout, 5*time.Second)
	var ex extract.Extractor = extract.NewReadable(timeout)
	if cfg.Cloudflare.Enabled() {
		ex = extract.WithFallback(ex, extract.NewCloudflare(cfg.Cloudflare.AccountID, cfg.Cloudflare.APIToken, 30*time.Second))
	}
	return ex
}

func fetcherOptions(cfg config.Config) fetcher.Options {
	return fetcher.Options{
		Timeout:        config.Duration(cfg.HTTP.Timeout, 5*time.Second),
		UserAgent:      cfg.HTTP.UserAgent,
		Limit:          cfg.Pipeline.ItemLimit,
		Extractor:      newExtractor(cfg),
		ExtractWorkers: cfg.Pipeline.ExtractWorkers,
	}
}

func newRegistry(cfg config.Config, st storage.Store) *fetcher.Registry {
	return fetcher.NewDefaultRegistry(fetcherOptions(cfg), st)
}

func newPipeline(cfg config.Config, st storage.Store) (*pipeline.Pipeline, error) {
	d, err := delivery.New(cfg.Delivery)
	if err != nil {
		return nil, err
	}
	return pipeline.New(st, newRegistry(cfg, st), pipeline.ProviderFromConfig(cfg), d, pipeline.OptionsFromConfig(cfg.Pipeline)), nil
}
