package config

import (
	"testing"
	"time"
)

func TestFillDefaults(t *testing.T) {
	var c Config
	c.FillDefaults()
	if c.Storage.Driver != "redis" {
		t.Fatalf("driver = %s", c.Storage.Driver)
	}
	if c.Pipeline.ItemLimit != 10 || c.Pipeline.SummaryWords != 200 {
		t.Fatalf("pipeline defaults: %+v", c.Pipeline)
	}
	if c.Pipeline.EnrichWorkers != 4 || c.Pipeline.ExtractWorkers != 4 {
		t.Fatalf("worker defaults: %+v", c.Pipeline)
	}
	if c.Scheduler.Spec != "0 * * * *" {
		t.Fatalf("scheduler spec = %q", c.Scheduler.Spec)
	}
	if c.Inbound.Domain != "digest.app" {
		t.Fatalf("inbound domain = %q", c.Inbound.Domain)
	}
	if len(c.Delivery.Channels) != 1 || c.Delivery.Channels[0] != "file" {
		t.Fatalf("channels = %v", c.Delivery.Channels)
	}
}

func TestFillDefaultsKeepsValues(t *testing.T) {
	c := Config{Storage: StorageConfig{Driver: "Postgres"}, Pipeline: PipelineConfig{ItemLimit: 3, EnrichWorkers: 2, ExtractWorkers: 9}}
	c.FillDefaults()
	if c.Storage.Driver != "postgres" {
		t.Fatalf("driver = %s", c.Storage.Driver)
	}
	if c.Pipeline.ItemLimit != 3 {
		t.Fatalf("item limit = %d", c.Pipeline.ItemLimit)
	}
	if c.Pipeline.EnrichWorkers != 2 || c.Pipeline.ExtractWorkers != 9 {
		t.Fatalf("workers = %d/%d", c.Pipeline.EnrichWorkers, c.Pipeline.ExtractWorkers)
	}
}

func TestDuration(t *testing.T) {
	if d := Duration("", time.Second); d != time.Second {
		t.Fatalf("empty = %v", d)
	}
	if d := Duration("bogus", time.Second); d != time.Second {
		t.Fatalf("invalid = %v", d)
	}
	if d := Duration("250ms", time.Second); d != 250*time.Millisecond {
		t.Fatalf("parsed = %v", d)
	}
}

func TestLLM(t *testing.T) {
	var c Config
	c.FillDefaults()
	if got := c.LLM("groq").BaseURL; got != "https://api.groq.com/openai/v1" {
		t.Fatalf("groq base = %s", got)
	}
	if got := c.LLM("unknown").Model; got != c.OpenAI.Model {
		t.Fatalf("fallback model = %s", got)
	}
}
