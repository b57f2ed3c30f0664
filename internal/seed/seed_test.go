package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"daily-digest/internal/model"
	"daily-digest/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const fixture = `
users:
  - id: u1
    email: alice@example.com
    alias: alice
    timezone: America/New_York
    digest_time: "07:00"
    digest_format: both
    preferences:
      preferred_llm: anthropic
    api_keys:
      - provider: Anthropic
        key: sk-ant
    sources:
      - id: go-blog
        type: RSS
        name: Go Blog
        config:
          feed_url: https://go.dev/blog/feed.atom
        filters:
          keywords_exclude: [sponsored]
      - type: reddit
        name: r/golang
        config:
          subreddit: golang
        active: false
`

func TestLoadAndApply(t *testing.T) {
	f, err := Load(strings.NewReader(fixture))
	if err != nil {
		t.Fatal(err)
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	st := storage.NewRedisStore(rdb)
	ctx := context.Background()

	c, err := Apply(ctx, st, f, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if c != (Counts{Users: 1, Sources: 2, Keys: 1}) {
		t.Fatalf("counts = %+v", c)
	}
	u, err := st.GetUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if u.Provider() != "anthropic" || u.DigestFormat != model.FormatBoth {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := st.GetAPIKey(ctx, "u1", "anthropic"); err != nil {
		t.Fatalf("key not stored: %v", err)
	}
	src, err := st.GetSource(ctx, "go-blog")
	if err != nil {
		t.Fatal(err)
	}
	if src.Type != model.SourceRSS || !src.IsActive || src.ConfigValue("feed_url") == "" || len(src.Filters.KeywordsExclude) != 1 {
		t.Fatalf("unexpected source: %+v", src)
	}
	active, _ := st.ActiveSources(ctx, "u1")
	if len(active) != 1 {
		t.Fatalf("inactive reddit source should stay inactive, active=%d", len(active))
	}
	id, _ := st.UserIDByAlias(ctx, "alice")
	if id != "u1" {
		t.Fatalf("alias not indexed: %q", id)
	}
}

func TestLoadRejectsBadFixtures(t *testing.T) {
	cases := map[string]string{
		"missing id":     "users:\n  - email: a@example.com\n    digest_time: \"07:00\"\n",
		"bad time":       "users:\n  - id: u1\n    digest_time: soon\n",
		"source no type": "users:\n  - id: u1\n    digest_time: \"07:00\"\n    sources:\n      - name: x\n",
	}
	for name, in := range cases {
		if _, err := Load(strings.NewReader(in)); !errors.Is(err, model.ErrConfiguration) {
			t.Errorf("%s: expected ErrConfiguration, got %v", name, err)
		}
	}
	if _, err := Load(strings.NewReader("users:\n  - id: u1\n    bogus: 1\n")); !errors.Is(err, model.ErrParse) {
		t.Errorf("unknown field: expected ErrParse, got %v", err)
	}
}
