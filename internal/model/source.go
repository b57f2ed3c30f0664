package model

import (
	"strings"
	"time"
)

// SourceType identifies how a source is fetched.
type SourceType string

const (
	SourceNewsletter SourceType = "newsletter"
	SourceYouTube    SourceType = "youtube"
	SourcePodcast    SourceType = "podcast"
	SourceRSS        SourceType = "rss"
	SourceReddit     SourceType = "reddit"
	SourceTwitter    SourceType = "twitter"
	SourceSubstack   SourceType = "substack"
)

// ParseSourceType normalizes s; unknown values are returned as-is so the
// fetcher registry can reject them.
func ParseSourceType(s string) SourceType {
	return SourceType(strings.ToLower(strings.TrimSpace(s)))
}

// Source is a feed or channel a user subscribes to.
//
// Config keys by type:
//   - rss, substack: feed_url (or rss_url)
//   - podcast: rss_url (or feed_url)
//   - youtube: channel_url
//   - reddit: subreddit
//   - newsletter: email_address (optional, informational)
//   - twitter: list_id (no fetcher yet)
type Source struct {
	ID            string            `json:"id" yaml:"id"`
	UserID        string            `json:"user_id" yaml:"user_id"`
	Type          SourceType        `json:"source_type" yaml:"source_type"`
	Name          string            `json:"name" yaml:"name"`
	Config        map[string]string `json:"config" yaml:"config"`
	Filters       SourceFilters     `json:"filters" yaml:"filters"`
	IsActive      bool              `json:"is_active" yaml:"is_active"`
	LastFetchedAt *time.Time        `json:"last_fetched_at,omitempty" yaml:"-"`
	CreatedAt     time.Time         `json:"created_at" yaml:"-"`
}

// ConfigValue returns the first non-empty config value among keys.
func (s Source) ConfigValue(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(s.Config[k]); v != "" {
			return v
		}
	}
	return ""
}

// SourceFilters narrows what a source contributes to a digest.
type SourceFilters struct {
	KeywordsInclude []string `json:"keywords_include,omitempty" yaml:"keywords_include"`
	KeywordsExclude []string `json:"keywords_exclude,omitempty" yaml:"keywords_exclude"`
	MinLength       int      `json:"min_length,omitempty" yaml:"min_length"`
	MaxAgeDays      int      `json:"max_age_days,omitempty" yaml:"max_age_days"`
	AuthorsInclude  []string `json:"authors_include,omitempty" yaml:"authors_include"`
	AuthorsExclude  []string `json:"authors_exclude,omitempty" yaml:"authors_exclude"`
}

// IsZero reports whether no filter is configured.
func (f SourceFilters) IsZero() bool {
	return len(f.KeywordsInclude) == 0 && len(f.KeywordsExclude) == 0 &&
		f.MinLength <= 0 && f.MaxAgeDays <= 0 &&
		len(f.AuthorsInclude) == 0 && len(f.AuthorsExclude) == 0
}
