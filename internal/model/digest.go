package model

import "time"

// DateLayout is the calendar date format used for digest dates.
const DateLayout = "2006-01-02"

// DigestItem is one entry of a digest section.
type DigestItem struct {
	ItemID     string  `json:"item_id,omitempty" yaml:"item_id,omitempty"`
	Title      string  `json:"title" yaml:"title"`
	Summary    string  `json:"summary" yaml:"summary"`
	SourceName string  `json:"source_name" yaml:"source_name"`
	URL        string  `json:"url,omitempty" yaml:"url,omitempty"`
	Importance float64 `json:"importance" yaml:"importance"`
}

// DigestSections are the named, ordered buckets of a digest.
type DigestSections struct {
	MustKnow        []DigestItem `json:"must_know"`
	Themes          []string     `json:"themes"`
	VideoHighlights []DigestItem `json:"video_highlights"`
	PodcastRoundup  []DigestItem `json:"podcast_roundup"`
	QuickReads      []DigestItem `json:"quick_reads"`
	// Connections is reserved and always empty.
	Connections []string `json:"connections"`
}

// DigestStats are derived on every run and never mutated independently.
type DigestStats struct {
	SourcesChecked     int `json:"sources_checked" yaml:"sources_checked"`
	ItemsProcessed     int `json:"items_processed" yaml:"items_processed"`
	ItemsIncluded      int `json:"items_included" yaml:"items_included"`
	EstimatedReadTime  int `json:"estimated_read_time" yaml:"estimated_read_time"`
	EstimatedTimeSaved int `json:"estimated_time_saved" yaml:"estimated_time_saved"`
}

// GenerationCost records LLM usage for one digest.
type GenerationCost struct {
	TotalTokens      int     `json:"total_tokens"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	Provider         string  `json:"provider"`
}

// Digest is the single daily document for one user. One per (UserID, Date).
type Digest struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Date           string         `json:"digest_date"`
	FullText       string         `json:"full_text"`
	Summary        string         `json:"summary,omitempty"`
	Sections       DigestSections `json:"sections"`
	Stats          DigestStats    `json:"stats"`
	GenerationCost GenerationCost `json:"generation_cost"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
