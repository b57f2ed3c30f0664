package model

import "time"

// RawItem is fetcher output before enrichment. It is owned by the run that
// produced it until persisted or discarded.
type RawItem struct {
	SourceID      string     `json:"source_id"`
	UserID        string     `json:"user_id"`
	SourceType    SourceType `json:"source_type"`
	SourceName    string     `json:"source_name"`
	Title         string     `json:"title"`
	Author        string     `json:"author,omitempty"`
	ContentURL    string     `json:"content_url,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	RawContent    string     `json:"raw_content,omitempty"`
	ExtractedText string     `json:"extracted_text,omitempty"`
	Metadata      Metadata   `json:"metadata,omitempty"`
}

// Text returns the best available text for summarization.
func (r RawItem) Text() string {
	if r.ExtractedText != "" {
		return r.ExtractedText
	}
	if r.RawContent != "" {
		return r.RawContent
	}
	return r.Title
}

// EnrichedItem is a RawItem after summarization and scoring.
// Summary is empty when enrichment failed.
type EnrichedItem struct {
	RawItem
	ID              string   `json:"id"`
	Summary         string   `json:"ai_summary"`
	KeyPoints       []string `json:"key_points"`
	ImportanceScore float64  `json:"importance_score"`
}

// ContentItem is the persisted form of an EnrichedItem. At most one exists
// per (UserID, ContentURL) when ContentURL is set.
type ContentItem struct {
	EnrichedItem
	CreatedAt time.Time `json:"created_at"`
}
