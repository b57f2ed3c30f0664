package digest

import (
	"strings"

	"daily-digest/internal/model"
)

const (
	wordsPerMinute      = 200
	minutesSavedPerItem = 5
)

// ComputeStats derives digest statistics from the processed items, the
// assembled sections and the rendered text.
func ComputeStats(items []model.EnrichedItem, s model.DigestSections, fullText string) model.DigestStats {
	sources := map[string]struct{}{}
	for _, it := range items {
		sources[it.SourceID] = struct{}{}
	}
	return model.DigestStats{
		SourcesChecked:     len(sources),
		ItemsProcessed:     len(items),
		ItemsIncluded:      IncludedCount(s),
		EstimatedReadTime:  ReadTime(fullText),
		EstimatedTimeSaved: len(items) * minutesSavedPerItem,
	}
}

// IncludedCount counts distinct items across all item sections.
func IncludedCount(s model.DigestSections) int {
	seen := map[string]struct{}{}
	for _, bucket := range [][]model.DigestItem{s.MustKnow, s.VideoHighlights, s.PodcastRoundup, s.QuickReads} {
		for _, it := range bucket {
			key := it.ItemID
			if key == "" {
				key = it.URL + "\x00" + it.Title
			}
			seen[key] = struct{}{}
		}
	}
	return len(seen)
}

// ReadTime is the whole minutes needed to read text at 200 words per minute.
func ReadTime(text string) int {
	words := len(strings.Fields(text))
	return (words + wordsPerMinute - 1) / wordsPerMinute
}
