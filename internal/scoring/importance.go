// Package scoring assigns a heuristic importance to fetched items.
package scoring

import (
	"math"
	"time"

	"daily-digest/internal/model"
)

const base = 0.5

var typeWeights = map[model.SourceType]float64{
	model.SourceNewsletter: 0.1,
	model.SourceYouTube:    0.15,
	model.SourcePodcast:    0.1,
	model.SourceReddit:     0.05,
}

// Importance scores item in [0, 1] relative to now. It is pure: the same
// inputs always produce the same score.
func Importance(item model.RawItem, sourceType model.SourceType, now time.Time) float64 {
	score := base

	if item.PublishedAt != nil {
		age := now.Sub(*item.PublishedAt)
		switch {
		case age < 24*time.Hour:
			score += 0.2
		case age < 48*time.Hour:
			score += 0.1
		}
	}

	score += typeWeights[sourceType]

	if v, ok := number(item.Metadata.Get("score")); ok {
		switch {
		case v > 1000:
			score += 0.15
		case v > 100:
			score += 0.1
		}
	}
	if v, ok := number(item.Metadata.Get("view_count")); ok {
		switch {
		case v > 100000:
			score += 0.15
		case v > 10000:
			score += 0.1
		}
	}

	if score > 1 {
		score = 1
	}
	// round away float drift, e.g. 0.5+0.2+0.05+0.15
	return math.Round(score*100) / 100
}

func number(v model.Value) (float64, bool) {
	switch v.Kind() {
	case model.KindInt:
		return float64(v.Int64()), true
	case model.KindFloat:
		return v.Float(), true
	default:
		return 0, false
	}
}
