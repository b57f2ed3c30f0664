// Package digest buckets enriched items into sections, renders the daily
// brief and derives its statistics. Everything here is pure.
package digest

import (
	"sort"
	"strings"
	"unicode"

	"daily-digest/internal/model"
)

const (
	mustKnowLimit  = 5
	videoLimit     = 3
	podcastLimit   = 3
	quickReadLimit = 10
	themeLimit     = 3
)

var quickReadTypes = map[model.SourceType]bool{
	model.SourceNewsletter: true,
	model.SourceRSS:        true,
	model.SourceSubstack:   true,
}

type theme struct {
	label    string
	keywords []string // lowercase substrings
}

// Checked in this order; the first themeLimit matches win.
var themes = []theme{
	{"AI and Machine Learning developments", []string{"ai", "artificial intelligence"}},
	{"Climate and sustainability news", []string{"climate", "sustainability"}},
	{"Startup ecosystem updates", []string{"startup", "funding"}},
}

func (t theme) matches(lower string) bool {
	for _, k := range t.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Assemble ranks items by importance (stable, so fetch order breaks ties)
// and fills the digest sections.
func Assemble(items []model.EnrichedItem) model.DigestSections {
	ranked := make([]model.EnrichedItem, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ImportanceScore > ranked[j].ImportanceScore
	})

	s := model.DigestSections{
		MustKnow:        []model.DigestItem{},
		Themes:          Themes(ranked),
		VideoHighlights: []model.DigestItem{},
		PodcastRoundup:  []model.DigestItem{},
		QuickReads:      []model.DigestItem{},
		Connections:     []string{},
	}
	for i, it := range ranked {
		if i < mustKnowLimit {
			s.MustKnow = append(s.MustKnow, entry(it))
		}
		switch {
		case it.SourceType == model.SourceYouTube && len(s.VideoHighlights) < videoLimit:
			s.VideoHighlights = append(s.VideoHighlights, entry(it))
		case it.SourceType == model.SourcePodcast && len(s.PodcastRoundup) < podcastLimit:
			s.PodcastRoundup = append(s.PodcastRoundup, entry(it))
		case quickReadTypes[it.SourceType] && len(s.QuickReads) < quickReadLimit:
			e := entry(it)
			e.Summary = FirstSentence(e.Summary)
			s.QuickReads = append(s.QuickReads, e)
		}
	}
	return s
}

func entry(it model.EnrichedItem) model.DigestItem {
	return model.DigestItem{
		ItemID:     it.ID,
		Title:      it.Title,
		Summary:    it.Summary,
		SourceName: it.SourceName,
		URL:        it.ContentURL,
		Importance: it.ImportanceScore,
	}
}

// Themes detects coarse topics across the titles and summaries of items.
func Themes(items []model.EnrichedItem) []string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.Title)
		b.WriteByte(' ')
		b.WriteString(it.Summary)
		b.WriteByte('\n')
	}
	text := strings.ToLower(b.String())
	out := []string{}
	for _, t := range themes {
		if len(out) == themeLimit {
			break
		}
		if t.matches(text) {
			out = append(out, t.label)
		}
	}
	return out
}

// FirstSentence returns s up to and including the first '.', '!' or '?'
// that is followed by whitespace or the end of the text. Text without a
// terminator is returned whole.
func FirstSentence(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
			return string(runes[:i+1])
		}
	}
	return s
}
