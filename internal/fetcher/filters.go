package fetcher

import (
	"strings"
	"time"
	"unicode/utf8"

	"daily-digest/internal/model"
)

// ApplyFilters keeps the items that pass every configured filter, preserving
// order. Items without a publish time pass the age filter.
func ApplyFilters(items []model.RawItem, f model.SourceFilters, now time.Time) []model.RawItem {
	if f.IsZero() {
		return items
	}
	include := lowerAll(f.KeywordsInclude)
	exclude := lowerAll(f.KeywordsExclude)
	authorsIn := lowerAll(f.AuthorsInclude)
	authorsOut := lowerAll(f.AuthorsExclude)

	out := make([]model.RawItem, 0, len(items))
	for _, it := range items {
		content := it.ExtractedText
		if content == "" {
			content = it.RawContent
		}
		hay := strings.ToLower(it.Title + " " + content)
		author := strings.ToLower(strings.TrimSpace(it.Author))

		if len(include) > 0 && !containsAny(hay, include) {
			continue
		}
		if containsAny(hay, exclude) {
			continue
		}
		if f.MinLength > 0 && utf8.RuneCountInString(content) < f.MinLength {
			continue
		}
		if f.MaxAgeDays > 0 && it.PublishedAt != nil &&
			now.Sub(*it.PublishedAt) > time.Duration(f.MaxAgeDays)*24*time.Hour {
			continue
		}
		if len(authorsIn) > 0 && !equalsAny(author, authorsIn) {
			continue
		}
		if equalsAny(author, authorsOut) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(hay string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(hay, n) {
			return true
		}
	}
	return false
}

func equalsAny(s string, vals []string) bool {
	for _, v := range vals {
		if s == v {
			return true
		}
	}
	return false
}
