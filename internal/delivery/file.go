package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"daily-digest/internal/digest"
	"daily-digest/internal/markdown"
	"daily-digest/internal/model"
)

// File archives digests as markdown with YAML frontmatter under
// <dir>/<user_id>/<date>.md.
type File struct {
	dir        string
	preface    string
	postscript string
}

func NewFile(dir, preface, postscript string) *File {
	if strings.TrimSpace(dir) == "" {
		dir = "./out"
	}
	return &File{dir: dir, preface: preface, postscript: postscript}
}

func (f *File) Name() string { return "file" }

// Path returns where the digest for user and date is written.
func (f *File) Path(userID, date string) string {
	return filepath.Join(f.dir, userID, date+".md")
}

// Document builds the archived form of d.
func (f *File) Document(to string, d model.Digest) markdown.Document {
	fm := map[string]any{
		"title":          "Your Daily Brief",
		"digest_date":    d.Date,
		"user_id":        d.UserID,
		"to":             to,
		"sources":        d.Stats.SourcesChecked,
		"items_included": d.Stats.ItemsIncluded,
		"read_time":      d.Stats.EstimatedReadTime,
		"time_saved":     d.Stats.EstimatedTimeSaved,
	}
	if d.Summary != "" {
		fm["summary"] = d.Summary
	}
	if d.GenerationCost.Provider != "" {
		fm["provider"] = d.GenerationCost.Provider
		fm["total_tokens"] = d.GenerationCost.TotalTokens
	}

	var body strings.Builder
	if p := strings.TrimSpace(digest.ExpandVars(f.preface, d)); p != "" {
		body.WriteString(p + "\n\n")
	}
	body.WriteString(d.FullText)
	if p := strings.TrimSpace(digest.ExpandVars(f.postscript, d)); p != "" {
		body.WriteString("\n" + p + "\n")
	}
	return markdown.Document{Frontmatter: fm, Body: body.String()}
}

func (f *File) Send(ctx context.Context, to string, d model.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := f.Path(d.UserID, d.Date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("archive dir: %w", err)
	}
	return markdown.WriteFile(path, f.Document(to, d))
}
