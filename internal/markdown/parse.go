// Package markdown reads and writes Markdown documents with YAML frontmatter.
// Archived digests are stored in this form.
package markdown

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// Document represents a Markdown file with YAML frontmatter.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// String returns a frontmatter value as a string, or "".
func (d Document) String(key string) string {
	v, ok := d.Frontmatter[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// ParseFile reads a Markdown file and extracts YAML frontmatter and body.
func ParseFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse splits r into frontmatter and body. Frontmatter is expected at the
// top between two lines containing only "---".
func Parse(r io.Reader) (Document, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(len(fence))
	if err != nil && !errors.Is(err, io.EOF) {
		return Document{}, err
	}
	hasFM := string(peek) == fence

	var fm, body strings.Builder
	if hasFM {
		if _, err := br.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return Document{}, err
		}
		for {
			l, err := br.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return Document{}, err
			}
			if strings.TrimSpace(l) == fence {
				break
			}
			fm.WriteString(l)
			if errors.Is(err, io.EOF) {
				break
			}
		}
	}
	if _, err := io.Copy(&body, br); err != nil {
		return Document{}, err
	}

	d := Document{Frontmatter: map[string]any{}, Body: body.String()}
	if hasFM {
		if err := yaml.Unmarshal([]byte(fm.String()), &d.Frontmatter); err != nil {
			return Document{}, err
		}
		if d.Frontmatter == nil {
			d.Frontmatter = map[string]any{}
		}
	}
	return d, nil
}

// Render writes d back out. Empty frontmatter is omitted.
func Render(d Document) ([]byte, error) {
	var buf bytes.Buffer
	if len(d.Frontmatter) > 0 {
		b, err := yaml.Marshal(d.Frontmatter)
		if err != nil {
			return nil, err
		}
		buf.WriteString(fence + "\n")
		buf.Write(b)
		buf.WriteString(fence + "\n\n")
	}
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

// WriteFile renders d to path.
func WriteFile(path string, d Document) error {
	b, err := Render(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
