// Package extract turns article URLs into readable text.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"daily-digest/internal/model"
	"daily-digest/internal/retry"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// UserAgent is sent with every extraction request.
const UserAgent = "Mozilla/5.0 (compatible; DailyDigest/1.0)"

const (
	maxBody          = 5 << 20
	minParagraphLen  = 25
	minReadableChars = 100
	excerptLen       = 200
)

// Article is the readable form of a web page.
type Article struct {
	Title       string
	ContentHTML string
	TextContent string
	Excerpt     string
	Byline      string
	SiteName    string
	ImageURL    string
}

// Extractor fetches a URL and returns its main article.
type Extractor interface {
	Extract(ctx context.Context, url string) (*Article, error)
}

// Readable is a goquery based readability extractor.
type Readable struct {
	http *http.Client
}

// NewReadable returns an extractor using a client with the given timeout.
func NewReadable(timeout time.Duration) *Readable {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Readable{http: &http.Client{Timeout: timeout}}
}

// Extract downloads u and reduces it to its densest block of paragraphs.
func (r *Readable) Extract(ctx context.Context, u string) (*Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", model.ErrFetch, u, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", model.ErrFetch, u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: get %s: %w", model.ErrFetch, u, &retry.StatusError{Code: resp.StatusCode})
	}
	return Parse(io.LimitReader(resp.Body, maxBody))
}

// Parse runs the readability reduction over an HTML document.
func Parse(body io.Reader) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("%w: html: %v", model.ErrParse, err)
	}

	a := &Article{
		Title:    firstNonEmpty(meta(doc, "og:title"), doc.Find("title").First().Text(), doc.Find("h1").First().Text()),
		Byline:   firstNonEmpty(meta(doc, "author"), meta(doc, "article:author"), doc.Find("[rel=author]").First().Text()),
		SiteName: meta(doc, "og:site_name"),
		ImageURL: meta(doc, "og:image"),
		Excerpt:  firstNonEmpty(meta(doc, "og:description"), meta(doc, "description")),
	}

	doc.Find("script, style, noscript, nav, aside, footer, header, form, iframe, svg").Remove()

	best := bestContainer(doc)
	if best == nil {
		return nil, fmt.Errorf("%w: no readable content", model.ErrParse)
	}
	var blocks []string
	best.Find("h2, h3, p, li, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			blocks = append(blocks, t)
		}
	})
	text := strings.Join(blocks, "\n\n")
	if len(text) < minReadableChars {
		return nil, fmt.Errorf("%w: no readable content", model.ErrParse)
	}
	a.TextContent = text
	a.ContentHTML, _ = best.Html()
	if a.Excerpt == "" {
		a.Excerpt = truncate(blocks[0], excerptLen)
	}
	return a, nil
}

// bestContainer scores each parent by the length of its substantial
// paragraphs and returns the highest.
func bestContainer(doc *goquery.Document) *goquery.Selection {
	type cand struct {
		sel   *goquery.Selection
		score int
	}
	var order []*cand
	byNode := map[*html.Node]*cand{}
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		n := len(collapse(p.Text()))
		if n < minParagraphLen {
			return
		}
		parent := p.Parent()
		if parent.Length() == 0 {
			return
		}
		key := parent.Get(0)
		c, ok := byNode[key]
		if !ok {
			c = &cand{sel: parent}
			byNode[key] = c
			order = append(order, c)
		}
		c.score += n
	})
	var best *cand
	for _, c := range order {
		if best == nil || c.score > best.score {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	return best.sel
}

func meta(doc *goquery.Document, name string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)).First()
	v, _ := sel.Attr("content")
	return strings.TrimSpace(v)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
