package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"daily-digest/internal/model"
)

const articleHTML = `<!doctype html>
<html><head>
<title>Fallback Title</title>
<meta property="og:title" content="Real Title">
<meta property="og:image" content="https://img.example.com/cover.png">
<meta property="og:site_name" content="Example News">
<meta name="author" content="Jane Writer">
</head>
<body>
<nav><p>Home About Contact Subscribe Archive Links</p></nav>
<div class="sidebar"><p>Short.</p></div>
<article>
<p>The first paragraph is long enough to count toward the article container score.</p>
<p>The second paragraph also carries a good amount of prose for the extractor.</p>
<p>A third paragraph rounds things out so the article clearly wins.</p>
</article>
<script>var tracking = "ignored text that is quite long and should never appear";</script>
<footer><p>Copyright notice that is long enough to be a paragraph candidate.</p></footer>
</body></html>`

func TestReadableExtract(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	a, err := NewReadable(time.Second).Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if gotUA != UserAgent {
		t.Fatalf("user agent = %q", gotUA)
	}
	if a.Title != "Real Title" || a.SiteName != "Example News" || a.Byline != "Jane Writer" {
		t.Fatalf("metadata: %+v", a)
	}
	if a.ImageURL != "https://img.example.com/cover.png" {
		t.Fatalf("image = %q", a.ImageURL)
	}
	if !strings.Contains(a.TextContent, "second paragraph") {
		t.Fatalf("text missing article body: %q", a.TextContent)
	}
	for _, bad := range []string{"Copyright", "tracking", "Subscribe"} {
		if strings.Contains(a.TextContent, bad) {
			t.Fatalf("text contains %q: %q", bad, a.TextContent)
		}
	}
	if !strings.HasPrefix(a.Excerpt, "The first paragraph") {
		t.Fatalf("excerpt = %q", a.Excerpt)
	}
}

func TestReadableNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewReadable(time.Second).Extract(context.Background(), srv.URL)
	if !errors.Is(err, model.ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestParseNoArticle(t *testing.T) {
	_, err := Parse(strings.NewReader(`<html><body><p>tiny</p></body></html>`))
	if !errors.Is(err, model.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestCloudflareExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req markdownRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(markdownResponse{
			Success: true,
			Result:  "## Sub\n\n# Main Heading\n\nBody for " + req.URL,
		})
	}))
	defer srv.Close()

	c := NewCloudflare("acct", "tok", time.Second)
	c.baseURL = srv.URL
	a, err := c.Extract(context.Background(), "https://example.com/post")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if a.Title != "Main Heading" {
		t.Fatalf("title = %q", a.Title)
	}
	if !strings.Contains(a.TextContent, "https://example.com/post") {
		t.Fatalf("content = %q", a.TextContent)
	}
}

type stubExtractor struct {
	a   *Article
	err error
	n   int
}

func (s *stubExtractor) Extract(context.Context, string) (*Article, error) {
	s.n++
	return s.a, s.err
}

func TestWithFallback(t *testing.T) {
	primary := &stubExtractor{err: model.ErrParse}
	secondary := &stubExtractor{a: &Article{Title: "from fallback"}}
	a, err := WithFallback(primary, secondary).Extract(context.Background(), "https://x")
	if err != nil || a.Title != "from fallback" {
		t.Fatalf("a = %+v err = %v", a, err)
	}

	primary = &stubExtractor{err: model.ErrConfiguration}
	secondary = &stubExtractor{a: &Article{}}
	if _, err := WithFallback(primary, secondary).Extract(context.Background(), "https://x"); err == nil {
		t.Fatal("expected configuration error to pass through")
	}
	if secondary.n != 0 {
		t.Fatal("fallback should not run for configuration errors")
	}
}
