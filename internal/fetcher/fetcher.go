// Package fetcher turns configured sources into raw content items.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"daily-digest/internal/extract"
	"daily-digest/internal/model"
	"daily-digest/internal/retry"
)

// DefaultLimit caps the number of items a single fetch returns.
const DefaultLimit = 10

const maxPayload = 10 << 20

// Fetcher produces raw items for one source.
type Fetcher interface {
	Fetch(ctx context.Context, src model.Source) ([]model.RawItem, error)
}

// Options are shared by the built-in fetchers.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Limit     int
	// Extractor enriches linked articles. Nil disables extraction.
	Extractor extract.Extractor
	// ExtractWorkers bounds concurrent extractions within one fetch.
	ExtractWorkers int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "DailyDigest/1.0"
	}
	if o.Limit <= 0 || o.Limit > DefaultLimit {
		o.Limit = DefaultLimit
	}
	if o.ExtractWorkers <= 0 {
		o.ExtractWorkers = 4
	}
	return o
}

// Registry dispatches sources to fetchers by type.
type Registry struct {
	byType map[model.SourceType]Fetcher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: map[model.SourceType]Fetcher{}}
}

// NewDefaultRegistry wires the built-in fetchers. inbox may be nil, in which
// case newsletter sources are unsupported.
func NewDefaultRegistry(opts Options, inbox Inbox) *Registry {
	opts = opts.withDefaults()
	rss := NewRSS(opts)
	r := NewRegistry()
	r.Register(model.SourceRSS, rss)
	r.Register(model.SourceSubstack, rss)
	r.Register(model.SourcePodcast, rss)
	r.Register(model.SourceYouTube, NewYouTube(opts))
	r.Register(model.SourceReddit, NewReddit(opts))
	if inbox != nil {
		r.Register(model.SourceNewsletter, NewEmail(inbox, opts))
	}
	return r
}

// Register binds f to t, replacing any previous binding.
func (r *Registry) Register(t model.SourceType, f Fetcher) {
	r.byType[t] = f
}

// Supports reports whether t has a fetcher.
func (r *Registry) Supports(t model.SourceType) bool {
	_, ok := r.byType[t]
	return ok
}

// Fetch runs the fetcher registered for src.Type.
func (r *Registry) Fetch(ctx context.Context, src model.Source) ([]model.RawItem, error) {
	f, ok := r.byType[src.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedSource, src.Type)
	}
	return f.Fetch(ctx, src)
}

func newItem(src model.Source) model.RawItem {
	return model.RawItem{
		SourceID:   src.ID,
		UserID:     src.UserID,
		SourceType: src.Type,
		SourceName: src.Name,
		Metadata:   model.Metadata{},
	}
}

// get performs a GET and returns the body, mapping transport and status
// failures to ErrFetch.
func get(ctx context.Context, client *http.Client, url, userAgent, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrConfiguration, url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", model.ErrFetch, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: get %s: %w", model.ErrFetch, url, &retry.StatusError{Code: resp.StatusCode})
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrFetch, url, err)
	}
	return b, nil
}
