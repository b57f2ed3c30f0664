package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"daily-digest/internal/logging"
	"daily-digest/internal/model"

	"github.com/mmcdole/gofeed"
	"github.com/sourcegraph/conc/pool"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"

// RSS fetches RSS and Atom feeds. It serves rss, substack and podcast sources.
type RSS struct {
	opts   Options
	client *http.Client
}

func NewRSS(opts Options) *RSS {
	opts = opts.withDefaults()
	return &RSS{opts: opts, client: &http.Client{Timeout: opts.Timeout}}
}

func (f *RSS) Fetch(ctx context.Context, src model.Source) ([]model.RawItem, error) {
	feedURL := src.ConfigValue("feed_url", "rss_url")
	if src.Type == model.SourcePodcast {
		feedURL = src.ConfigValue("rss_url", "feed_url")
	}
	if feedURL == "" {
		return nil, fmt.Errorf("%w: source %s has no feed url", model.ErrConfiguration, src.ID)
	}
	feed, err := f.parse(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	items := f.mapFeed(src, feed)
	if f.opts.Extractor != nil {
		f.extractAll(ctx, items)
	}
	return items, nil
}

func (f *RSS) parse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, err := get(ctx, f.client, feedURL, f.opts.UserAgent, feedAccept)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %v", model.ErrParse, feedURL, err)
	}
	return feed, nil
}

func (f *RSS) mapFeed(src model.Source, feed *gofeed.Feed) []model.RawItem {
	n := len(feed.Items)
	if n > f.opts.Limit {
		n = f.opts.Limit
	}
	items := make([]model.RawItem, 0, n)
	for _, it := range feed.Items[:n] {
		ri := newItem(src)
		ri.Title = strings.TrimSpace(it.Title)
		if ri.Title == "" {
			ri.Title = "Untitled"
		}
		ri.Author = feedAuthor(it, feed)
		ri.ContentURL = strings.TrimSpace(it.Link)
		ri.PublishedAt = published(it)
		ri.RawContent = it.Content
		if strings.TrimSpace(ri.RawContent) == "" {
			ri.RawContent = it.Description
		}
		if it.Image != nil && it.Image.URL != "" {
			ri.Metadata["image_url"] = model.String(it.Image.URL)
		}
		if len(it.Categories) > 0 {
			ri.Metadata["tags"] = model.Strings(it.Categories...)
		}
		items = append(items, ri)
	}
	return items
}

// extractAll fills ExtractedText for linked items. Failures are logged and
// the item is kept without extracted text.
func (f *RSS) extractAll(ctx context.Context, items []model.RawItem) {
	log := logging.FromContext(ctx)
	p := pool.New().WithMaxGoroutines(f.opts.ExtractWorkers)
	for i := range items {
		if items[i].ContentURL == "" {
			continue
		}
		p.Go(func() {
			a, err := f.opts.Extractor.Extract(ctx, items[i].ContentURL)
			if err != nil {
				log.Warn("fetcher: extract failed", "url", items[i].ContentURL, "err", err)
				return
			}
			items[i].ExtractedText = a.TextContent
			if a.ImageURL != "" {
				items[i].Metadata["image_url"] = model.String(a.ImageURL)
			}
		})
	}
	p.Wait()
}

func feedAuthor(it *gofeed.Item, feed *gofeed.Feed) string {
	if it.Author != nil && strings.TrimSpace(it.Author.Name) != "" {
		return strings.TrimSpace(it.Author.Name)
	}
	for _, a := range it.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	return strings.TrimSpace(feed.Title)
}

func published(it *gofeed.Item) *time.Time {
	if it.PublishedParsed != nil {
		t := it.PublishedParsed.UTC()
		return &t
	}
	if it.UpdatedParsed != nil {
		t := it.UpdatedParsed.UTC()
		return &t
	}
	return nil
}
