package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"daily-digest/internal/model"
)

// RedditBase is the public Reddit host used for listings.
const RedditBase = "https://www.reddit.com"

// Reddit fetches the day's top posts of a subreddit.
type Reddit struct {
	opts    Options
	client  *http.Client
	baseURL string
}

func NewReddit(opts Options) *Reddit {
	opts = opts.withDefaults()
	return &Reddit{opts: opts, client: &http.Client{Timeout: opts.Timeout}, baseURL: RedditBase}
}

type listing struct {
	Data struct {
		Children []struct {
			Data post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Selftext    string  `json:"selftext"`
	URL         string  `json:"url"`
	Subreddit   string  `json:"subreddit"`
	Score       int64   `json:"score"`
	NumComments int64   `json:"num_comments"`
	Thumbnail   string  `json:"thumbnail"`
}

func (f *Reddit) Fetch(ctx context.Context, src model.Source) ([]model.RawItem, error) {
	sub := strings.TrimPrefix(src.ConfigValue("subreddit"), "r/")
	if sub == "" {
		return nil, fmt.Errorf("%w: source %s has no subreddit", model.ErrConfiguration, src.ID)
	}
	u := fmt.Sprintf("%s/r/%s/top.json?limit=%d&t=day", f.baseURL, url.PathEscape(sub), DefaultLimit)
	body, err := get(ctx, f.client, u, f.opts.UserAgent, "application/json")
	if err != nil {
		return nil, err
	}
	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("%w: reddit listing r/%s: %v", model.ErrParse, sub, err)
	}

	items := make([]model.RawItem, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		if len(items) == f.opts.Limit {
			break
		}
		p := c.Data
		ri := newItem(src)
		ri.Title = p.Title
		ri.Author = p.Author
		if p.Permalink != "" {
			ri.ContentURL = "https://reddit.com" + p.Permalink
		}
		if p.CreatedUTC > 0 {
			t := time.UnixMilli(int64(p.CreatedUTC * 1000)).UTC()
			ri.PublishedAt = &t
		}
		ri.RawContent = p.Selftext
		if ri.RawContent == "" {
			ri.RawContent = p.URL
		}
		ri.Metadata["subreddit"] = model.String(p.Subreddit)
		ri.Metadata["score"] = model.Int(p.Score)
		ri.Metadata["num_comments"] = model.Int(p.NumComments)
		if thumb := strings.TrimSpace(p.Thumbnail); thumb != "" && thumb != "self" {
			ri.Metadata["image_url"] = model.String(thumb)
		}
		items = append(items, ri)
	}
	return items, nil
}
