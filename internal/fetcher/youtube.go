package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"daily-digest/internal/model"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// FeedBase is the YouTube channel feed endpoint.
const FeedBase = "https://www.youtube.com/feeds/videos.xml?channel_id="

var channelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/channel/([^/?]+)`),
	regexp.MustCompile(`youtube\.com/c/([^/?]+)`),
	regexp.MustCompile(`youtube\.com/@([^/?]+)`),
}

var videoIDPattern = regexp.MustCompile(`v=([^&]+)`)

// YouTube reads a channel's public Atom feed.
type YouTube struct {
	rss      *RSS
	feedBase string
}

// NewYouTube builds a YouTube fetcher. Video pages are not extracted.
func NewYouTube(opts Options) *YouTube {
	opts.Extractor = nil
	return &YouTube{rss: NewRSS(opts), feedBase: FeedBase}
}

// ChannelFeedURL derives the feed URL from a channel URL.
func ChannelFeedURL(channelURL string) (string, error) {
	id, err := channelID(channelURL)
	if err != nil {
		return "", err
	}
	return FeedBase + id, nil
}

func channelID(channelURL string) (string, error) {
	for _, re := range channelPatterns {
		if m := re.FindStringSubmatch(channelURL); m != nil {
			return url.QueryEscape(m[1]), nil
		}
	}
	return "", fmt.Errorf("%w: unrecognized youtube channel url %q", model.ErrConfiguration, channelURL)
}

func (f *YouTube) Fetch(ctx context.Context, src model.Source) ([]model.RawItem, error) {
	channelURL := src.ConfigValue("channel_url")
	if channelURL == "" {
		return nil, fmt.Errorf("%w: source %s has no channel_url", model.ErrConfiguration, src.ID)
	}
	id, err := channelID(channelURL)
	if err != nil {
		return nil, err
	}
	feed, err := f.rss.parse(ctx, f.feedBase+id)
	if err != nil {
		return nil, err
	}
	items := f.rss.mapFeed(src, feed)
	for i := range items {
		decorateVideo(&items[i], feed.Items[i])
	}
	return items, nil
}

func decorateVideo(ri *model.RawItem, it *gofeed.Item) {
	if m := videoIDPattern.FindStringSubmatch(ri.ContentURL); m != nil {
		ri.Metadata["video_id"] = model.String(m[1])
	} else if id := extValue(it.Extensions, "yt", "videoId"); id != "" {
		ri.Metadata["video_id"] = model.String(id)
	}
	group := firstExt(it.Extensions, "media", "group")
	if group == nil {
		return
	}
	if ri.RawContent == "" {
		if d := firstChild(group, "description"); d != nil {
			ri.RawContent = strings.TrimSpace(d.Value)
		}
	}
	if th := firstChild(group, "thumbnail"); th != nil && th.Attrs["url"] != "" {
		ri.Metadata["image_url"] = model.String(th.Attrs["url"])
	}
	if comm := firstChild(group, "community"); comm != nil {
		if stats := firstChild(comm, "statistics"); stats != nil {
			if v, err := strconv.ParseInt(stats.Attrs["views"], 10, 64); err == nil {
				ri.Metadata["view_count"] = model.Int(v)
			}
		}
	}
}

func firstExt(e ext.Extensions, ns, name string) *ext.Extension {
	if e == nil || len(e[ns][name]) == 0 {
		return nil
	}
	return &e[ns][name][0]
}

func extValue(e ext.Extensions, ns, name string) string {
	if x := firstExt(e, ns, name); x != nil {
		return strings.TrimSpace(x.Value)
	}
	return ""
}

func firstChild(x *ext.Extension, name string) *ext.Extension {
	if len(x.Children[name]) == 0 {
		return nil
	}
	return &x.Children[name][0]
}
