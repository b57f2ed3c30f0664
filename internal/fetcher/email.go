package fetcher

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"daily-digest/internal/logging"
	"daily-digest/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// Inbox holds inbound emails waiting to be turned into items. Claimed
// emails stay in the store until the claim is acked or released.
type Inbox interface {
	ClaimInboundEmails(ctx context.Context, sourceID, claimID string, max int) ([]model.InboundEmail, error)
}

type claimKey struct{}

// WithClaim returns a context under which newsletter fetches claim inbox
// emails as id. The caller acks or releases the claim once the outcome of
// the run is known.
func WithClaim(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, claimKey{}, id)
}

// ClaimID returns the claim set by WithClaim, or "".
func ClaimID(ctx context.Context) string {
	id, _ := ctx.Value(claimKey{}).(string)
	return id
}

var linkPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

var blockedLinkParts = []string{"unsubscribe", "click.", "track.", "email.", "list-manage"}

// ExtractLinks returns the distinct article links in an email body, in order,
// skipping tracking and unsubscribe links.
func ExtractLinks(body string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range linkPattern.FindAllString(body, -1) {
		l = strings.TrimRight(l, ".,;:)]'")
		lower := strings.ToLower(l)
		blocked := false
		for _, part := range blockedLinkParts {
			if strings.Contains(lower, part) {
				blocked = true
				break
			}
		}
		if blocked || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Email drains a newsletter source's inbox.
type Email struct {
	inbox Inbox
	opts  Options
}

func NewEmail(inbox Inbox, opts Options) *Email {
	return &Email{inbox: inbox, opts: opts.withDefaults()}
}

// Fetch claims emails one at a time until the item limit is reached. Each
// linked article becomes an item; an email without usable links becomes a
// single item carrying its text. ctx must carry a claim (see WithClaim).
func (f *Email) Fetch(ctx context.Context, src model.Source) ([]model.RawItem, error) {
	claim := ClaimID(ctx)
	if claim == "" {
		return nil, fmt.Errorf("%w: newsletter source %s fetched without an inbox claim", model.ErrConfiguration, src.ID)
	}
	var items []model.RawItem
	for len(items) < f.opts.Limit {
		emails, err := f.inbox.ClaimInboundEmails(ctx, src.ID, claim, 1)
		if err != nil {
			return items, fmt.Errorf("%w: inbox %s: %w", model.ErrFetch, src.ID, err)
		}
		if len(emails) == 0 {
			break
		}
		items = append(items, f.fromEmail(ctx, src, emails[0])...)
	}
	if len(items) > f.opts.Limit {
		logging.FromContext(ctx).Info("fetcher: email items over limit dropped", "source_id", src.ID, "dropped", len(items)-f.opts.Limit)
		items = items[:f.opts.Limit]
	}
	return items, nil
}

func (f *Email) fromEmail(ctx context.Context, src model.Source, e model.InboundEmail) []model.RawItem {
	log := logging.FromContext(ctx)
	body := e.Body()
	base := newItem(src)
	base.Author = e.From
	base.PublishedAt = parseEmailDate(e.Date)
	base.RawContent = body
	base.Metadata["email_subject"] = model.String(e.Subject)
	base.Metadata["email_from"] = model.String(e.From)

	var out []model.RawItem
	for _, link := range ExtractLinks(body) {
		ri := cloneItem(base)
		ri.ContentURL = link
		ri.Title = e.Subject
		if f.opts.Extractor != nil {
			a, err := f.opts.Extractor.Extract(ctx, link)
			if err != nil {
				log.Warn("fetcher: email link skipped", "url", link, "err", err)
				continue
			}
			if a.Title != "" {
				ri.Title = a.Title
			}
			ri.ExtractedText = a.TextContent
			if a.ImageURL != "" {
				ri.Metadata["image_url"] = model.String(a.ImageURL)
			}
		}
		out = append(out, ri)
	}
	if len(out) == 0 {
		ri := cloneItem(base)
		ri.Title = e.Subject
		if strings.TrimSpace(ri.Title) == "" {
			ri.Title = "Untitled"
		}
		ri.ExtractedText = plainText(e)
		out = append(out, ri)
	}
	return out
}

func cloneItem(ri model.RawItem) model.RawItem {
	md := make(model.Metadata, len(ri.Metadata))
	for k, v := range ri.Metadata {
		md[k] = v
	}
	ri.Metadata = md
	return ri
}

func plainText(e model.InboundEmail) string {
	if strings.TrimSpace(e.HTML) == "" {
		return strings.TrimSpace(e.Text)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(e.HTML))
	if err != nil {
		return strings.TrimSpace(e.Text)
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func parseEmailDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := mail.ParseDate(s); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}
