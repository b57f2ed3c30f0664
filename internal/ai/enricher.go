package ai

import (
	"context"

	"daily-digest/internal/logging"
	"daily-digest/internal/model"
)

// Enricher summarizes items with a Provider. Provider failures degrade to an
// empty summary or empty key points; they never fail the item.
type Enricher struct {
	p        Provider
	maxWords int
}

func NewEnricher(p Provider, maxWords int) *Enricher {
	if maxWords <= 0 {
		maxWords = 200
	}
	return &Enricher{p: p, maxWords: maxWords}
}

// Provider returns the wrapped provider.
func (e *Enricher) Provider() Provider { return e.p }

// Enrich returns the summary and key points for item.
func (e *Enricher) Enrich(ctx context.Context, item model.RawItem) (summary string, points []string) {
	log := logging.FromContext(ctx)
	text := item.Text()

	summary, err := e.p.Summarize(ctx, text, e.maxWords)
	if err != nil {
		log.Warn("enrich: summary failed", "title", item.Title, "err", err)
		summary = ""
	}
	points, err = e.p.ExtractKeyPoints(ctx, text)
	if err != nil || points == nil {
		if err != nil {
			log.Warn("enrich: key points failed", "title", item.Title, "err", err)
		}
		points = []string{}
	}
	return summary, points
}

// Overview asks the provider for a digest overview. Failure returns "".
func (e *Enricher) Overview(ctx context.Context, s model.DigestSections) string {
	out, err := e.p.GenerateDigestText(ctx, s)
	if err != nil {
		logging.FromContext(ctx).Warn("enrich: digest overview failed", "err", err)
		return ""
	}
	return out
}
