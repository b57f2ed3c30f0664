package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daily-digest/internal/ai"
	"daily-digest/internal/dedup"
	"daily-digest/internal/fetcher"
	"daily-digest/internal/logging"
	"daily-digest/internal/model"
)

// IngestResult counts what an on-demand source ingest did.
type IngestResult struct {
	SourceID string `json:"sourceId"`
	Fetched  int    `json:"fetched"`
	New      int    `json:"new"`
	Inserted int    `json:"inserted"`
}

// IngestSource fetches one source now and stores its new items enriched.
// No digest is produced.
func (p *Pipeline) IngestSource(ctx context.Context, sourceID string) (res IngestResult, err error) {
	res = IngestResult{SourceID: sourceID}
	src, err := p.store.GetSource(ctx, sourceID)
	if err != nil {
		return res, err
	}
	u, err := p.store.GetUser(ctx, src.UserID)
	if err != nil {
		return res, err
	}
	ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("user_id", u.ID, "source_id", src.ID))
	now := p.Now()

	provider, err := p.provider(ctx, u)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return res, fmt.Errorf("%w: user %s has no %s key", model.ErrNoCredential, u.ID, u.Provider())
		}
		return res, err
	}

	claim := newInboxClaim([]model.Source{src})
	if len(claim.sources) > 0 {
		defer func() { p.settle(ctx, claim, err == nil) }()
	}
	items, err := p.fetcher.Fetch(fetcher.WithClaim(ctx, claim.id), src)
	if err != nil {
		return res, err
	}
	if err := p.store.TouchSource(ctx, src.ID, now); err != nil {
		logging.FromContext(ctx).Warn("pipeline: touch source failed", "err", err)
	}
	items = fetcher.ApplyFilters(items, src.Filters, now)
	res.Fetched = len(items)

	fresh, err := dedup.New(p.store).Filter(ctx, items)
	if err != nil {
		return res, err
	}
	res.New = len(fresh)
	if len(fresh) == 0 {
		return res, nil
	}
	enriched := p.enrichAll(ctx, ai.NewEnricher(provider, p.opts.SummaryWords), fresh, now)
	dropped, err := p.persistItems(ctx, enriched, now.UTC())
	res.Inserted = len(enriched) - dropped
	return res, err
}

// GenerateForDate builds and stores a digest from content items already
// stored for the user's local calendar date. It fails with
// model.ErrDuplicate when the digest exists and model.ErrNotFound when there
// is no content for that day.
func (p *Pipeline) GenerateForDate(ctx context.Context, userID, date string) (model.Digest, error) {
	u, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return model.Digest{}, err
	}
	day, err := time.ParseInLocation(model.DateLayout, date, u.Location())
	if err != nil {
		return model.Digest{}, fmt.Errorf("%w: date %q", model.ErrConfiguration, date)
	}
	exists, err := p.store.DigestExists(ctx, userID, date)
	if err != nil {
		return model.Digest{}, err
	}
	if exists {
		return model.Digest{}, fmt.Errorf("%w: digest %s/%s", model.ErrDuplicate, userID, date)
	}
	stored, err := p.store.ContentItems(ctx, userID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return model.Digest{}, err
	}
	if len(stored) == 0 {
		return model.Digest{}, fmt.Errorf("%w: no content for %s on %s", model.ErrNotFound, userID, date)
	}
	items := make([]model.EnrichedItem, len(stored))
	for i, it := range stored {
		items[i] = it.EnrichedItem
	}
	d, err := Build(userID, date, items, 0)
	if err != nil {
		return model.Digest{}, err
	}
	d.CreatedAt = p.Now().UTC()
	if err := p.store.CreateDigest(ctx, d); err != nil {
		return model.Digest{}, err
	}
	logging.FromContext(ctx).Info("pipeline: generated digest", "user_id", userID, "date", date, "items", len(items))
	return d, nil
}

// Redeliver sends a stored digest again.
func (p *Pipeline) Redeliver(ctx context.Context, userID, date string) (bool, error) {
	if p.delivery == nil {
		return false, fmt.Errorf("%w: no delivery channels", model.ErrConfiguration)
	}
	u, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	d, err := p.store.GetDigest(ctx, userID, date)
	if err != nil {
		return false, err
	}
	return p.deliver(ctx, u, d), nil
}
