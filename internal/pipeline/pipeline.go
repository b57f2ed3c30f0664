// Package pipeline runs the per-user digest state machine: fetch, dedup,
// enrich, assemble, persist and deliver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"daily-digest/internal/ai"
	"daily-digest/internal/config"
	"daily-digest/internal/dedup"
	"daily-digest/internal/digest"
	"daily-digest/internal/fetcher"
	"daily-digest/internal/logging"
	"daily-digest/internal/model"
	"daily-digest/internal/scoring"
	"daily-digest/internal/storage"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// Store is the persistence the pipeline reads and writes.
type Store interface {
	storage.UserStore
	storage.SourceStore
	storage.KeyStore
	storage.ContentStore
	storage.DigestStore
	storage.InboxStore
}

// Deliverer sends a persisted digest. It reports whether any channel succeeded.
type Deliverer interface {
	Deliver(ctx context.Context, to string, d model.Digest) bool
}

// ProviderFactory builds an LLM provider for a provider id and user key.
type ProviderFactory func(id, apiKey string) (ai.Provider, error)

// ProviderFromConfig resolves endpoints from the llm sections of cfg.
func ProviderFromConfig(cfg config.Config) ProviderFactory {
	return func(id, apiKey string) (ai.Provider, error) {
		l := cfg.LLM(id)
		return ai.New(id, ai.Endpoint{
			APIKey:  apiKey,
			BaseURL: l.BaseURL,
			Model:   l.Model,
			Timeout: config.Duration(l.Timeout, 0),
		})
	}
}

type Options struct {
	UserWorkers   int
	SourceWorkers int
	EnrichWorkers int
	RunTimeout    time.Duration
	SummaryWords  int
	Narrative     bool
}

// OptionsFromConfig maps the pipeline config section.
func OptionsFromConfig(c config.PipelineConfig) Options {
	return Options{
		UserWorkers:   c.UserWorkers,
		SourceWorkers: c.SourceWorkers,
		EnrichWorkers: c.EnrichWorkers,
		RunTimeout:    config.Duration(c.RunTimeout, 5*time.Minute),
		SummaryWords:  c.SummaryWords,
		Narrative:     c.Narrative,
	}
}

func workers(n int) int {
	if n <= 0 {
		return 4
	}
	return n
}

type Pipeline struct {
	store       Store
	fetcher     fetcher.Fetcher
	newProvider ProviderFactory
	delivery    Deliverer
	opts        Options

	// Now is the clock; tests override it.
	Now func() time.Time
}

// New wires a pipeline. delivery may be nil.
func New(store Store, f fetcher.Fetcher, np ProviderFactory, delivery Deliverer, opts Options) *Pipeline {
	return &Pipeline{
		store:       store,
		fetcher:     f,
		newProvider: np,
		delivery:    delivery,
		opts:        opts,
		Now:         time.Now,
	}
}

// DueUsers returns users whose digest hour is the current hour in their
// own timezone.
func (p *Pipeline) DueUsers(ctx context.Context, now time.Time) ([]model.UserProfile, error) {
	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserProfile, 0, len(users))
	for _, u := range users {
		if u.DueAt(now) {
			out = append(out, u)
		}
	}
	return out, nil
}

// RunBatch runs every due user concurrently. One user's failure never
// affects another; results are returned in user order.
func (p *Pipeline) RunBatch(ctx context.Context) ([]UserResult, error) {
	now := p.Now()
	runID := uuid.NewString()
	log := logging.FromContext(ctx).With("run_id", runID)
	ctx = logging.WithLogger(ctx, log)

	users, err := p.DueUsers(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	log.Info("pipeline: batch start", "due_users", len(users), "at", now.UTC().Format(time.RFC3339))
	results := p.RunUsers(ctx, users, now)
	log.Info("pipeline: batch done", "summary", Summary(results))
	return results, nil
}

// RunUsers runs the given users at now with bounded concurrency.
func (p *Pipeline) RunUsers(ctx context.Context, users []model.UserProfile, now time.Time) []UserResult {
	results := make([]UserResult, len(users))
	wp := pool.New().WithMaxGoroutines(workers(p.opts.UserWorkers))
	for i, u := range users {
		wp.Go(func() {
			results[i] = p.RunUser(ctx, u, now)
		})
	}
	wp.Wait()
	return results
}

// RunUser drives one user's state machine for the user's local date at now.
func (p *Pipeline) RunUser(ctx context.Context, u model.UserProfile, now time.Time) (res UserResult) {
	date := u.LocalDate(now)
	res = UserResult{UserID: u.ID, Date: date, State: StatePending}
	log := logging.FromContext(ctx).With("user_id", u.ID, "date", date)
	ctx = logging.WithLogger(ctx, log)
	start := time.Now()
	var claim inboxClaim
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: run panicked", "panic", r, "stack", string(debug.Stack()))
			res.State = StateFailed
			res.Reason = "internal error"
			res.Error = fmt.Sprint(r)
		}
		if len(claim.sources) > 0 {
			p.settle(ctx, claim, consumed(res))
		}
		res.Duration = time.Since(start)
		log.Info("pipeline: user done", "state", res.State, "reason", res.Reason, "items_new", res.ItemsNew, "took", res.Duration)
	}()

	if p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RunTimeout)
		defer cancel()
	}

	exists, err := p.store.DigestExists(ctx, u.ID, date)
	if err != nil {
		return res.fail("storage error", err)
	}
	if exists {
		return res.skip(ReasonDigestExists)
	}
	sources, err := p.store.ActiveSources(ctx, u.ID)
	if err != nil {
		return res.fail("storage error", err)
	}
	if len(sources) == 0 {
		return res.skip(ReasonNoSources)
	}
	provider, err := p.provider(ctx, u)
	if err != nil {
		if errors.Is(err, model.ErrNoCredential) || errors.Is(err, model.ErrNotFound) {
			return res.fail(ReasonNoAPIKey, err)
		}
		return res.fail("provider error", err)
	}

	res.State = StateFetching
	res.SourcesChecked = len(sources)
	claim = newInboxClaim(sources)
	raw, srcErrs := p.fetchAll(fetcher.WithClaim(ctx, claim.id), sources, now)
	res.ItemsFetched = len(raw)
	if len(srcErrs) > 0 {
		res.SourceErrors = srcErrs
	}
	if err := ctx.Err(); err != nil {
		return p.deadline(&res, err)
	}

	fresh, err := dedup.New(p.store).Filter(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			return p.deadline(&res, ctx.Err())
		}
		return res.fail("storage error", err)
	}
	res.ItemsNew = len(fresh)
	if len(fresh) == 0 {
		return res.skip(ReasonNoNewContent)
	}

	res.State = StateEnriching
	enricher := ai.NewEnricher(provider, p.opts.SummaryWords)
	enriched := p.enrichAll(ctx, enricher, fresh, now)
	if err := ctx.Err(); err != nil {
		return p.deadline(&res, err)
	}

	res.State = StateAssembling
	d, err := Build(u.ID, date, enriched, len(sources))
	if err != nil {
		return res.fail("render error", err)
	}
	if p.opts.Narrative {
		d.Summary = enricher.Overview(ctx, d.Sections)
	}
	d.GenerationCost = ai.Cost(provider.Name(), provider.Usage())
	if err := ctx.Err(); err != nil {
		return p.deadline(&res, err)
	}

	// Once persistence begins it runs to completion.
	res.State = StatePersisting
	pctx := context.WithoutCancel(ctx)
	d.CreatedAt = p.Now().UTC()
	if err := p.store.CreateDigest(pctx, d); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return res.skip(ReasonDigestExists)
		}
		return res.fail("storage error", err)
	}
	res.DigestID = d.ID
	// Items are best effort once the digest is committed.
	dropped, err := p.persistItems(pctx, enriched, d.CreatedAt)
	res.ItemsDropped = dropped
	if err != nil {
		log.Error("pipeline: persisting items failed", "err", err)
		res.Error = err.Error()
	}

	res.State = StateDone
	if p.delivery != nil && u.DigestFormat.WantsEmail() {
		res.Delivered = p.deliver(pctx, u, d)
	}
	return res
}

func (p *Pipeline) deadline(res *UserResult, err error) UserResult {
	return res.fail(ReasonDeadline, err)
}

func (p *Pipeline) provider(ctx context.Context, u model.UserProfile) (ai.Provider, error) {
	key, err := p.store.GetAPIKey(ctx, u.ID, u.Provider())
	if err != nil {
		return nil, err
	}
	return p.newProvider(u.Provider(), key.Key)
}

// fetchAll fetches sources concurrently. Items keep source order. Failed
// sources are reported by id and keep their previous LastFetchedAt.
func (p *Pipeline) fetchAll(ctx context.Context, sources []model.Source, now time.Time) ([]model.RawItem, map[string]string) {
	log := logging.FromContext(ctx)
	perSource := make([][]model.RawItem, len(sources))
	errs := make([]error, len(sources))

	wp := pool.New().WithMaxGoroutines(workers(p.opts.SourceWorkers))
	for i, src := range sources {
		wp.Go(func() {
			items, err := p.fetcher.Fetch(ctx, src)
			if err != nil {
				errs[i] = err
				log.Warn("pipeline: fetch failed", "source_id", src.ID, "type", src.Type, "err", err)
				return
			}
			if err := p.store.TouchSource(ctx, src.ID, now); err != nil {
				log.Warn("pipeline: touch source failed", "source_id", src.ID, "err", err)
			}
			perSource[i] = fetcher.ApplyFilters(items, src.Filters, now)
		})
	}
	wp.Wait()

	var out []model.RawItem
	var failed map[string]string
	for i, items := range perSource {
		if errs[i] != nil {
			if failed == nil {
				failed = map[string]string{}
			}
			failed[sources[i].ID] = errs[i].Error()
			continue
		}
		out = append(out, items...)
	}
	return out, failed
}

// enrichAll summarizes and scores items concurrently. Results are
// materialized by index before returning.
func (p *Pipeline) enrichAll(ctx context.Context, e *ai.Enricher, items []model.RawItem, now time.Time) []model.EnrichedItem {
	out := make([]model.EnrichedItem, len(items))
	wp := pool.New().WithMaxGoroutines(workers(p.opts.EnrichWorkers))
	for i, it := range items {
		wp.Go(func() {
			out[i] = Enrich(ctx, e, it, now)
		})
	}
	wp.Wait()
	return out
}

// Enrich summarizes and scores one item.
func Enrich(ctx context.Context, e *ai.Enricher, it model.RawItem, now time.Time) model.EnrichedItem {
	summary, points := e.Enrich(ctx, it)
	return model.EnrichedItem{
		RawItem:         it,
		ID:              uuid.NewString(),
		Summary:         summary,
		KeyPoints:       points,
		ImportanceScore: scoring.Importance(it, it.SourceType, now),
	}
}

// persistItems inserts every item, dropping url conflicts. It returns how
// many were dropped and the joined insert failures.
func (p *Pipeline) persistItems(ctx context.Context, items []model.EnrichedItem, at time.Time) (int, error) {
	dropped := 0
	var errs []error
	for _, it := range items {
		err := p.store.InsertContentItem(ctx, model.ContentItem{EnrichedItem: it, CreatedAt: at})
		if errors.Is(err, model.ErrDuplicate) {
			dropped++
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("item %s: %w", it.ID, err))
		}
	}
	return dropped, errors.Join(errs...)
}

func (p *Pipeline) deliver(ctx context.Context, u model.UserProfile, d model.Digest) bool {
	if !p.delivery.Deliver(ctx, u.Email, d) {
		return false
	}
	if err := p.store.MarkDelivered(ctx, u.ID, d.Date, p.Now()); err != nil {
		logging.FromContext(ctx).Warn("pipeline: mark delivered failed", "err", err)
	}
	return true
}

// Build assembles, renders and measures a digest. It does not persist.
// sourcesChecked overrides the count derived from items when positive.
func Build(userID, date string, items []model.EnrichedItem, sourcesChecked int) (model.Digest, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return model.Digest{}, fmt.Errorf("%w: digest date %q", model.ErrConfiguration, date)
	}
	sections := digest.Assemble(items)
	text, err := digest.Render(sections, day)
	if err != nil {
		return model.Digest{}, err
	}
	stats := digest.ComputeStats(items, sections, text)
	if sourcesChecked > 0 {
		stats.SourcesChecked = sourcesChecked
	}
	return model.Digest{
		ID:       uuid.NewString(),
		UserID:   userID,
		Date:     date,
		FullText: text,
		Sections: sections,
		Stats:    stats,
	}, nil
}
