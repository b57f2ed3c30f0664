// Package dedup drops items a user has already seen.
package dedup

import (
	"context"
	"strings"
	"sync"

	"daily-digest/internal/model"
)

// Checker reports whether a user already has content at url.
type Checker interface {
	ContentExists(ctx context.Context, userID, contentURL string) (bool, error)
}

// Deduplicator checks against storage and against urls already accepted in
// the current run. Use one per run.
type Deduplicator struct {
	store Checker

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(store Checker) *Deduplicator {
	return &Deduplicator{store: store, seen: map[string]struct{}{}}
}

func normalize(url string) string {
	return strings.TrimSpace(url)
}

// IsNew reports whether url has not been seen for userID. Empty urls are
// always new. A url reported new is remembered for the rest of the run.
func (d *Deduplicator) IsNew(ctx context.Context, userID, url string) (bool, error) {
	url = normalize(url)
	if url == "" {
		return true, nil
	}
	key := userID + "\x00" + url

	d.mu.Lock()
	_, dup := d.seen[key]
	d.mu.Unlock()
	if dup {
		return false, nil
	}
	exists, err := d.store.ContentExists(ctx, userID, url)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.seen[key]; dup {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}

// Filter keeps new items in their original order.
func (d *Deduplicator) Filter(ctx context.Context, items []model.RawItem) ([]model.RawItem, error) {
	out := make([]model.RawItem, 0, len(items))
	for _, it := range items {
		ok, err := d.IsNew(ctx, it.UserID, it.ContentURL)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}
