package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"daily-digest/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb)
}

func TestRedisStoreUsersAndAlias(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, u := range []model.UserProfile{
		{ID: "u2", Email: "b@example.com", Alias: "Bob", DigestTime: "08:00"},
		{ID: "u1", Email: "a@example.com", Alias: "alice", DigestTime: "07:00"},
	} {
		if err := s.PutUser(ctx, u); err != nil {
			t.Fatalf("put user: %v", err)
		}
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0].ID != "u1" || users[1].ID != "u2" {
		t.Fatalf("unexpected users: %+v", users)
	}
	id, err := s.UserIDByAlias(ctx, "bob")
	if err != nil || id != "u2" {
		t.Fatalf("alias lookup = %q, %v", id, err)
	}
	if _, err := s.UserIDByAlias(ctx, "nobody"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.PutSource(ctx, model.Source{ID: "s1", UserID: "u1", Type: model.SourceRSS, Name: "Blog", IsActive: true})
	_ = s.PutSource(ctx, model.Source{ID: "s2", UserID: "u1", Type: model.SourceReddit, Name: "golang", IsActive: false})
	_ = s.PutSource(ctx, model.Source{ID: "s3", UserID: "u2", Type: model.SourceRSS, Name: "Other", IsActive: true})

	active, err := s.ActiveSources(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "s1" {
		t.Fatalf("unexpected active sources: %+v", active)
	}
	all, _ := s.Sources(ctx, "u1")
	if len(all) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(all))
	}

	at := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	if err := s.TouchSource(ctx, "s1", at); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetSource(ctx, "s1")
	if got.LastFetchedAt == nil || !got.LastFetchedAt.Equal(at) {
		t.Fatalf("last fetched not recorded: %+v", got.LastFetchedAt)
	}
	if err := s.TouchSource(ctx, "nope", at); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreAPIKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.PutAPIKey(ctx, model.APIKey{UserID: "u1", Provider: "OpenAI", Key: "sk-1", IsActive: true})
	_ = s.PutAPIKey(ctx, model.APIKey{UserID: "u1", Provider: "anthropic", Key: "sk-2", IsActive: false})

	k, err := s.GetAPIKey(ctx, "u1", "openai")
	if err != nil || k.Key != "sk-1" {
		t.Fatalf("get key = %+v, %v", k, err)
	}
	if _, err := s.GetAPIKey(ctx, "u1", "anthropic"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("inactive key should be not found, got %v", err)
	}
	if _, err := s.GetAPIKey(ctx, "u1", "groq"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing key should be not found, got %v", err)
	}
}

func contentItem(id, url string, created time.Time) model.ContentItem {
	return model.ContentItem{
		EnrichedItem: model.EnrichedItem{
			RawItem: model.RawItem{UserID: "u1", SourceID: "s1", Title: id, ContentURL: url},
			ID:      id,
		},
		CreatedAt: created,
	}
}

func TestRedisStoreContentUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	if err := s.InsertContentItem(ctx, contentItem("i1", "https://a.example/1", now)); err != nil {
		t.Fatal(err)
	}
	err := s.InsertContentItem(ctx, contentItem("i2", "https://a.example/1", now))
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Items without a url never conflict.
	if err := s.InsertContentItem(ctx, contentItem("i3", "", now)); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertContentItem(ctx, contentItem("i4", "", now)); err != nil {
		t.Fatal(err)
	}

	ok, _ := s.ContentExists(ctx, "u1", "https://a.example/1")
	if !ok {
		t.Fatal("expected url to exist")
	}
	ok, _ = s.ContentExists(ctx, "u2", "https://a.example/1")
	if ok {
		t.Fatal("uniqueness is per user")
	}
	ok, _ = s.ContentExists(ctx, "u1", "")
	if ok {
		t.Fatal("empty url never exists")
	}
}

func TestRedisStoreContentItemsRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	_ = s.InsertContentItem(ctx, contentItem("before", "https://x/0", day.Add(-time.Minute)))
	_ = s.InsertContentItem(ctx, contentItem("first", "https://x/1", day))
	_ = s.InsertContentItem(ctx, contentItem("second", "https://x/2", day.Add(5*time.Hour)))
	_ = s.InsertContentItem(ctx, contentItem("next", "https://x/3", day.Add(24*time.Hour)))

	items, err := s.ContentItems(ctx, "u1", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != "first" || items[1].ID != "second" {
		t.Fatalf("unexpected range: %+v", items)
	}
}

func TestRedisStoreCreateDigestOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.CreateDigest(ctx, model.Digest{ID: string(rune('a' + i)), UserID: "u1", Date: "2024-07-01", FullText: "x"})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, model.ErrDuplicate):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if ok.Load() != 1 || dup.Load() != 7 {
		t.Fatalf("ok=%d dup=%d", ok.Load(), dup.Load())
	}

	exists, _ := s.DigestExists(ctx, "u1", "2024-07-01")
	if !exists {
		t.Fatal("digest should exist")
	}
	at := time.Date(2024, 7, 1, 7, 5, 0, 0, time.UTC)
	if err := s.MarkDelivered(ctx, "u1", "2024-07-01", at); err != nil {
		t.Fatal(err)
	}
	d, err := s.GetDigest(ctx, "u1", "2024-07-01")
	if err != nil {
		t.Fatal(err)
	}
	if d.DeliveredAt == nil || !d.DeliveredAt.Equal(at) || d.FullText != "x" {
		t.Fatalf("unexpected digest: %+v", d)
	}
	if err := s.MarkDelivered(ctx, "u1", "2024-07-02", at); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreFailedInsertLeavesNoMarker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	// A string at the index key makes the ZADD fail with WRONGTYPE.
	if err := s.rdb.Set(ctx, userItemsKey("u1"), "x", 0).Err(); err != nil {
		t.Fatal(err)
	}
	it := contentItem("i1", "https://example.com/a", at)
	err := s.InsertContentItem(ctx, it)
	if err == nil || errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected a write error, got %v", err)
	}
	if ok, _ := s.ContentExists(ctx, "u1", "https://example.com/a"); ok {
		t.Fatal("failed insert left a seen marker")
	}
	if n, _ := s.rdb.Exists(ctx, itemKey("i1")).Result(); n != 0 {
		t.Fatal("failed insert left an item body")
	}

	s.rdb.Del(ctx, userItemsKey("u1"))
	if err := s.InsertContentItem(ctx, it); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	got, err := s.ContentItems(ctx, "u1", at.Add(-time.Hour), at.Add(time.Hour))
	if err != nil || len(got) != 1 || got[0].ID != "i1" {
		t.Fatalf("unexpected items after retry: %v %+v", err, got)
	}
}

func TestRedisStoreInboxClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, subj := range []string{"one", "two", "three"} {
		if err := s.PushInboundEmail(ctx, "src", model.InboundEmail{Subject: subj}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ClaimInboundEmails(ctx, "src", "c1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Subject != "one" || got[1].Subject != "two" {
		t.Fatalf("unexpected claim: %+v", got)
	}

	// A second claim only sees what c1 did not take.
	other, _ := s.ClaimInboundEmails(ctx, "src", "c2", 10)
	if len(other) != 1 || other[0].Subject != "three" {
		t.Fatalf("unexpected concurrent claim: %+v", other)
	}
	if err := s.AckInboundEmails(ctx, "src", "c2"); err != nil {
		t.Fatal(err)
	}

	// Released emails return to the head in their original order.
	if err := s.ReleaseInboundEmails(ctx, "src", "c1"); err != nil {
		t.Fatal(err)
	}
	if err := s.PushInboundEmail(ctx, "src", model.InboundEmail{Subject: "four"}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.ClaimInboundEmails(ctx, "src", "c3", 10)
	var subjects []string
	for _, e := range got {
		subjects = append(subjects, e.Subject)
	}
	if strings.Join(subjects, ",") != "one,two,four" {
		t.Fatalf("unexpected order after release: %v", subjects)
	}
	if err := s.AckInboundEmails(ctx, "src", "c3"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.ClaimInboundEmails(ctx, "src", "c4", 10)
	if len(got) != 0 {
		t.Fatalf("expected empty inbox, got %d", len(got))
	}
	if _, err := s.ClaimInboundEmails(ctx, "src", "", 1); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without claim id, got %v", err)
	}
}
