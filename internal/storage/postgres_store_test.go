package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"daily-digest/internal/model"
)

func TestInsertDigestQuery(t *testing.T) {
	d := model.Digest{ID: "d1", UserID: "u1", Date: "2024-07-01", CreatedAt: time.Unix(0, 0)}
	q, args, err := insertDigestQuery(d, []byte(`{}`)).ToSql()
	if err != nil {
		t.Fatal(err)
	}
	want := "INSERT INTO digests (id,user_id,digest_date,body,created_at) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (user_id, digest_date) DO NOTHING"
	if q != want {
		t.Fatalf("query:\n got %s\nwant %s", q, want)
	}
	if len(args) != 5 || args[2] != "2024-07-01" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestInsertContentQueryNullURL(t *testing.T) {
	it := contentItem("i1", "", time.Unix(0, 0))
	q, args, err := insertContentQuery(it, []byte(`{}`)).ToSql()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(q, "ON CONFLICT DO NOTHING") {
		t.Fatalf("missing conflict clause: %s", q)
	}
	if args[3] != nil {
		t.Fatalf("empty url should be stored as NULL, got %#v", args[3])
	}
}

func TestUpsertUserQueryLowercasesAlias(t *testing.T) {
	q, args, err := upsertUserQuery(model.UserProfile{ID: "u1", Alias: "Alice"}, []byte(`{}`)).ToSql()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(q, "INSERT INTO users") || !strings.Contains(q, "ON CONFLICT (id) DO UPDATE") {
		t.Fatalf("unexpected query: %s", q)
	}
	if args[2] != "alice" {
		t.Fatalf("alias arg = %#v", args[2])
	}
}

func TestSelectSourcesQuery(t *testing.T) {
	q, _, err := selectSourcesQuery().Where("user_id = ?", "u1").ToSql()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(q, "FROM sources WHERE user_id = $1") {
		t.Fatalf("unexpected query: %s", q)
	}
}

func TestClaimInboxQuery(t *testing.T) {
	q, err := claimInboxQuery("src", "c1", 5)
	if err != nil {
		t.Fatal(err)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		t.Fatal(err)
	}
	want := "UPDATE inbound_emails SET claim_id = $1 WHERE id IN (SELECT id FROM inbound_emails WHERE claim_id IS NULL AND source_id = $2 ORDER BY id LIMIT 5 FOR UPDATE SKIP LOCKED) RETURNING id, body"
	if sql != want {
		t.Fatalf("query:\n got %s\nwant %s", sql, want)
	}
	if len(args) != 2 || args[0] != "c1" || args[1] != "src" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestNewPostgresStoreRequiresDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), " ")
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestSchemaDeclaresUniqueness(t *testing.T) {
	for _, want := range []string{"UNIQUE (user_id, digest_date)", "content_items_user_url", "claim_id"} {
		if !strings.Contains(Schema, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
