package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"daily-digest/internal/config"
	"daily-digest/internal/markdown"
	"daily-digest/internal/model"
	"daily-digest/internal/retry"
)

func sampleDigest() model.Digest {
	return model.Digest{
		ID:       "d1",
		UserID:   "u1",
		Date:     "2024-07-01",
		FullText: "# YOUR DAILY BRIEF - Monday, July 1, 2024\n---\n## ⚡ TOP STORIES\n### Go <1.23> released\n",
		Stats:    model.DigestStats{SourcesChecked: 3, ItemsProcessed: 12, ItemsIncluded: 8, EstimatedReadTime: 4, EstimatedTimeSaved: 60},
	}
}

type stubChannel struct {
	name string
	err  error
	sent int
}

func (s *stubChannel) Name() string { return s.name }
func (s *stubChannel) Send(context.Context, string, model.Digest) error {
	s.sent++
	return s.err
}

func TestDispatcherDeliver(t *testing.T) {
	bad := &stubChannel{name: "bad", err: errors.New("down")}
	good := &stubChannel{name: "good"}
	if !NewDispatcher(bad, good).Deliver(context.Background(), "a@example.com", sampleDigest()) {
		t.Fatal("expected success when one channel succeeds")
	}
	if bad.sent != 1 || good.sent != 1 {
		t.Fatalf("every channel should be tried: bad=%d good=%d", bad.sent, good.sent)
	}
	if NewDispatcher(bad).Deliver(context.Background(), "a@example.com", sampleDigest()) {
		t.Fatal("expected failure when all channels fail")
	}
	if NewDispatcher().Deliver(context.Background(), "a@example.com", sampleDigest()) {
		t.Fatal("no channels means nothing delivered")
	}
}

func TestNewFromConfig(t *testing.T) {
	d, err := New(config.DeliveryConfig{Channels: []string{"file", "webhook"}, Webhook: config.WebhookConfig{URL: "http://x"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(d.Channels(), ","); got != "file,webhook" {
		t.Fatalf("channels = %s", got)
	}
	if _, err := New(config.DeliveryConfig{Channels: []string{"email"}}); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("email without smtp should fail, got %v", err)
	}
	if _, err := New(config.DeliveryConfig{Channels: []string{"pigeon"}}); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("unknown channel should fail, got %v", err)
	}
}

func TestEmailMessage(t *testing.T) {
	e := NewEmail(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "digest@example.com"})
	var gotAddr string
	var gotMsg []byte
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		if from != "digest@example.com" || len(to) != 1 || to[0] != "a@example.com" {
			t.Errorf("unexpected envelope: %s %v", from, to)
		}
		return nil
	}
	if err := e.Send(context.Background(), "a@example.com", sampleDigest()); err != nil {
		t.Fatal(err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %s", gotAddr)
	}
	msg := string(gotMsg)
	for _, want := range []string{
		"Subject: Your Daily Digest - Jul 1, 2024",
		"Content-Type: text/html",
		"Go &lt;1.23&gt; released",
		"Sources checked: 3",
		"Estimated read time: 4 minutes",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestEmailRequiresRecipient(t *testing.T) {
	e := NewEmail(config.SMTPConfig{Host: "h", From: "f"})
	if err := e.Send(context.Background(), " ", sampleDigest()); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestHTMLBodyOmitsEmptyStats(t *testing.T) {
	d := sampleDigest()
	d.Stats = model.DigestStats{}
	body, err := HTMLBody(d)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(body, "Digest Stats") {
		t.Fatal("stats block should be omitted")
	}
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			t.Errorf("missing auth header")
		}
		var p webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		if p.To != "a@example.com" || p.Digest.Date != "2024-07-01" {
			t.Errorf("unexpected payload: %+v", p)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, "s3cret", time.Second)
	w.retry = retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond}
	if err := w.Send(context.Background(), "a@example.com", sampleDigest()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestWebhookClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, "", time.Second)
	w.retry = retry.Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	err := w.Send(context.Background(), "a@example.com", sampleDigest())
	var se *retry.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestFileArchive(t *testing.T) {
	f := NewFile(t.TempDir(), "Brief for {.DigestDate}: {.ItemsIncluded} items", "Saved you {.TimeSaved} minutes.")
	d := sampleDigest()
	d.Summary = "A calm day."
	if err := f.Send(context.Background(), "a@example.com", d); err != nil {
		t.Fatal(err)
	}
	doc, err := markdown.ParseFile(f.Path("u1", "2024-07-01"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.String("digest_date") != "2024-07-01" || doc.String("items_included") != "8" || doc.String("summary") != "A calm day." {
		t.Fatalf("unexpected frontmatter: %+v", doc.Frontmatter)
	}
	if !strings.Contains(doc.Body, "Brief for 2024-07-01: 8 items") {
		t.Errorf("preface not expanded: %q", doc.Body)
	}
	if !strings.Contains(doc.Body, "## ⚡ TOP STORIES") {
		t.Errorf("digest text missing")
	}
	if !strings.HasSuffix(doc.Body, "Saved you 60 minutes.\n") {
		t.Errorf("postscript missing: %q", doc.Body)
	}
}
