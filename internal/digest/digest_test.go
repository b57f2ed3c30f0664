package digest

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"daily-digest/internal/model"
)

func item(id string, typ model.SourceType, score float64, summary string) model.EnrichedItem {
	return model.EnrichedItem{
		RawItem: model.RawItem{
			SourceID:   "src-" + string(typ),
			SourceType: typ,
			SourceName: strings.ToUpper(string(typ)),
			Title:      "Title " + id,
			ContentURL: "https://example.com/" + id,
		},
		ID:              id,
		Summary:         summary,
		ImportanceScore: score,
	}
}

func TestAssembleBuckets(t *testing.T) {
	items := []model.EnrichedItem{
		item("r1", model.SourceRSS, 0.6, "Rss one. More text."),
		item("y1", model.SourceYouTube, 0.9, "Video one."),
		item("p1", model.SourcePodcast, 0.7, "Pod one."),
		item("y2", model.SourceYouTube, 0.8, "Video two."),
		item("n1", model.SourceNewsletter, 0.75, "News one! Rest."),
		item("d1", model.SourceReddit, 0.65, "Reddit one."),
		item("y3", model.SourceYouTube, 0.5, "Video three."),
		item("y4", model.SourceYouTube, 0.55, "Video four."),
	}
	s := Assemble(items)

	wantMust := []string{"y1", "y2", "n1", "p1", "d1"}
	if got := ids(s.MustKnow); !reflect.DeepEqual(got, wantMust) {
		t.Fatalf("must know = %v, want %v", got, wantMust)
	}
	if got := ids(s.VideoHighlights); !reflect.DeepEqual(got, []string{"y1", "y2", "y4"}) {
		t.Fatalf("videos = %v", got)
	}
	if got := ids(s.PodcastRoundup); !reflect.DeepEqual(got, []string{"p1"}) {
		t.Fatalf("podcasts = %v", got)
	}
	if got := ids(s.QuickReads); !reflect.DeepEqual(got, []string{"n1", "r1"}) {
		t.Fatalf("quick reads = %v", got)
	}
	if s.QuickReads[0].Summary != "News one!" || s.QuickReads[1].Summary != "Rss one." {
		t.Fatalf("quick read summaries = %q, %q", s.QuickReads[0].Summary, s.QuickReads[1].Summary)
	}
	if s.MustKnow[2].Summary != "News one! Rest." {
		t.Fatalf("must know summary should not be truncated: %q", s.MustKnow[2].Summary)
	}
	if len(s.Connections) != 0 {
		t.Fatalf("connections = %v", s.Connections)
	}
}

func TestAssembleStableTies(t *testing.T) {
	items := []model.EnrichedItem{
		item("a", model.SourceRSS, 0.7, ""),
		item("b", model.SourceRSS, 0.7, ""),
		item("c", model.SourceRSS, 0.7, ""),
	}
	first := Assemble(items)
	if got := ids(first.MustKnow); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("ties reordered: %v", got)
	}
	for i := 0; i < 5; i++ {
		if again := Assemble(items); !reflect.DeepEqual(first, again) {
			t.Fatal("assembly is not deterministic")
		}
	}
	if items[0].ID != "a" {
		t.Fatal("input slice was mutated")
	}
}

func TestAssembleEmpty(t *testing.T) {
	s := Assemble(nil)
	if len(s.MustKnow)+len(s.Themes)+len(s.QuickReads) != 0 {
		t.Fatalf("expected empty sections: %+v", s)
	}
	out, err := Render(s, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "##") {
		t.Fatalf("empty digest should have no sections:\n%s", out)
	}
}

func TestFirstSentence(t *testing.T) {
	cases := map[string]string{
		"First sentence. Second sentence.": "First sentence.",
		"Version 1.2 shipped. Next.":       "Version 1.2 shipped.",
		"Really? Yes.":                     "Really?",
		"No terminator here":               "No terminator here",
		"Ends here.":                       "Ends here.",
		"":                                 "",
	}
	for in, want := range cases {
		if got := FirstSentence(in); got != want {
			t.Errorf("FirstSentence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestThemes(t *testing.T) {
	items := []model.EnrichedItem{
		{RawItem: model.RawItem{Title: "New AI model released"}},
		{RawItem: model.RawItem{Title: "Startup funding round"}, Summary: "Raised a lot."},
	}
	want := []string{"AI and Machine Learning developments", "Startup ecosystem updates"}
	if got := Themes(items); !reflect.DeepEqual(got, want) {
		t.Fatalf("themes = %v, want %v", got, want)
	}

	tests := []struct {
		name  string
		items []model.EnrichedItem
		want  []string
	}{
		{
			name:  "keyword inside a word",
			items: []model.EnrichedItem{{RawItem: model.RawItem{Title: "OpenAI ships GPT-5"}, Summary: "New model released."}},
			want:  []string{"AI and Machine Learning developments"},
		},
		{
			name:  "mixed case",
			items: []model.EnrichedItem{{RawItem: model.RawItem{Title: "CLIMATE summit"}, Summary: "Artificial Intelligence panel."}},
			want:  []string{"AI and Machine Learning developments", "Climate and sustainability news"},
		},
		{
			name:  "no keywords",
			items: []model.EnrichedItem{{RawItem: model.RawItem{Title: "Local news"}, Summary: "Roads closed."}},
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Themes(tt.items); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("themes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderOrderAndOmission(t *testing.T) {
	s := Assemble([]model.EnrichedItem{
		item("y1", model.SourceYouTube, 0.9, "A video about AI."),
		item("r1", model.SourceRSS, 0.6, "Rss one. More."),
	})
	out, err := Render(s, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "# YOUR DAILY BRIEF - Monday, March 4, 2024\n") {
		t.Fatalf("unexpected heading:\n%s", out)
	}
	order := []string{"## ⚡ TOP STORIES", "## 🔍 BIG PICTURE", "## 📺 VIDEO HIGHLIGHTS", "## 📊 QUICK UPDATES"}
	last := -1
	for _, h := range order {
		i := strings.Index(out, h)
		if i < 0 || i < last {
			t.Fatalf("heading %q missing or out of order:\n%s", h, out)
		}
		last = i
	}
	if strings.Contains(out, "PODCAST ROUNDUP") {
		t.Fatalf("empty podcast section rendered:\n%s", out)
	}
	for _, want := range []string{"### Title y1", "*Source: YOUTUBE*", "- **Title r1** - Rss one. *(RSS)*"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestComputeStats(t *testing.T) {
	items := []model.EnrichedItem{
		item("a", model.SourceRSS, 0.9, "x"),
		item("b", model.SourceRSS, 0.8, "x"),
		item("c", model.SourceYouTube, 0.7, "x"),
	}
	s := Assemble(items)
	text := strings.TrimSpace(strings.Repeat("word ", 650))
	st := ComputeStats(items, s, text)
	want := model.DigestStats{
		SourcesChecked:     2,
		ItemsProcessed:     3,
		ItemsIncluded:      3,
		EstimatedReadTime:  4,
		EstimatedTimeSaved: 15,
	}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}

func TestExpandVars(t *testing.T) {
	d := model.Digest{Date: "2024-03-04", Stats: model.DigestStats{ItemsIncluded: 7, EstimatedReadTime: 3}}
	got := ExpandVars("{.DigestDate}: {.ItemsIncluded} items, {.ReadTime} min", d)
	if got != "2024-03-04: 7 items, 3 min" {
		t.Fatalf("got %q", got)
	}
}

func ids(items []model.DigestItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ItemID
	}
	return out
}
