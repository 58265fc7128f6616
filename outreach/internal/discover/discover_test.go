package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/outreach/dbopen"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

func TestNormalize(t *testing.T) {
	// WHAT: Names are trimmed and capped, markup is stripped, skills are
	// lowercased and deduped, non-http URLs are dropped.
	n := Normalize(Raw{
		Name:        "   ",
		Description: "<p>A <b>weather</b> [bot](https://x) &amp; more</p>",
		Skills:      []string{"Search", "search", " "},
		Tags:        []string{"LLM"},
		EndpointURL: "ftp://nope",
		WebsiteURL:  "https://bot.dev",
	})
	if n.Name != defaultName {
		t.Errorf("name = %q", n.Name)
	}
	if strings.ContainsAny(n.Description, "<>[]()*") || !strings.Contains(n.Description, "weather") ||
		!strings.Contains(n.Description, "more") {
		t.Errorf("description = %q", n.Description)
	}
	if len(n.Skills) != 2 || n.Skills[0] != "search" || n.Skills[1] != "llm" {
		t.Errorf("skills = %v", n.Skills)
	}
	if n.EndpointURL != "" || n.WebsiteURL != "https://bot.dev" {
		t.Errorf("urls = %q %q", n.EndpointURL, n.WebsiteURL)
	}
	if n.Category != "Data & Analytics" {
		t.Errorf("category = %q", n.Category)
	}
}

func TestNormalize_Limits(t *testing.T) {
	skills := make([]string, 30)
	for i := range skills {
		skills[i] = strings.Repeat("s", i+1)
	}
	n := Normalize(Raw{Name: strings.Repeat("n", 200), Description: strings.Repeat("d ", 400), Skills: skills, Category: " Custom "})
	if len([]rune(n.Name)) != maxNameLen {
		t.Errorf("name len = %d", len(n.Name))
	}
	if len(n.Description) > maxDescriptionLen {
		t.Errorf("description len = %d", len(n.Description))
	}
	if len(n.Skills) != maxSkills {
		t.Errorf("skills = %d", len(n.Skills))
	}
	if n.Category != "Custom" {
		t.Errorf("category = %q", n.Category)
	}
	if Normalize(Raw{Name: "x"}).Category != "General" {
		t.Error("fallback category should be General")
	}
}

func TestParseCSV(t *testing.T) {
	in := "Name,Description,Skills,URL,Endpoint\n" +
		"Bot,\"Says \"\"hi\"\"\",chat|Support,https://bot.dev,\n" +
		"\n" +
		"Other,,,https://o.dev,https://o.dev/api\n"
	rows, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].Description != `Says "hi"` || len(rows[0].Skills) != 2 || rows[0].EndpointURL != "https://bot.dev" {
		t.Errorf("row0 = %+v", rows[0])
	}
	if rows[1].EndpointURL != "https://o.dev/api" {
		t.Errorf("row1 = %+v", rows[1])
	}
}

func newTestSources(t *testing.T) (*httptest.Server, *Fetcher) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("UA = %q", r.Header.Get("User-Agent"))
		}
		q := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(q, "topic:chatbot") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"items":[
			{"name":"bot","full_name":"acme/bot","html_url":"https://github.com/acme/bot","description":null,
			 "stargazers_count":120,"topics":["ai-agent","LLM"],"updated_at":"2026-01-02T00:00:00Z"}
		]}`))
	})
	mux.HandleFunc("/api/spaces", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "100" {
			t.Errorf("limit = %s", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"org/space-one","likes":5,"sdk":"gradio","tags":["chat"]},
			{"id":"org/unpopular","likes":0}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, NewFetcher(FetcherConfig{GitHubAPIURL: srv.URL, HuggingFaceAPIURL: srv.URL})
}

func TestFetcher_GitHubDedupAndSkipFailedTopic(t *testing.T) {
	_, f := newTestSources(t)
	got, err := f.GitHub(context.Background(), GitHubOptions{MinStars: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("repos = %d, want 1 (deduped across topics)", len(got))
	}
	r := got[0]
	if r.Description != "GitHub repository acme/bot" || r.SourceURL != "https://github.com/acme/bot" {
		t.Errorf("repo = %+v", r)
	}
	if stars, _ := r.SourceData().Number("stargazers_count"); stars != 120 {
		t.Errorf("stars = %v", stars)
	}
}

func TestDiscover_ImportsBothSources(t *testing.T) {
	// WHAT: A discovery run imports from both sources and a second run finds
	// nothing new.
	_, f := newTestSources(t)
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	s := store.NewStore(db)
	im := NewImporter(s, f, nil)
	ctx := context.Background()

	res, err := im.Discover(ctx, DefaultOptions)
	if err != nil {
		t.Fatal(err)
	}
	if res.NewAgents != 2 {
		t.Fatalf("new = %d, want 2 (%+v)", res.NewAgents, res.Sources)
	}
	hf := res.Sources[PlatformHuggingFace]
	if hf.Imported != 1 {
		t.Errorf("huggingface = %+v", hf)
	}

	again, _ := im.Discover(ctx, DefaultOptions)
	if again.NewAgents != 0 || again.Sources[PlatformGitHub].Skipped != 1 {
		t.Fatalf("second run = %+v", again)
	}

	targets, _ := s.ListCandidates(ctx, store.CandidateFilter{SourcePlatform: PlatformHuggingFace})
	if len(targets) != 1 || targets[0].Category != "Hugging Face gradio" || targets[0].Name != "space-one" {
		t.Fatalf("hf target = %+v", targets)
	}
}

func TestDiscover_BothSourcesDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	im := NewImporter(store.NewStore(db), NewFetcher(FetcherConfig{GitHubAPIURL: srv.URL, HuggingFaceAPIURL: srv.URL}), nil)
	if _, err := im.Discover(context.Background(), DefaultOptions); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestImport_SkipsMissingSourceURL(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	im := NewImporter(store.NewStore(db), nil, nil)
	res := im.Import(context.Background(), PlatformCSV, []Raw{{Name: "x"}, {Name: "y", SourceURL: "https://y.dev"}})
	if res.Imported != 1 || res.Skipped != 1 {
		t.Fatalf("res = %+v", res)
	}
}
