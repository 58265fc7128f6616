package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/outreach/outreach/internal/channels"
	"github.com/hazyhaar/outreach/outreach/internal/discover"
	"github.com/hazyhaar/outreach/outreach/internal/ratelimit"
	"github.com/hazyhaar/outreach/outreach/internal/sourcedata"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

// sourceServer fakes the GitHub search and Hugging Face Spaces APIs with
// one repository and no spaces.
func sourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search/repositories":
			json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{{
				"name":             "helpdesk-bot",
				"full_name":        "acme/helpdesk-bot",
				"html_url":         "https://github.com/acme/helpdesk-bot",
				"description":      "Customer support agent with retrieval",
				"stargazers_count": 120,
				"topics":           []string{"chatbot", "support"},
				"updated_at":       time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339),
			}}})
		case "/api/spaces":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pipelineService(t *testing.T, cfg *Config) *Service {
	srv := sourceServer(t)
	return testService(t, cfg, WithFetcherConfig(discover.FetcherConfig{
		GitHubAPIURL:      srv.URL,
		HuggingFaceAPIURL: srv.URL,
	}))
}

func TestRunPipeline_DryRun(t *testing.T) {
	// WHAT: The default pipeline discovers, qualifies and previews without
	// sending anything.
	s := pipelineService(t, liveConfig())
	issue := stub(s, channels.GitHubIssue, delivered)

	res, err := s.RunPipeline(context.Background(), PipelineInput{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Discovered != 1 || res.Qualified != 1 || res.Prepared != 1 || res.Sent != 0 {
		t.Fatalf("result = %+v", res)
	}
	p := res.Preview[0]
	if p.Method != channels.GitHubIssue || p.ContactURL != "https://github.com/acme/helpdesk-bot" {
		t.Errorf("preview channel = %s %s", p.Method, p.ContactURL)
	}
	if !strings.HasPrefix(p.Subject, "List helpdesk-bot on AgentLink") || !strings.Contains(p.Body, p.InviteURL) {
		t.Errorf("preview = %+v", p)
	}
	if p.Source != "github" || !strings.HasPrefix(p.InviteToken, "inv_") {
		t.Errorf("preview = %+v", p)
	}
	if issue.count() != 0 {
		t.Error("dry run must not open issues")
	}
	if len(res.ByMethod) != 0 {
		t.Errorf("byMethod = %v", res.ByMethod)
	}
}

func TestRunPipeline_Live(t *testing.T) {
	s := pipelineService(t, liveConfig())
	issue := stub(s, channels.GitHubIssue, channels.Result{Success: true, Sent: true, Status: 201, Response: []byte(`{"number":7}`)})

	res, err := s.RunPipeline(context.Background(), PipelineInput{DryRun: boolPtr(false), Campaign: "launch"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 1 || res.Delivered != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if m := res.ByMethod[channels.GitHubIssue]; m.Sent != 1 || m.Delivered != 1 {
		t.Errorf("byMethod = %+v", res.ByMethod)
	}
	if issue.count() != 1 {
		t.Errorf("issues opened = %d", issue.count())
	}

	st, err := s.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalAttempts != 1 || st.Funnel.Delivered != 1 || len(st.RecentResults) != 1 {
		t.Errorf("status = %+v", st)
	}
	if len(st.BySource) != 1 || st.BySource[0].Key != "github" {
		t.Errorf("bySource = %+v", st.BySource)
	}
	if len(st.ByCampaign) != 1 || st.ByCampaign[0].Key != "launch" {
		t.Errorf("byCampaign = %+v", st.ByCampaign)
	}
}

func TestRunPipeline_NewOptOuts(t *testing.T) {
	// WHAT: A stop reply from the contact address a card pointed to is
	// counted as a new registry entry.
	s := pipelineService(t, liveConfig())
	stub(s, channels.WellKnownCheck, channels.Result{Success: true, Sent: true, Status: 204,
		Contact:  "https://helpdesk.acme.example/inbox",
		Response: []byte(`{"message":"do not contact this project"}`)})

	res, err := s.RunPipeline(context.Background(), PipelineInput{DryRun: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	if res.NewOptOuts != 1 {
		t.Fatalf("newOptOuts = %d", res.NewOptOuts)
	}
}

func TestRunPipeline_GitHubStopReplyKeepsRegistry(t *testing.T) {
	// WHAT: A stop reply on a GitHub issue adds nothing to the registry.
	// WHY: Registering github.com would silence every repository target.
	s := pipelineService(t, liveConfig())
	stub(s, channels.GitHubIssue, channels.Result{Success: true, Sent: true, Status: 204,
		Response: []byte(`{"message":"do not contact this project"}`)})

	res, err := s.RunPipeline(context.Background(), PipelineInput{DryRun: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	if res.NewOptOuts != 0 {
		t.Fatalf("newOptOuts = %d", res.NewOptOuts)
	}
}

func TestRunPipeline_GlobalLimitReturnsPartial(t *testing.T) {
	// WHAT: When the hourly cap stops the execute step, the pipeline still
	// reports what was sent along with the error.
	cfg := liveConfig()
	cfg.MaxPerHour = 1
	cfg.Concurrency = 1
	s := pipelineService(t, cfg)
	stub(s, channels.GitHubIssue, delivered)
	stub(s, channels.WellKnownCheck, delivered)
	seedTarget(t, s, "t1", "https://one.example.com", "https://one.example.com/api")

	res, err := s.RunPipeline(context.Background(), PipelineInput{DryRun: boolPtr(false)})
	if !errors.Is(err, ratelimit.ErrLimited) {
		t.Fatalf("err = %v", err)
	}
	if res == nil || res.Prepared != 2 || res.Sent != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunPipeline_Validation(t *testing.T) {
	s := testService(t, nil)
	_, err := s.RunPipeline(context.Background(), PipelineInput{Limit: intPtr(101)})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v", err)
	}
}

func TestQualify(t *testing.T) {
	s := testService(t, nil)
	seedTarget(t, s, "t1", "https://one.example.com", "https://one.example.com/api")
	seedTarget(t, s, "t2", "https://two.example.com", "")

	got, err := s.Qualify(context.Background(), QualifyInput{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Target.ID != "t1" || got[0].Score != 5 {
		t.Fatalf("candidates = %+v", got)
	}

	_, err = s.Qualify(context.Background(), QualifyInput{MinScore: intPtr(500)})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Fields[0].Field != "minScore" {
		t.Fatalf("got %v", err)
	}
}

func TestPreview_SkipsIneligible(t *testing.T) {
	s := testService(t, nil)
	seedTarget(t, s, "t1", "https://one.example.com", "https://one.example.com/api")
	seedTarget(t, s, "t2", "https://two.example.com", "")

	msgs, err := s.Preview(context.Background(), TargetsInput{AgentIDs: []string{"t1", "t2", "nope"}, Campaign: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].TargetID != "t1" {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].Subject != "AgentLink invitation via WELL_KNOWN_CHECK" {
		t.Errorf("subject = %q", msgs[0].Subject)
	}
	if !strings.HasPrefix(msgs[0].Body, "WELL_KNOWN_CHECK\n{") {
		t.Errorf("body = %q", msgs[0].Body)
	}
}

func TestPreview_SkipsOptedOut(t *testing.T) {
	// WHAT: Preview mints no invite for an opted-out source and renders the
	// first channel whose address is not opted out.
	s := testService(t, nil)
	ctx := context.Background()
	seedTarget(t, s, "t1", "https://gone.example.org", "https://gone.example.org/api")
	_, err := s.store.InsertTarget(ctx, &store.Target{
		ID:             "t2",
		Name:           "Agent t2",
		Description:    "An agent that answers support questions for developers",
		SourceURL:      "https://huggingface.co/spaces/acme/bot",
		SourcePlatform: "huggingface",
		EndpointURL:    "https://agent-host.example/api",
		WebsiteURL:     "https://bot.acme.example",
		SourceData:     sourcedata.Parse([]byte(`{}`)),
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{"gone.example.org", "agent-host.example"} {
		if _, err := s.CreateOptOut(ctx, OptOutInput{Domain: d}); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := s.Preview(ctx, TargetsInput{AgentIDs: []string{"t1", "t2"}, Campaign: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].TargetID != "t2" {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].ContactURL != "https://bot.acme.example"+channels.DiscoveryPath {
		t.Errorf("contact = %q", msgs[0].ContactURL)
	}
	if n, _ := s.store.CountInvites(ctx, "c"); n != 1 {
		t.Errorf("invites = %d, want 1", n)
	}
}

func TestExecute_GlobalLimitReturnsPartial(t *testing.T) {
	cfg := liveConfig()
	cfg.MaxPerHour = 1
	cfg.Concurrency = 1
	s := testService(t, cfg)
	stub(s, channels.WellKnownCheck, delivered)
	seedTarget(t, s, "t1", "https://one.example.com", "https://one.example.com/api")
	seedTarget(t, s, "t2", "https://two.example.com", "https://two.example.com/api")

	res, err := s.Execute(context.Background(), TargetsInput{AgentIDs: []string{"t1", "t2"}, Campaign: "c"})
	if !errors.Is(err, ratelimit.ErrLimited) {
		t.Fatalf("err = %v", err)
	}
	if res == nil || res.Summary.Sent != 1 || len(res.Results) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExecute_IgnoresDryRunDefault(t *testing.T) {
	cfg := &Config{Enabled: true}
	s := testService(t, cfg)
	wk := stub(s, channels.WellKnownCheck, delivered)
	seedTarget(t, s, "t1", "https://one.example.com", "https://one.example.com/api")

	res, err := s.Execute(context.Background(), TargetsInput{AgentIDs: []string{"t1"}, Campaign: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Sent != 1 || res.Summary.Delivered != 1 || wk.count() != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestImportCSV(t *testing.T) {
	s := testService(t, nil)
	csv := "name,description,skills,url,endpoint\n" +
		"Helper,Answers questions about billing,billing|support,https://helper.example.com,https://helper.example.com/api\n"

	res, err := s.ImportCSV(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 {
		t.Fatalf("result = %+v", res)
	}
	got, _ := s.Qualify(context.Background(), QualifyInput{})
	if len(got) != 1 || got[0].Target.SourcePlatform != "csv" {
		t.Fatalf("candidates = %+v", got)
	}
}
