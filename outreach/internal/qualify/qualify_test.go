package qualify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/outreach/dbopen"
	"github.com/hazyhaar/outreach/outreach/internal/optout"
	"github.com/hazyhaar/outreach/outreach/internal/sourcedata"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestScore(t *testing.T) {
	cases := []struct {
		name   string
		target store.Target
		want   int
	}{
		{
			name: "strong github repo",
			target: store.Target{
				Description: strings.Repeat("x", 120),
				Skills:      []string{"chat"},
				EndpointURL: "https://a.dev",
				SourceData: sourcedata.Parse([]byte(`{"stargazers_count":80,"documentation_url":"https://docs",
					"updated_at":"2026-05-01T00:00:00Z"}`)),
			},
			want: 10 + 5 + 3 + 2 + 5,
		},
		{
			name:   "empty",
			target: store.Target{},
			want:   -20,
		},
		{
			name: "stale and few stars",
			target: store.Target{
				Description: "A decent description",
				Skills:      []string{"x"},
				SourceData:  sourcedata.Parse([]byte(`{"stars":10,"updatedAt":"2020-01-01T00:00:00Z"}`)),
			},
			want: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reasons := Score(&tc.target, now)
			if got != tc.want {
				t.Fatalf("score = %d, want %d (%v)", got, tc.want, reasons)
			}
		})
	}
}

func TestRun_FiltersAndRanks(t *testing.T) {
	// WHAT: Uncontactable, opted-out and recently contacted targets are
	// dropped; the rest come back best score first.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	s := store.NewStore(db)
	reg := optout.New(s)
	ctx := context.Background()

	good := "A long enough description for scoring"
	insert := func(id, src, platform, endpoint string, importedAt int64, data string) {
		t.Helper()
		if _, err := s.InsertTarget(ctx, &store.Target{
			ID: id, Name: id, Description: good, Skills: []string{"chat"}, SourceURL: src,
			SourcePlatform: platform, EndpointURL: endpoint, ImportedAt: importedAt,
			SourceData: sourcedata.Parse([]byte(data)),
		}); err != nil {
			t.Fatal(err)
		}
	}
	insert("plain", "https://plain.dev", "csv", "https://plain.dev/api", 1, `{}`)
	insert("starred", "https://github.com/a/starred", "github", "", 2, `{"stars":500}`)
	insert("nocontact", "https://huggingface.co/spaces/a/b", "huggingface", "", 3, `{}`)
	insert("optedout", "https://blocked.dev", "csv", "https://blocked.dev/api", 4, `{}`)
	insert("recent", "https://recent.dev", "csv", "https://recent.dev/api", 5, `{}`)
	insert("newer", "https://newer.dev", "csv", "https://newer.dev/api", 6, `{}`)

	if _, _, err := reg.Create(ctx, "blocked.dev", ""); err != nil {
		t.Fatal(err)
	}
	s.RecordAttempt(ctx, &store.Attempt{
		ID: "a1", TargetID: "recent", TargetName: "recent", TargetURL: "https://recent.dev",
		ContactURL: "https://recent.dev/api", Channel: "REST_ENDPOINT", Status: store.StatusSent, Campaign: "auto",
	}, store.RetryPolicy{MaxAttempts: 3, Delay: time.Hour})

	q := New(s, reg)
	got, err := q.Run(ctx, Options{MinScore: 1})
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, c := range got {
		ids = append(ids, c.Target.ID)
		if len(c.Strategies) == 0 {
			t.Errorf("%s has no strategy", c.Target.ID)
		}
	}
	want := []string{"starred", "newer", "plain"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", ids, want)
	}

	got, _ = q.Run(ctx, Options{Limit: 1, MinScore: 1})
	if len(got) != 1 || got[0].Target.ID != "starred" {
		t.Fatalf("limit 1 = %+v", got)
	}
}
