// Package qualify scores catalog targets and picks the ones worth
// contacting.
package qualify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/outreach/outreach/internal/optout"
	"github.com/hazyhaar/outreach/outreach/internal/store"
	"github.com/hazyhaar/outreach/outreach/internal/strategy"
)

const (
	// RecentWindow is how long a contacted target stays out of qualification.
	RecentWindow = 7 * 24 * time.Hour
	freshWindow  = 90 * 24 * time.Hour
)

// recentStatuses make a target "contacted recently".
var recentStatuses = []store.AttemptStatus{
	store.StatusSent, store.StatusDelivered, store.StatusInterested,
	store.StatusRegistered, store.StatusDeclined, store.StatusOptedOut,
}

// Candidate is a qualified target with its score breakdown.
type Candidate struct {
	Target     *store.Target    `json:"agent"`
	Score      int              `json:"score"`
	Reasons    []string         `json:"reasons"`
	Strategies []strategy.Entry `json:"strategies"`
}

// Score rates t at time now. Reasons explain every contribution.
func Score(t *store.Target, now time.Time) (int, []string) {
	score := 0
	var reasons []string
	add := func(n int, reason string) {
		score += n
		reasons = append(reasons, reason)
	}

	if stars, ok := t.SourceData.FirstNumber("stargazers_count", "stars"); ok && stars > 50 {
		add(10, "GitHub stars > 50 (+10)")
	}
	if t.EndpointURL != "" {
		add(5, "Has endpoint URL (+5)")
	}
	if doc, ok := t.SourceData.FirstString("documentationUrl", "documentation_url"); ok && doc != "" {
		add(3, "Has documentation URL (+3)")
	}
	if len(t.Description) > 100 {
		add(2, "Description length > 100 (+2)")
	}
	if updated, ok := updatedAt(t); ok && updated.After(now.Add(-freshWindow)) {
		add(5, "Updated in last 3 months (+5)")
	}
	if len(strings.TrimSpace(t.Description)) < 10 {
		add(-10, "Low-quality description (-10)")
	}
	if len(t.Skills) == 0 {
		add(-10, "No identifiable skills (-10)")
	}
	return score, reasons
}

func updatedAt(t *store.Target) (time.Time, bool) {
	if ts, ok := t.SourceData.Time("updated_at"); ok {
		return ts, true
	}
	return t.SourceData.Time("updatedAt")
}

// Contactable reports whether some channel could reach t at all.
func Contactable(t *store.Target) bool {
	return t.EndpointURL != "" || t.SourcePlatform == "github"
}

// Options bounds a qualification run.
type Options struct {
	Limit    int // 1..300, default 50
	MinScore int
}

// Qualifier filters and ranks targets that are still open to recruitment.
type Qualifier struct {
	store    *store.Store
	registry *optout.Registry
	now      func() time.Time
}

// New creates a Qualifier.
func New(s *store.Store, r *optout.Registry) *Qualifier {
	return &Qualifier{store: s, registry: r, now: time.Now}
}

// Run returns up to opts.Limit candidates, best score first, newer import
// first on ties. It looks at the newest max(4*limit, 100) eligible targets
// and drops those that cannot be contacted, are opted out, were contacted
// within RecentWindow, have no strategy, or score below opts.MinScore.
func (q *Qualifier) Run(ctx context.Context, opts Options) ([]Candidate, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = 50
	}
	limit = min(max(limit, 1), 300)

	targets, err := q.store.ListCandidates(ctx, store.CandidateFilter{
		Statuses: store.EligibleStatuses,
		Limit:    max(limit*4, 100),
	})
	if err != nil {
		return nil, fmt.Errorf("qualify: list: %w", err)
	}

	now := q.now()
	since := now.Add(-RecentWindow).UnixMilli()
	out := []Candidate{}
	for _, t := range targets {
		if !Contactable(t) {
			continue
		}
		opted, _, err := q.registry.IsOptedOut(ctx, t.SourceURL)
		if err != nil {
			return nil, err
		}
		if opted {
			continue
		}
		recent, err := q.store.ContactedSince(ctx, t.SourceURL, since, recentStatuses...)
		if err != nil {
			return nil, fmt.Errorf("qualify: recent contact: %w", err)
		}
		if recent {
			continue
		}
		entries := strategy.Resolve(t)
		if len(entries) == 0 {
			continue
		}
		score, reasons := Score(t, now)
		if score < opts.MinScore {
			continue
		}
		out = append(out, Candidate{Target: t, Score: score, Reasons: reasons, Strategies: entries})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Target.ImportedAt > out[j].Target.ImportedAt
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
