package outreach

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/hazyhaar/outreach/outreach/internal/channels"
	"github.com/hazyhaar/outreach/outreach/internal/discover"
	"github.com/hazyhaar/outreach/outreach/internal/message"
	"github.com/hazyhaar/outreach/outreach/internal/qualify"
	"github.com/hazyhaar/outreach/outreach/internal/store"
	"github.com/hazyhaar/outreach/outreach/internal/strategy"
)

// Discover imports new agents from Hugging Face and GitHub.
func (s *Service) Discover(ctx context.Context) (*discover.Result, error) {
	return s.importer.Discover(ctx, discover.DefaultOptions)
}

// ImportCSV imports agents from a CSV export.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (discover.ImportResult, error) {
	records, err := discover.ParseCSV(r)
	if err != nil {
		return discover.ImportResult{}, &ValidationError{Fields: []FieldError{{Field: "file", Message: err.Error()}}}
	}
	return s.importer.Import(ctx, discover.PlatformCSV, records), nil
}

// Qualify ranks the targets worth contacting.
func (s *Service) Qualify(ctx context.Context, in QualifyInput) ([]qualify.Candidate, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	opts := qualify.Options{Limit: 50, MinScore: 1}
	if in.Limit != nil {
		opts.Limit = *in.Limit
	}
	if in.MinScore != nil {
		opts.MinScore = *in.MinScore
	}
	return s.qualifier.Run(ctx, opts)
}

// PreviewMessage is the invitation a target would receive on its first
// strategy channel.
type PreviewMessage struct {
	TargetID    string           `json:"importedAgentId"`
	AgentName   string           `json:"agentName"`
	Source      string           `json:"source"`
	Method      channels.Channel `json:"method"`
	ContactURL  string           `json:"contactUrl"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	InviteURL   string           `json:"inviteUrl"`
	InviteToken string           `json:"inviteToken"`
}

// Preview renders the first invitation of each listed target. Each preview
// issues a real invite token. Targets that are no longer eligible, whose
// source is opted out or that have no strategy entry left once opted out
// contact addresses are dropped, are left out.
func (s *Service) Preview(ctx context.Context, in TargetsInput) ([]PreviewMessage, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	targets, err := s.store.ListCandidates(ctx, store.CandidateFilter{
		Statuses: store.EligibleStatuses,
		IDs:      in.AgentIDs,
		Limit:    len(in.AgentIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("outreach: list candidates: %w", err)
	}

	out := []PreviewMessage{}
	for _, t := range targets {
		if s.suppressed(ctx, t.SourceURL) {
			continue
		}
		entries := strategy.Resolve(t)
		i := slices.IndexFunc(entries, func(e strategy.Entry) bool {
			return !s.suppressed(ctx, e.URL)
		})
		if i < 0 {
			continue
		}
		first := entries[i]
		token := s.newToken()
		if err := s.createInvite(ctx, t, token, in.Campaign); err != nil {
			return nil, err
		}
		r := s.renderer.Render(first.Method, message.Context{Target: t, InviteToken: token, Campaign: in.Campaign})
		out = append(out, PreviewMessage{
			TargetID:    t.ID,
			AgentName:   t.Name,
			Source:      t.SourcePlatform,
			Method:      first.Method,
			ContactURL:  first.URL,
			Subject:     r.Subject,
			Body:        r.Body,
			InviteURL:   r.InviteLink,
			InviteToken: token,
		})
	}
	return out, nil
}

// ExecuteSummary is the counter part of an ExecuteResult.
type ExecuteSummary struct {
	Total     int `json:"total"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	OptedOut  int `json:"optedOut"`
}

// ExecuteResult is returned by Execute.
type ExecuteResult struct {
	Results []RecruitResult `json:"results"`
	Summary ExecuteSummary  `json:"summary"`
}

// Execute recruits the listed targets for real, ignoring the configured
// dry-run default.
func (s *Service) Execute(ctx context.Context, in TargetsInput) (*ExecuteResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	live := false
	b, err := s.RunBatch(ctx, BatchInput{
		TargetIDs: in.AgentIDs,
		Campaign:  in.Campaign,
		DryRun:    &live,
		Limit:     len(in.AgentIDs),
	})
	if b == nil {
		return nil, err
	}
	return &ExecuteResult{
		Results: b.Results,
		Summary: ExecuteSummary{
			Total:     b.Total,
			Sent:      b.Sent,
			Delivered: b.Delivered,
			Failed:    b.Failed,
			Skipped:   b.Skipped,
			OptedOut:  b.OptedOut,
		},
	}, err
}

// MethodCounts is one byMethod entry of a pipeline run.
type MethodCounts struct {
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
}

// PipelineResult summarizes RunPipeline.
type PipelineResult struct {
	Discovered int                               `json:"discovered"`
	Qualified  int                               `json:"qualified"`
	Prepared   int                               `json:"prepared"`
	Sent       int                               `json:"sent"`
	Delivered  int                               `json:"delivered"`
	Failed     int                               `json:"failed"`
	NewOptOuts int                               `json:"newOptOuts"`
	ByMethod   map[channels.Channel]MethodCounts `json:"byMethod"`
	Preview    []PreviewMessage                  `json:"preview"`
}

// RunPipeline chains discovery, qualification and preview, then executes
// the previewed targets unless the run is a dry run. When a global send
// limit stops the execute step, the partial result is returned with the
// error.
func (s *Service) RunPipeline(ctx context.Context, in PipelineInput) (*PipelineResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	limit := 20
	if in.Limit != nil {
		limit = *in.Limit
	}
	dryRun := in.DryRun == nil || *in.DryRun

	before, err := s.optouts.Count(ctx)
	if err != nil {
		return nil, err
	}
	disc, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}
	minScore := 1
	candidates, err := s.Qualify(ctx, QualifyInput{Limit: &limit, MinScore: &minScore})
	if err != nil {
		return nil, err
	}

	out := &PipelineResult{
		Discovered: disc.NewAgents,
		Qualified:  len(candidates),
		ByMethod:   map[channels.Channel]MethodCounts{},
		Preview:    []PreviewMessage{},
	}
	if len(candidates) > 0 {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.Target.ID
		}
		out.Preview, err = s.Preview(ctx, TargetsInput{AgentIDs: ids, Campaign: in.Campaign})
		if err != nil {
			return nil, err
		}
	}
	out.Prepared = len(out.Preview)

	var execErr error
	if !dryRun && len(out.Preview) > 0 {
		ids := make([]string, len(out.Preview))
		for i, p := range out.Preview {
			ids[i] = p.TargetID
		}
		exec, err := s.Execute(ctx, TargetsInput{AgentIDs: ids, Campaign: in.Campaign})
		if exec == nil {
			return nil, err
		}
		// A global cap stops the run part way; what was sent is still reported.
		execErr = err
		out.Sent = exec.Summary.Sent
		out.Delivered = exec.Summary.Delivered
		out.Failed = exec.Summary.Failed
		for _, r := range exec.Results {
			if r.Method == "" {
				continue
			}
			m := out.ByMethod[r.Method]
			if r.Status != StatusSkipped {
				m.Sent++
			}
			switch store.AttemptStatus(r.Status) {
			case store.StatusDelivered, store.StatusInterested, store.StatusRegistered:
				m.Delivered++
			}
			out.ByMethod[r.Method] = m
		}
	}

	after, err := s.optouts.Count(ctx)
	if err != nil {
		return nil, err
	}
	out.NewOptOuts = max(0, after-before)
	s.logger.Info("outreach: pipeline finished",
		"discovered", out.Discovered, "qualified", out.Qualified, "prepared", out.Prepared,
		"sent", out.Sent, "dry_run", dryRun, "stopped", execErr != nil)
	return out, execErr
}
