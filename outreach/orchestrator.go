package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/outreach/outreach/internal/channels"
	"github.com/hazyhaar/outreach/outreach/internal/classify"
	"github.com/hazyhaar/outreach/outreach/internal/hostkey"
	"github.com/hazyhaar/outreach/outreach/internal/message"
	"github.com/hazyhaar/outreach/outreach/internal/ratelimit"
	"github.com/hazyhaar/outreach/outreach/internal/store"
	"github.com/hazyhaar/outreach/outreach/internal/strategy"
)

const (
	recentContactWindow = 7 * 24 * time.Hour
	retryDelay          = 24 * time.Hour
	maxRetryAttempts    = 3
	defaultBatchLimit   = 50
	maxBatchLimit       = 200

	inviteCreator = "agentlink-recruiter"
)

// StatusSkipped is the result status of a target nothing was sent to.
const StatusSkipped = "SKIPPED"

var retryPolicy = store.RetryPolicy{MaxAttempts: maxRetryAttempts, Delay: retryDelay}

// politenessStatuses are the attempt outcomes that count as a contact for
// the per-domain window.
var politenessStatuses = []store.AttemptStatus{
	store.StatusSent, store.StatusDelivered, store.StatusInterested,
	store.StatusRegistered, store.StatusDeclined,
}

// RecruitResult is the outcome of recruiting one target.
type RecruitResult struct {
	TargetID      string           `json:"importedAgentId"`
	TargetName    string           `json:"targetName"`
	TargetURL     string           `json:"targetUrl"`
	Status        string           `json:"status"`
	Method        channels.Channel `json:"method,omitempty"`
	ContactURL    string           `json:"contactUrl,omitempty"`
	InviteURL     string           `json:"inviteUrl,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	AttemptNumber int              `json:"attemptNumber,omitempty"`
}

// RecruitOptions tunes one RecruitTarget call. Zero values take defaults.
type RecruitOptions struct {
	Campaign string             `json:"campaign,omitempty"`
	DryRun   *bool              `json:"dryRun,omitempty"`
	Channels []channels.Channel `json:"contactMethods,omitempty"` // restricts the strategy when not empty
}

// RecruitTarget walks the contact strategy of target id in priority order
// and stops at the first channel that delivered. Outcomes that are not
// errors (opted out, nothing to try, dry run, every channel failed) are
// reported in the result. Errors are reserved for NOT_FOUND, the send
// limits, storage failures and ctx cancellation before any send.
func (s *Service) RecruitTarget(ctx context.Context, id string, opts RecruitOptions) (*RecruitResult, error) {
	ctx, span := s.tracer.Start(ctx, "outreach.RecruitTarget", trace.WithAttributes(attribute.String("target.id", id)))
	defer span.End()

	res, err := s.recruit(ctx, id, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("recruit.status", res.Status))
	return res, nil
}

func (s *Service) recruit(ctx context.Context, id string, opts RecruitOptions) (*RecruitResult, error) {
	t, err := s.store.GetTarget(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("outreach: get target: %w", err)
	}
	if t == nil {
		return nil, notFound("Imported agent not found")
	}

	res := &RecruitResult{TargetID: t.ID, TargetName: t.Name, TargetURL: t.SourceURL}
	if t.Status.Sticky() {
		return res.skip("Imported agent is no longer unclaimed"), nil
	}

	campaign := opts.Campaign
	if campaign == "" {
		campaign = defaultCampaign
	}
	dryRun := s.config.dryRun()
	if opts.DryRun != nil {
		dryRun = *opts.DryRun
	}

	opted, _, err := s.optouts.IsOptedOut(ctx, t.SourceURL)
	if err != nil {
		return nil, err
	}
	if opted {
		res.Status = string(store.StatusOptedOut)
		res.Reason = "Domain opted out from recruitment"
		return res, nil
	}

	entries := strategy.Resolve(t)
	if len(opts.Channels) > 0 {
		entries = slices.DeleteFunc(entries, func(e strategy.Entry) bool {
			return !slices.Contains(opts.Channels, e.Method)
		})
	}
	if len(entries) == 0 {
		return res.skip("No compatible contact strategy was found"), nil
	}

	if !dryRun && !s.config.Enabled {
		return res.skip("Recruitment is disabled (RECRUITMENT_ENABLED=false)"), nil
	}

	if !dryRun {
		unlock, err := s.locker.Lock(ctx, hostkey.PolitenessKey(t.SourceURL))
		if err != nil {
			return nil, err
		}
		defer unlock()
		if err := s.assertGlobalLimits(ctx); err != nil {
			return nil, err
		}
		if err := s.assertPoliteness(ctx, t.SourceURL); err != nil {
			return nil, err
		}
	}

	w := &walk{svc: s, target: t, entries: entries, campaign: campaign, dryRun: dryRun, result: res}
	if err := w.run(ctx); err != nil {
		return nil, err
	}
	return w.result, nil
}

func (r *RecruitResult) skip(reason string) *RecruitResult {
	r.Status = StatusSkipped
	r.Reason = reason
	return r
}

// assertGlobalLimits enforces the hourly and daily caps. Persisted attempts
// are the source of truth; the in-process limiter covers targets admitted
// concurrently whose attempts are not recorded yet.
func (s *Service) assertGlobalLimits(ctx context.Context) error {
	now := s.now()
	hour, err := s.store.CountAttemptsSince(ctx, now.Add(-time.Hour).UnixMilli(), store.StatusPending)
	if err != nil {
		return fmt.Errorf("outreach: count attempts: %w", err)
	}
	if hour >= s.config.MaxPerHour {
		return rateLimited("Hourly recruitment limit reached", ratelimit.ErrLimited)
	}
	day, err := s.store.CountAttemptsSince(ctx, now.Add(-24*time.Hour).UnixMilli(), store.StatusPending)
	if err != nil {
		return fmt.Errorf("outreach: count attempts: %w", err)
	}
	if day >= s.config.MaxPerDay {
		return rateLimited("Daily recruitment limit reached", ratelimit.ErrLimited)
	}
	if err := s.limiter.Assert("recruitment", "global:hour", s.config.MaxPerHour, time.Hour); err != nil {
		return rateLimited("Hourly recruitment limit reached", err)
	}
	if err := s.limiter.Assert("recruitment", "global:day", s.config.MaxPerDay, 24*time.Hour); err != nil {
		return rateLimited("Daily recruitment limit reached", err)
	}
	return nil
}

// assertPoliteness allows one contact per politeness key per window.
func (s *Service) assertPoliteness(ctx context.Context, targetURL string) error {
	key := hostkey.PolitenessKey(targetURL)
	since := s.now().Add(-recentContactWindow).UnixMilli()
	refs, err := s.store.RecentContacts(ctx, since, politenessStatuses...)
	if err != nil {
		return fmt.Errorf("outreach: recent contacts: %w", err)
	}
	for _, ref := range refs {
		if hostkey.PolitenessKey(ref.TargetURL) == key || hostkey.PolitenessKey(ref.ContactURL) == key {
			return rateLimited("Per-domain recruitment limit reached (1 contact per 7 days)", ErrDomainLimited)
		}
	}
	return nil
}

type walkState int

const (
	walkPending walkState = iota
	walkTrying
	walkSucceeded
	walkExhausted
)

func (st walkState) String() string {
	switch st {
	case walkPending:
		return "pending"
	case walkTrying:
		return "trying"
	case walkSucceeded:
		return "succeeded"
	default:
		return "exhausted"
	}
}

// walk tries the strategy entries of one target in order:
// pending -> trying(channel) -> succeeded | exhausted.
type walk struct {
	svc      *Service
	target   *store.Target
	entries  []strategy.Entry
	campaign string
	dryRun   bool

	state      walkState
	executed   int
	suppressed int
	stopped    bool
	optedOut   bool
	result     *RecruitResult
}

// run walks the entries. Cancelling ctx stops the walk between channels.
// Store writes run detached from ctx, so a walk that already sent something
// is recorded and reported; one stopped before any send returns ctx.Err().
func (w *walk) run(ctx context.Context) error {
	work := context.WithoutCancel(ctx)
	for _, e := range w.entries {
		if err := ctx.Err(); err != nil {
			if w.executed == 0 {
				return err
			}
			w.stopped = true
			break
		}
		w.state = walkTrying
		done, err := w.try(work, e)
		if err != nil {
			return err
		}
		if done {
			w.state = walkSucceeded
			break
		}
	}
	if w.state != walkSucceeded {
		w.state = walkExhausted
		switch {
		case w.executed == 0 && w.suppressed > 0:
			w.result.Status = string(store.StatusOptedOut)
			w.result.Reason = "Contact address opted out from recruitment"
		case w.stopped:
			w.result.Status = string(store.StatusFailed)
			w.result.Reason = "Recruitment stopped before every strategy was tried"
		default:
			w.result.Status = string(store.StatusFailed)
			w.result.Reason = "All recruitment strategies failed"
		}
	}
	if !w.dryRun {
		w.finish(work)
	}
	w.svc.logger.Debug("outreach: walk finished",
		"target", w.target.ID, "state", w.state.String(), "status", w.result.Status,
		"executed", w.executed, "suppressed", w.suppressed, "stopped", w.stopped)
	return nil
}

// try attempts one entry and reports whether the walk is over.
func (w *walk) try(ctx context.Context, e strategy.Entry) (bool, error) {
	s := w.svc
	if s.suppressed(ctx, e.URL) {
		w.suppressed++
		s.logger.Info("outreach: contact address opted out", "target", w.target.ID, "method", e.Method, "url", e.URL)
		return false, nil
	}
	existing, err := s.store.GetAttempt(ctx, w.target.SourceURL, string(e.Method))
	if err != nil {
		return false, fmt.Errorf("outreach: get attempt: %w", err)
	}
	if reason := s.skipReason(existing); reason != "" {
		s.logger.Debug("outreach: channel skipped", "target", w.target.ID, "method", e.Method, "reason", reason)
		return false, nil
	}

	token := s.newToken()
	if err := s.createInvite(ctx, w.target, token, w.campaign); err != nil {
		return false, err
	}
	inviteURL := s.renderer.InviteURL(token)

	if w.dryRun {
		w.result.Status = StatusSkipped
		w.result.Method = e.Method
		w.result.ContactURL = e.URL
		w.result.InviteURL = inviteURL
		w.result.Reason = "Dry-run mode; no invitation sent"
		return true, nil
	}

	payload := s.renderer.Payload(e.Method, message.Context{Target: w.target, InviteToken: token, Campaign: w.campaign})
	request, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("outreach: marshal payload: %w", err)
	}

	sendCtx, span := s.tracer.Start(ctx, "outreach.contact", trace.WithAttributes(
		attribute.String("channel", string(e.Method)),
		attribute.String("contact.url", e.URL),
	))
	r := s.channels.Execute(sendCtx, e.Method, e.URL, payload)
	span.SetAttributes(attribute.Int("http.status", r.Status), attribute.Bool("sent", r.Sent))
	if !r.Success {
		span.SetStatus(codes.Error, r.Error)
	}
	span.End()

	if r.Suppressed {
		w.suppressed++
		s.logger.Info("outreach: contact address opted out", "target", w.target.ID, "method", e.Method, "url", r.Contact)
		return false, nil
	}
	w.executed++

	replied := contactStatus(r)
	a := &store.Attempt{
		ID:              s.newAttempt(),
		TargetID:        w.target.ID,
		TargetName:      w.target.Name,
		TargetURL:       w.target.SourceURL,
		ContactURL:      e.URL,
		Channel:         string(e.Method),
		RequestPayload:  request,
		ResponsePayload: r.Response,
		ResponseStatus:  r.Status,
		Status:          replied,
		ErrorMessage:    firstNonEmpty(r.Error, r.Note),
		InviteToken:     token,
		Campaign:        w.campaign,
	}
	if err := s.store.RecordAttempt(ctx, a, retryPolicy); err != nil {
		return false, fmt.Errorf("outreach: record attempt: %w", err)
	}
	s.logger.Info("outreach: contact attempted",
		"target", w.target.ID, "method", e.Method, "url", e.URL,
		"status", a.Status, "http_status", r.Status, "attempt", a.AttemptNumber)

	if a.Status == store.StatusOptedOut {
		w.optedOut = true
	}
	if replied == store.StatusOptedOut {
		s.registerOptOut(ctx, w.target, firstNonEmpty(r.Contact, e.URL), firstNonEmpty(r.Error, "Opt-out signal detected from response"))
	}

	if !r.Delivered() && !w.optedOut {
		return false, nil
	}
	w.result.Status = string(a.Status)
	w.result.Method = e.Method
	w.result.ContactURL = e.URL
	w.result.InviteURL = inviteURL
	w.result.Reason = ""
	w.result.AttemptNumber = a.AttemptNumber
	return true, nil
}

// finish moves the catalog target to the status the walk ended in.
// Sticky target statuses are never overwritten by the store.
func (w *walk) finish(ctx context.Context) {
	var status store.TargetStatus
	switch {
	case w.optedOut:
		status = store.TargetOptedOut
	case w.state == walkSucceeded:
		status = targetStatusFor(store.AttemptStatus(w.result.Status))
	case w.executed > 0:
		status = store.TargetFailed
	default:
		return
	}
	if err := w.svc.store.SetTargetStatus(ctx, w.target.ID, status); err != nil {
		w.svc.logger.Warn("outreach: target status update failed", "target", w.target.ID, "error", err)
	}
}

func targetStatusFor(a store.AttemptStatus) store.TargetStatus {
	switch a {
	case store.StatusInterested, store.StatusRegistered:
		return store.TargetInterested
	case store.StatusDeclined:
		return store.TargetDeclined
	case store.StatusOptedOut:
		return store.TargetOptedOut
	default:
		return store.TargetContacted
	}
}

// registerOptOut adds the domain of the address that replied with an
// opt-out to the registry. Addresses on a shared host keyed per repository
// (github.com/<owner>/<repo>) are not registered: the target's sticky
// OPTED_OUT status already covers them and the whole host must stay
// reachable for other targets.
func (s *Service) registerOptOut(ctx context.Context, t *store.Target, address, reason string) {
	if hostkey.PolitenessKey(address) != hostkey.Domain(address) {
		s.logger.Info("outreach: opt-out kept on target only", "target", t.ID, "url", address)
		return
	}
	if _, _, err := s.optouts.Create(ctx, address, reason); err != nil {
		s.logger.Warn("outreach: opt-out registration failed", "target", t.ID, "url", address, "error", err)
	}
}

// suppressed reports whether address is on the opt-out registry. A failed
// lookup suppresses the address.
func (s *Service) suppressed(ctx context.Context, address string) bool {
	opted, _, err := s.optouts.IsOptedOut(ctx, address)
	if err != nil {
		s.logger.Warn("outreach: opt-out lookup failed", "url", address, "error", err)
		return true
	}
	return opted
}

// skipReason explains why an existing attempt blocks a new one on the same
// channel, or returns "".
func (s *Service) skipReason(existing *store.Attempt) string {
	if existing == nil {
		return ""
	}
	now := s.now()
	switch existing.Status {
	case store.StatusDeclined, store.StatusOptedOut, store.StatusRegistered, store.StatusInterested:
		return "Target already completed a terminal recruitment outcome"
	case store.StatusSent, store.StatusDelivered:
		if now.Sub(time.UnixMilli(existing.UpdatedAt)) < recentContactWindow {
			return "Target was contacted recently"
		}
	case store.StatusFailed:
		if existing.AttemptNumber >= maxRetryAttempts {
			return "Maximum retry attempts reached"
		}
	}
	if existing.NextRetryAt > 0 && existing.NextRetryAt > now.UnixMilli() {
		return "Retry is scheduled for later"
	}
	return ""
}

// contactStatus maps an executor result to the attempt status to record.
func contactStatus(r channels.Result) store.AttemptStatus {
	if !r.Success {
		return store.StatusFailed
	}
	if a := classify.Analyze(r.Response, r.Status); a.Intent != classify.Unknown {
		return store.AttemptStatus(a.Intent)
	}
	if r.Status >= 200 && r.Status < 300 {
		return store.StatusDelivered
	}
	return store.StatusSent
}

func (s *Service) createInvite(ctx context.Context, t *store.Target, token, campaign string) error {
	data, err := json.Marshal(map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"skills":      t.Skills,
		"sourceUrl":   t.SourceURL,
		"endpointUrl": t.EndpointURL,
		"websiteUrl":  t.WebsiteURL,
	})
	if err != nil {
		return fmt.Errorf("outreach: marshal invite data: %w", err)
	}
	err = s.store.InsertInvite(ctx, &store.Invite{
		Token:     token,
		Campaign:  campaign,
		TargetID:  t.ID,
		AgentName: t.Name,
		AgentData: data,
		MaxUses:   1,
		CreatedBy: inviteCreator,
	})
	if err != nil {
		return fmt.Errorf("outreach: create invite: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// BatchResult aggregates a RunBatch. NotStarted counts targets left out
// because the run was stopped.
type BatchResult struct {
	Total      int             `json:"total"`
	Sent       int             `json:"sent"`
	Delivered  int             `json:"delivered"`
	Interested int             `json:"interested"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	OptedOut   int             `json:"optedOut"`
	NotStarted int             `json:"notStarted"`
	Results    []RecruitResult `json:"results"`
}

// RunBatch recruits eligible targets, newest import first, with up to
// Config.Concurrency targets in flight. Targets sharing a politeness key
// never run at the same time. A per-domain limit or a failing target is
// reported in that target's result and the batch goes on; hitting a global
// limit stops the batch and returns the partial result with the error.
// Cancelling ctx stops the batch between targets.
func (s *Service) RunBatch(ctx context.Context, in BatchInput) (*BatchResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit == 0 {
		limit = defaultBatchLimit
	}
	limit = min(max(limit, 1), maxBatchLimit)
	dryRun := s.config.dryRun()
	if in.DryRun != nil {
		dryRun = *in.DryRun
	}

	targets, err := s.store.ListCandidates(ctx, store.CandidateFilter{
		Statuses:       store.EligibleStatuses,
		SourcePlatform: in.Source,
		IDs:            in.TargetIDs,
		Limit:          limit,
	})
	if err != nil {
		return nil, fmt.Errorf("outreach: list candidates: %w", err)
	}

	opts := RecruitOptions{Campaign: in.Campaign, DryRun: &dryRun, Channels: in.Channels}
	results := make([]*RecruitResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, t := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r, err := s.RecruitTarget(gctx, t.ID, opts)
			switch {
			case err == nil:
				results[i] = r
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			case isGlobalLimit(err):
				return err
			default:
				results[i] = errorResult(t, err)
			}
			if !dryRun && s.config.Pacing > 0 {
				s.sleep(gctx, s.config.Pacing)
			}
			return nil
		})
	}
	err = g.Wait()

	out := &BatchResult{Results: []RecruitResult{}}
	for _, r := range results {
		if r == nil {
			out.NotStarted++
			continue
		}
		out.add(*r)
	}
	s.logger.Info("outreach: batch finished",
		"total", out.Total, "sent", out.Sent, "failed", out.Failed, "skipped", out.Skipped,
		"opted_out", out.OptedOut, "not_started", out.NotStarted, "dry_run", dryRun)
	if err != nil {
		return out, err
	}
	return out, nil
}

func (b *BatchResult) add(r RecruitResult) {
	b.Total++
	b.Results = append(b.Results, r)
	switch r.Status {
	case StatusSkipped:
		b.Skipped++
	case string(store.StatusFailed):
		b.Failed++
	case string(store.StatusOptedOut):
		b.OptedOut++
	default:
		b.Sent++
		if r.Status == string(store.StatusDelivered) || r.Status == string(store.StatusRegistered) {
			b.Delivered++
		}
		if r.Status == string(store.StatusInterested) || r.Status == string(store.StatusRegistered) {
			b.Interested++
		}
	}
}

func isGlobalLimit(err error) bool {
	return errors.Is(err, ratelimit.ErrLimited) && !errors.Is(err, ErrDomainLimited)
}

// errorResult reports a per-target failure inside a batch. A per-domain
// limit makes the target skipped, anything else failed.
func errorResult(t *store.Target, err error) *RecruitResult {
	r := &RecruitResult{TargetID: t.ID, TargetName: t.Name, TargetURL: t.SourceURL, Reason: err.Error()}
	if errors.Is(err, ErrDomainLimited) {
		r.Status = StatusSkipped
		return r
	}
	r.Status = string(store.StatusFailed)
	return r
}
