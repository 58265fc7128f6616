package discover

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/outreach/idgen"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

// Platform names stored on targets.
const (
	PlatformGitHub      = "github"
	PlatformHuggingFace = "huggingface"
	PlatformCSV         = "csv"
)

// ImportResult counts what one source contributed.
type ImportResult struct {
	Imported       int      `json:"imported"`
	Skipped        int      `json:"skipped"`
	Errors         int      `json:"errors"`
	SkippedDetails []string `json:"skippedDetails,omitempty"`
	ErrorDetails   []string `json:"errorDetails,omitempty"`
}

// Importer writes normalized source records to the catalog.
type Importer struct {
	store   *store.Store
	fetcher *Fetcher
	logger  *slog.Logger
	newID   idgen.Generator
}

// NewImporter creates an Importer. A nil logger means slog.Default().
func NewImporter(s *store.Store, f *Fetcher, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: s, fetcher: f, logger: logger, newID: idgen.Target}
}

// Import stores records as UNCLAIMED targets of platform. Records without
// a source URL, or whose source URL is already known, are skipped.
func (im *Importer) Import(ctx context.Context, platform string, records []Raw) ImportResult {
	var res ImportResult
	for _, r := range records {
		if r.SourceURL == "" {
			res.Skipped++
			name := r.Name
			if name == "" {
				name = "unknown"
			}
			res.SkippedDetails = append(res.SkippedDetails, name+": missing source URL")
			continue
		}
		n := Normalize(r)
		created, err := im.store.InsertTarget(ctx, &store.Target{
			ID:             im.newID(),
			Name:           n.Name,
			Description:    n.Description,
			Skills:         n.Skills,
			Category:       n.Category,
			SourceURL:      r.SourceURL,
			SourcePlatform: platform,
			EndpointURL:    n.EndpointURL,
			WebsiteURL:     n.WebsiteURL,
			SourceData:     r.SourceData(),
			Status:         store.TargetUnclaimed,
		})
		switch {
		case err != nil:
			res.Errors++
			res.ErrorDetails = append(res.ErrorDetails, fmt.Sprintf("%s: %v", r.SourceURL, err))
		case !created:
			res.Skipped++
			res.SkippedDetails = append(res.SkippedDetails, r.SourceURL+": duplicate by source URL")
		default:
			res.Imported++
		}
	}
	im.logger.Info("discover: import finished", "platform", platform,
		"imported", res.Imported, "skipped", res.Skipped, "errors", res.Errors)
	return res
}

// Options tunes a discovery run.
type Options struct {
	HuggingFace HuggingFaceOptions
	GitHub      GitHubOptions
}

// DefaultOptions are the pipeline's discovery settings.
var DefaultOptions = Options{
	HuggingFace: HuggingFaceOptions{Limit: 100, MinLikes: 2},
	GitHub:      GitHubOptions{Limit: 60, MinStars: 5},
}

// Result is the outcome of a discovery run.
type Result struct {
	NewAgents int                     `json:"newAgents"`
	Sources   map[string]ImportResult `json:"sources"`
}

// Discover fetches Hugging Face and GitHub concurrently and imports both.
// A source that cannot be fetched is reported in its ImportResult; the run
// fails only when both sources fail.
func (im *Importer) Discover(ctx context.Context, opts Options) (*Result, error) {
	var (
		mu      sync.Mutex
		out     = &Result{Sources: map[string]ImportResult{}}
		failed  int
		lastErr error
	)
	run := func(platform string, fetch func(context.Context) ([]Raw, error)) func() error {
		return func() error {
			records, err := fetch(ctx)
			var res ImportResult
			if err != nil {
				im.logger.Warn("discover: source failed", "platform", platform, "error", err)
				res = ImportResult{Errors: 1, ErrorDetails: []string{err.Error()}}
			} else {
				res = im.Import(ctx, platform, records)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				lastErr = err
			}
			out.Sources[platform] = res
			out.NewAgents += res.Imported
			return nil
		}
	}

	var g errgroup.Group
	g.Go(run(PlatformHuggingFace, func(ctx context.Context) ([]Raw, error) {
		return im.fetcher.HuggingFace(ctx, opts.HuggingFace)
	}))
	g.Go(run(PlatformGitHub, func(ctx context.Context) ([]Raw, error) {
		return im.fetcher.GitHub(ctx, opts.GitHub)
	}))
	g.Wait()

	if failed == 2 {
		return out, fmt.Errorf("discover: all sources failed: %w", lastErr)
	}
	return out, nil
}
