// Package outreach is the recruitment service: it discovers agents, ranks
// them, and walks each one's contact strategy while honoring opt-outs and
// send limits.
package outreach

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hazyhaar/outreach/idgen"
	"github.com/hazyhaar/outreach/outreach/internal/channels"
	"github.com/hazyhaar/outreach/outreach/internal/discover"
	"github.com/hazyhaar/outreach/outreach/internal/message"
	"github.com/hazyhaar/outreach/outreach/internal/optout"
	"github.com/hazyhaar/outreach/outreach/internal/politeness"
	"github.com/hazyhaar/outreach/outreach/internal/qualify"
	"github.com/hazyhaar/outreach/outreach/internal/ratelimit"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

const tracerName = "github.com/hazyhaar/outreach/outreach"

// Service is the recruitment orchestrator.
type Service struct {
	store     *store.Store
	optouts   *optout.Registry
	channels  *channels.Registry
	renderer  *message.Renderer
	limiter   *ratelimit.Limiter
	locker    *politeness.Locker
	importer  *discover.Importer
	qualifier *qualify.Qualifier
	config    *Config
	logger    *slog.Logger
	tracer    trace.Tracer

	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
	newToken   idgen.Generator
	newAttempt idgen.Generator

	// set by options, consumed by New
	channelConfig channels.Config
	fetcherConfig discover.FetcherConfig
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithLimiter shares an existing limiter, e.g. with the HTTP layer.
func WithLimiter(l *ratelimit.Limiter) Option { return func(s *Service) { s.limiter = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithChannelConfig overrides the HTTP settings of the channel executors.
func WithChannelConfig(cfg channels.Config) Option {
	return func(s *Service) { s.channelConfig = cfg }
}

// WithFetcherConfig overrides the discovery source settings. API URLs and
// the GitHub token left empty are taken from Config.
func WithFetcherConfig(cfg discover.FetcherConfig) Option {
	return func(s *Service) { s.fetcherConfig = cfg }
}

// ApplySchema creates the outreach tables in db. It is idempotent.
func ApplySchema(db *sql.DB) error { return store.ApplySchema(db) }

// New creates a Service over db. The schema must already be applied.
func New(db *sql.DB, cfg *Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()

	s := &Service{
		store:      store.NewStore(db),
		config:     cfg,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		sleep:      sleepCtx,
		newToken:   idgen.Invite,
		newAttempt: idgen.Attempt,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(ratelimit.WithClock(s.now))
	}

	s.optouts = optout.New(s.store, optout.WithLogger(s.logger))
	s.channels = channels.NewRegistry(channels.NewClient(s.channelConfig),
		channels.GitHubConfig{Token: cfg.GitHub.Token, APIURL: cfg.GitHub.APIURL},
		channels.EmailConfig{APIKey: cfg.Email.APIKey, From: cfg.Email.From, APIURL: cfg.Email.APIURL},
		channels.WithSuppression(s.suppressed),
	)
	s.renderer = message.NewRenderer(cfg.BaseURL)
	s.locker = politeness.New()

	fc := s.fetcherConfig
	if fc.GitHubAPIURL == "" {
		fc.GitHubAPIURL = cfg.GitHub.APIURL
	}
	if fc.GitHubToken == "" {
		fc.GitHubToken = cfg.GitHub.Token
	}
	if fc.HuggingFaceAPIURL == "" {
		fc.HuggingFaceAPIURL = cfg.HuggingFace.APIURL
	}
	s.importer = discover.NewImporter(s.store, discover.NewFetcher(fc), s.logger)
	s.qualifier = qualify.New(s.store, s.optouts)
	return s
}

// Limiter returns the limiter guarding sends and public opt-outs.
func (s *Service) Limiter() *ratelimit.Limiter { return s.limiter }

// Renderer returns the invitation renderer.
func (s *Service) Renderer() *message.Renderer { return s.renderer }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
