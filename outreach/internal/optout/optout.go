// Package optout is the durable do-not-contact registry.
//
// Entries are normalized domains. A target is suppressed when any of
// hostkey.OptOutCandidates for its address is registered.
package optout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/outreach/idgen"
	"github.com/hazyhaar/outreach/outreach/internal/hostkey"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

// ErrInvalidDomain is returned when an input does not normalize to a usable
// domain.
var ErrInvalidDomain = errors.New("optout: invalid domain")

// Registry wraps the opt-out table.
type Registry struct {
	store  *store.Store
	logger *slog.Logger
	newID  idgen.Generator
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option { return func(r *Registry) { r.logger = l } }

// WithIDGenerator overrides the opt-out row ID generator.
func WithIDGenerator(g idgen.Generator) Option { return func(r *Registry) { r.newID = g } }

// New creates a Registry over s.
func New(s *store.Store, opts ...Option) *Registry {
	r := &Registry{store: s, logger: slog.Default(), newID: idgen.OptOut}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CheckResult is the answer of an exact-domain check.
type CheckResult struct {
	Domain   string `json:"domain"`
	OptedOut bool   `json:"optedOut"`
}

// Normalize reduces a URL or bare domain to the registry key.
func Normalize(input string) (string, error) {
	d := hostkey.Domain(input)
	if len(d) < 2 || len(d) > 255 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, input)
	}
	return d, nil
}

// Create registers domain (a URL is accepted too) and moves every attempt
// against it to OPTED_OUT. Re-submitting an existing domain only updates the
// reason, and only when one is given. It returns the entry and the number of
// attempts rewritten.
func (r *Registry) Create(ctx context.Context, domain, reason string) (*store.OptOut, int64, error) {
	d, err := Normalize(domain)
	if err != nil {
		return nil, 0, err
	}
	entry, rewritten, err := r.store.UpsertOptOut(ctx, &store.OptOut{
		ID:     r.newID(),
		Domain: d,
		Reason: reason,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("optout: create %s: %w", d, err)
	}
	r.logger.Info("optout: domain suppressed", "domain", d, "attempts_rewritten", rewritten)
	return entry, rewritten, nil
}

// IsOptedOut reports whether addressOrDomain is suppressed, and by which
// registry entry.
func (r *Registry) IsOptedOut(ctx context.Context, addressOrDomain string) (bool, string, error) {
	candidates := hostkey.OptOutCandidates(addressOrDomain)
	if len(candidates) == 1 && candidates[0] == "" {
		return false, "", nil
	}
	match, ok, err := r.store.FindOptOut(ctx, candidates)
	if err != nil {
		return false, "", fmt.Errorf("optout: lookup: %w", err)
	}
	return ok, match, nil
}

// Check reports whether exactly the normalized domain is registered.
func (r *Registry) Check(ctx context.Context, domain string) (CheckResult, error) {
	d, err := Normalize(domain)
	if err != nil {
		return CheckResult{}, err
	}
	entry, err := r.store.GetOptOut(ctx, d)
	if err != nil {
		return CheckResult{}, fmt.Errorf("optout: check: %w", err)
	}
	return CheckResult{Domain: d, OptedOut: entry != nil}, nil
}

// Remove hard-deletes domain and reports whether it was registered.
// Attempts rewritten when the entry was created stay OPTED_OUT.
func (r *Registry) Remove(ctx context.Context, domain string) (bool, error) {
	d, err := Normalize(domain)
	if err != nil {
		return false, err
	}
	removed, err := r.store.DeleteOptOut(ctx, d)
	if err != nil {
		return false, fmt.Errorf("optout: remove: %w", err)
	}
	if removed {
		r.logger.Info("optout: domain removed", "domain", d)
	}
	return removed, nil
}

// List returns every entry, newest first.
func (r *Registry) List(ctx context.Context) ([]*store.OptOut, error) {
	return r.store.ListOptOuts(ctx)
}

// Count returns the number of registered domains.
func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.store.CountOptOuts(ctx)
}
