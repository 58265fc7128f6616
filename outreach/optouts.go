package outreach

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/outreach/outreach/internal/optout"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

const (
	publicOptOutMax    = 10
	publicOptOutWindow = time.Minute
)

// OptOutConfirmation is returned to whoever asked not to be contacted.
type OptOutConfirmation struct {
	Domain  string `json:"domain"`
	Message string `json:"message"`
}

// CreateOptOut suppresses a domain on behalf of an admin.
func (s *Service) CreateOptOut(ctx context.Context, in OptOutInput) (*store.OptOut, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	entry, _, err := s.optouts.Create(ctx, in.Domain, in.Reason)
	if err != nil {
		return nil, domainError(err)
	}
	return entry, nil
}

// PublicOptOut suppresses a domain on behalf of anyone, limited per client.
func (s *Service) PublicOptOut(ctx context.Context, client string, in OptOutInput) (*OptOutConfirmation, error) {
	if err := s.limiter.Assert("optout", client, publicOptOutMax, publicOptOutWindow); err != nil {
		return nil, err
	}
	entry, err := s.CreateOptOut(ctx, in)
	if err != nil {
		return nil, err
	}
	return &OptOutConfirmation{
		Domain:  entry.Domain,
		Message: "Domain opted out. You will not be contacted again.",
	}, nil
}

// CheckOptOut reports whether exactly domain is registered.
func (s *Service) CheckOptOut(ctx context.Context, domain string) (optout.CheckResult, error) {
	var ve ValidationError
	checkDomain(&ve, domain)
	if err := ve.orNil(); err != nil {
		return optout.CheckResult{}, err
	}
	res, err := s.optouts.Check(ctx, domain)
	if err != nil {
		return optout.CheckResult{}, domainError(err)
	}
	return res, nil
}

// RemoveOptOut deletes domain from the registry.
func (s *Service) RemoveOptOut(ctx context.Context, domain string) error {
	var ve ValidationError
	checkDomain(&ve, domain)
	if err := ve.orNil(); err != nil {
		return err
	}
	removed, err := s.optouts.Remove(ctx, domain)
	if err != nil {
		return domainError(err)
	}
	if !removed {
		return notFound("Opt-out domain not found")
	}
	return nil
}

// ListOptOuts returns every suppressed domain, newest first.
func (s *Service) ListOptOuts(ctx context.Context) ([]*store.OptOut, error) {
	return s.optouts.List(ctx)
}

func domainError(err error) error {
	if errors.Is(err, optout.ErrInvalidDomain) {
		return &ValidationError{Fields: []FieldError{{Field: "domain", Message: err.Error()}}}
	}
	return err
}
