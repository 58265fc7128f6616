package outreach

import (
	"context"
	"fmt"

	"github.com/hazyhaar/outreach/outreach/internal/store"
)

// Funnel is the cumulative conversion view of all attempts.
type Funnel struct {
	Contacted  int `json:"contacted"`
	Delivered  int `json:"delivered"`
	Interested int `json:"interested"`
	Registered int `json:"registered"`
}

// StatusReport is the admin dashboard of recruitment activity.
type StatusReport struct {
	TotalAttempts int              `json:"totalAttempts"`
	ByStatus      []store.Count    `json:"byStatus"`
	ByMethod      []store.Count    `json:"byMethod"`
	ByCampaign    []store.Count    `json:"byCampaign"`
	BySource      []store.Count    `json:"bySource"`
	Funnel        Funnel           `json:"funnel"`
	RecentResults []*store.Attempt `json:"recentResults"`
	OptOutCount   int              `json:"optOutCount"`
}

const recentResultsLimit = 100

// Status reports attempt totals, the funnel and the latest attempts.
func (s *Service) Status(ctx context.Context) (*StatusReport, error) {
	var (
		r   StatusReport
		err error
	)
	if r.TotalAttempts, err = s.store.CountAttempts(ctx); err != nil {
		return nil, fmt.Errorf("outreach: status: %w", err)
	}
	if r.ByStatus, err = s.store.AttemptsByStatus(ctx); err != nil {
		return nil, fmt.Errorf("outreach: status: %w", err)
	}
	if r.ByMethod, err = s.store.AttemptsByChannel(ctx); err != nil {
		return nil, fmt.Errorf("outreach: status: %w", err)
	}
	if r.ByCampaign, err = s.store.AttemptsByCampaign(ctx); err != nil {
		return nil, fmt.Errorf("outreach: status: %w", err)
	}
	if r.BySource, err = s.store.AttemptsBySource(ctx); err != nil {
		return nil, fmt.Errorf("outreach: status: %w", err)
	}
	if r.RecentResults, err = s.store.ListAttempts(ctx, recentResultsLimit); err != nil {
		return nil, fmt.Errorf("outreach: status: %w", err)
	}
	if r.RecentResults == nil {
		r.RecentResults = []*store.Attempt{}
	}
	if r.OptOutCount, err = s.optouts.Count(ctx); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(r.ByStatus))
	for _, c := range r.ByStatus {
		counts[c.Key] = c.Count
	}
	interested := counts[string(store.StatusInterested)]
	registered := counts[string(store.StatusRegistered)]
	r.Funnel = Funnel{
		Contacted:  r.TotalAttempts,
		Delivered:  counts[string(store.StatusDelivered)] + interested + registered,
		Interested: interested + registered,
		Registered: registered,
	}
	return &r, nil
}
