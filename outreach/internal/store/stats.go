package store

import (
	"context"
)

// CountAttempts returns the total number of attempts.
func (s *Store) CountAttempts(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts`).Scan(&n)
	return n, wrap("count attempts", err)
}

// AttemptsByStatus groups attempts by status.
func (s *Store) AttemptsByStatus(ctx context.Context) ([]Count, error) {
	return s.groupCount(ctx, `SELECT status, COUNT(*) FROM attempts GROUP BY status ORDER BY status`)
}

// AttemptsByChannel groups attempts by channel.
func (s *Store) AttemptsByChannel(ctx context.Context) ([]Count, error) {
	return s.groupCount(ctx, `SELECT channel, COUNT(*) FROM attempts GROUP BY channel ORDER BY channel`)
}

// AttemptsByCampaign groups attempts by campaign.
func (s *Store) AttemptsByCampaign(ctx context.Context) ([]Count, error) {
	return s.groupCount(ctx, `SELECT campaign, COUNT(*) FROM attempts GROUP BY campaign ORDER BY campaign`)
}

// AttemptsBySource groups attempts by the source platform of their target.
// Attempts whose target is gone count as "unknown".
func (s *Store) AttemptsBySource(ctx context.Context) ([]Count, error) {
	return s.groupCount(ctx,
		`SELECT COALESCE(t.source_platform, 'unknown') AS src, COUNT(*)
		FROM attempts a LEFT JOIN targets t ON t.id = a.target_id
		GROUP BY src ORDER BY src`)
}

func (s *Store) groupCount(ctx context.Context, query string) ([]Count, error) {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap("group count", err)
	}
	defer rows.Close()
	out := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, wrap("scan count", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
