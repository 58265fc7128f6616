package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const targetColumns = `id, name, description, skills, category, source_url, source_platform,
	endpoint_url, website_url, source_data, status, imported_at, updated_at`

// InsertTarget adds t unless a target with the same source URL exists.
// It reports whether a row was created.
func (s *Store) InsertTarget(ctx context.Context, t *Target) (bool, error) {
	now := time.Now().UnixMilli()
	if t.ImportedAt == 0 {
		t.ImportedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = TargetUnclaimed
	}
	skills, err := json.Marshal(nonNil(t.Skills))
	if err != nil {
		return false, wrap("marshal skills", err)
	}

	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO targets (`+targetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO NOTHING`,
		t.ID, t.Name, t.Description, string(skills), t.Category, t.SourceURL, t.SourcePlatform,
		nullString(t.EndpointURL), nullString(t.WebsiteURL), t.SourceData, string(t.Status),
		t.ImportedAt, t.UpdatedAt,
	)
	if err != nil {
		return false, wrap("insert target", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// GetTarget returns the target with id, or nil when absent.
func (s *Store) GetTarget(ctx context.Context, id string) (*Target, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = ?`, id)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListCandidates returns targets matching f, newest import first.
func (s *Store) ListCandidates(ctx context.Context, f CandidateFilter) ([]*Target, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.SourcePlatform != "" {
		where = append(where, "source_platform = ?")
		args = append(args, f.SourcePlatform)
	}
	if len(f.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	q := `SELECT ` + targetColumns + ` FROM targets`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY imported_at DESC, id DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap("list candidates", err)
	}
	defer rows.Close()

	var out []*Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetTargetStatus moves a target to status. Sticky statuses are never
// overwritten.
func (s *Store) SetTargetStatus(ctx context.Context, id string, status TargetStatus) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE targets SET status = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('INTERESTED', 'DECLINED', 'OPTED_OUT')`,
		string(status), time.Now().UnixMilli(), id)
	return wrap("set target status", err)
}

// CountTargets returns the number of targets per status.
func (s *Store) CountTargets(ctx context.Context) ([]Count, error) {
	return s.groupCount(ctx, `SELECT status, COUNT(*) FROM targets GROUP BY status ORDER BY status`)
}

func scanTarget(r rowScanner) (*Target, error) {
	var (
		t        Target
		skills   string
		endpoint sql.NullString
		website  sql.NullString
		status   string
	)
	err := r.Scan(&t.ID, &t.Name, &t.Description, &skills, &t.Category, &t.SourceURL,
		&t.SourcePlatform, &endpoint, &website, &t.SourceData, &status, &t.ImportedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan target: %w", err)
	}
	json.Unmarshal([]byte(skills), &t.Skills)
	t.EndpointURL = endpoint.String
	t.WebsiteURL = website.String
	t.Status = TargetStatus(status)
	return &t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toLower(s string) string { return strings.ToLower(s) }
