package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/outreach/dbopen"
)

// UpsertOptOut creates the entry for an already-normalized domain, or
// updates its reason when one is given, then rewrites every attempt whose
// target or contact URL contains the domain to OPTED_OUT. Both writes
// share one transaction. It returns the stored entry and the number of
// rewritten attempts.
func (s *Store) UpsertOptOut(ctx context.Context, o *OptOut) (*OptOut, int64, error) {
	if o.Domain == "" {
		return nil, 0, fmt.Errorf("store: upsert opt-out: empty domain")
	}
	if o.CreatedAt == 0 {
		o.CreatedAt = time.Now().UnixMilli()
	}

	var (
		stored    *OptOut
		rewritten int64
	)
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO opt_outs (id, domain, reason, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(domain) DO UPDATE SET reason = COALESCE(excluded.reason, opt_outs.reason)`,
			o.ID, o.Domain, nullString(o.Reason), o.CreatedAt)
		if err != nil {
			return wrap("upsert opt-out", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE attempts SET status = ?, next_retry_at = NULL, error_message = ?, updated_at = ?
			WHERE status != ?
			AND (instr(lower(target_url), ?) > 0 OR instr(lower(contact_url), ?) > 0)`,
			string(StatusOptedOut), OptOutMessage, time.Now().UnixMilli(), string(StatusOptedOut),
			o.Domain, o.Domain)
		if err != nil {
			return wrap("cascade opt-out", err)
		}
		rewritten, _ = res.RowsAffected()

		stored, err = scanOptOut(tx.QueryRowContext(ctx,
			`SELECT id, domain, reason, created_at FROM opt_outs WHERE domain = ?`, o.Domain))
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return stored, rewritten, nil
}

// FindOptOut returns the first of candidates present in the registry.
func (s *Store) FindOptOut(ctx context.Context, candidates []string) (string, bool, error) {
	if len(candidates) == 0 {
		return "", false, nil
	}
	args := make([]any, len(candidates))
	for i, c := range candidates {
		args[i] = c
	}
	var domain string
	err := s.DB.QueryRowContext(ctx,
		`SELECT domain FROM opt_outs WHERE domain IN (`+placeholders(len(candidates))+`) LIMIT 1`,
		args...).Scan(&domain)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("find opt-out", err)
	}
	return domain, true, nil
}

// GetOptOut returns the entry for domain, or nil.
func (s *Store) GetOptOut(ctx context.Context, domain string) (*OptOut, error) {
	o, err := scanOptOut(s.DB.QueryRowContext(ctx,
		`SELECT id, domain, reason, created_at FROM opt_outs WHERE domain = ?`, domain))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

// DeleteOptOut hard-deletes domain and reports whether a row existed.
func (s *Store) DeleteOptOut(ctx context.Context, domain string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM opt_outs WHERE domain = ?`, domain)
	if err != nil {
		return false, wrap("delete opt-out", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListOptOuts returns every entry, newest first.
func (s *Store) ListOptOuts(ctx context.Context) ([]*OptOut, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, domain, reason, created_at FROM opt_outs ORDER BY created_at DESC, domain`)
	if err != nil {
		return nil, wrap("list opt-outs", err)
	}
	defer rows.Close()
	var out []*OptOut
	for rows.Next() {
		o, err := scanOptOut(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountOptOuts returns the registry size.
func (s *Store) CountOptOuts(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM opt_outs`).Scan(&n)
	return n, wrap("count opt-outs", err)
}

func scanOptOut(r rowScanner) (*OptOut, error) {
	var (
		o      OptOut
		reason sql.NullString
	)
	if err := r.Scan(&o.ID, &o.Domain, &reason, &o.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan opt-out: %w", err)
	}
	o.Reason = reason.String
	return &o, nil
}
