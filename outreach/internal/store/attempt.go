package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/outreach/dbopen"
)

const attemptColumns = `id, target_id, target_name, target_url, contact_url, channel,
	request_payload, response_payload, response_status, status, error_message,
	invite_token, campaign, attempt_number, next_retry_at, created_at, updated_at`

// RetryPolicy decides when a FAILED attempt becomes eligible again.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// GetAttempt returns the attempt for (targetURL, channel), or nil.
func (s *Store) GetAttempt(ctx context.Context, targetURL, channel string) (*Attempt, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE target_url = ? AND channel = ?`,
		targetURL, channel)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// RecordAttempt upserts a on (TargetURL, Channel) in one transaction:
//   - AttemptNumber becomes previous+1 (1 for a new row);
//   - a FAILED attempt below policy.MaxAttempts gets NextRetryAt = now+Delay;
//   - if an opt-out entry matches either address, the row is stored as
//     OPTED_OUT with no retry, whatever status the caller computed.
//
// The opt-out check uses the same substring rule as the opt-out cascade, so
// an attempt recorded concurrently with a new opt-out ends up OPTED_OUT
// whichever transaction commits first.
func (s *Store) RecordAttempt(ctx context.Context, a *Attempt, policy RetryPolicy) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		now := time.Now()
		a.UpdatedAt = now.UnixMilli()

		var (
			existingID string
			prevNumber int
			createdAt  int64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, attempt_number, created_at FROM attempts WHERE target_url = ? AND channel = ?`,
			a.TargetURL, a.Channel).Scan(&existingID, &prevNumber, &createdAt)
		switch {
		case err == sql.ErrNoRows:
			if a.ID == "" {
				return fmt.Errorf("store: record attempt: missing id")
			}
			a.AttemptNumber = 1
			a.CreatedAt = a.UpdatedAt
		case err != nil:
			return wrap("lookup attempt", err)
		default:
			a.ID = existingID
			a.AttemptNumber = prevNumber + 1
			a.CreatedAt = createdAt
		}

		a.NextRetryAt = 0
		if a.Status == StatusFailed && a.AttemptNumber < policy.MaxAttempts {
			a.NextRetryAt = now.Add(policy.Delay).UnixMilli()
		}

		var suppressed int
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM opt_outs
			WHERE instr(lower(?), domain) > 0 OR instr(lower(?), domain) > 0)`,
			a.TargetURL, a.ContactURL).Scan(&suppressed)
		if err != nil {
			return wrap("check opt-out", err)
		}
		if suppressed == 1 && a.Status != StatusOptedOut {
			a.Status = StatusOptedOut
			a.NextRetryAt = 0
			a.ErrorMessage = OptOutMessage
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO attempts (`+attemptColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(target_url, channel) DO UPDATE SET
				target_id = excluded.target_id,
				target_name = excluded.target_name,
				contact_url = excluded.contact_url,
				request_payload = excluded.request_payload,
				response_payload = excluded.response_payload,
				response_status = excluded.response_status,
				status = excluded.status,
				error_message = excluded.error_message,
				invite_token = excluded.invite_token,
				campaign = excluded.campaign,
				attempt_number = excluded.attempt_number,
				next_retry_at = excluded.next_retry_at,
				updated_at = excluded.updated_at`,
			a.ID, a.TargetID, a.TargetName, a.TargetURL, a.ContactURL, a.Channel,
			nullJSON(a.RequestPayload), nullJSON(a.ResponsePayload), nullInt(int64(a.ResponseStatus)),
			string(a.Status), nullString(a.ErrorMessage), nullString(a.InviteToken), a.Campaign,
			a.AttemptNumber, nullInt(a.NextRetryAt), a.CreatedAt, a.UpdatedAt,
		)
		return wrap("upsert attempt", err)
	})
}

// CountAttemptsSince counts attempts created at or after since whose status
// is not excluded.
func (s *Store) CountAttemptsSince(ctx context.Context, since int64, excluded AttemptStatus) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE created_at >= ? AND status != ?`,
		since, string(excluded)).Scan(&n)
	return n, wrap("count attempts", err)
}

// RecentContacts returns the addresses of attempts created at or after since
// with one of statuses.
func (s *Store) RecentContacts(ctx context.Context, since int64, statuses ...AttemptStatus) ([]ContactRef, error) {
	args := []any{since}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT target_url, contact_url FROM attempts
		WHERE created_at >= ? AND status IN (`+placeholders(len(statuses))+`)`, args...)
	if err != nil {
		return nil, wrap("recent contacts", err)
	}
	defer rows.Close()
	var out []ContactRef
	for rows.Next() {
		var c ContactRef
		if err := rows.Scan(&c.TargetURL, &c.ContactURL); err != nil {
			return nil, wrap("scan contact", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ContactedSince reports whether targetURL has an attempt created at or after
// since with one of statuses.
func (s *Store) ContactedSince(ctx context.Context, targetURL string, since int64, statuses ...AttemptStatus) (bool, error) {
	args := []any{targetURL, since}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	var found int
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM attempts WHERE target_url = ? AND created_at >= ?
		AND status IN (`+placeholders(len(statuses))+`))`, args...).Scan(&found)
	return found == 1, wrap("contacted since", err)
}

// ListAttempts returns the most recent attempts, newest first.
func (s *Store) ListAttempts(ctx context.Context, limit int) ([]*Attempt, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("list attempts", err)
	}
	defer rows.Close()
	var out []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttempt(r rowScanner) (*Attempt, error) {
	var (
		a              Attempt
		req, resp      sql.NullString
		respStatus     sql.NullInt64
		status         string
		errMsg, invite sql.NullString
		nextRetry      sql.NullInt64
	)
	err := r.Scan(&a.ID, &a.TargetID, &a.TargetName, &a.TargetURL, &a.ContactURL, &a.Channel,
		&req, &resp, &respStatus, &status, &errMsg, &invite, &a.Campaign, &a.AttemptNumber,
		&nextRetry, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	if req.Valid {
		a.RequestPayload = json.RawMessage(req.String)
	}
	if resp.Valid {
		a.ResponsePayload = json.RawMessage(resp.String)
	}
	a.ResponseStatus = int(respStatus.Int64)
	a.Status = AttemptStatus(status)
	a.ErrorMessage = errMsg.String
	a.InviteToken = invite.String
	a.NextRetryAt = nextRetry.Int64
	return &a, nil
}

func nullJSON(b json.RawMessage) sql.NullString {
	s := strings.TrimSpace(string(b))
	return sql.NullString{String: s, Valid: s != "" && s != "null"}
}
