package store

import (
	"context"
	"time"
)

// InsertInvite stores a new invite token.
func (s *Store) InsertInvite(ctx context.Context, inv *Invite) error {
	if inv.CreatedAt == 0 {
		inv.CreatedAt = time.Now().UnixMilli()
	}
	if inv.MaxUses == 0 {
		inv.MaxUses = 1
	}
	data := string(inv.AgentData)
	if data == "" {
		data = "{}"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO invites (token, campaign, target_id, agent_name, agent_data, max_uses, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Token, inv.Campaign, inv.TargetID, inv.AgentName, data, inv.MaxUses, inv.CreatedBy, inv.CreatedAt)
	return wrap("insert invite", err)
}

// CountInvites returns the number of invites issued for campaign ("" for all).
func (s *Store) CountInvites(ctx context.Context, campaign string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invites WHERE ? = '' OR campaign = ?`, campaign, campaign).Scan(&n)
	return n, wrap("count invites", err)
}
