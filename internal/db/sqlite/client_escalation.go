package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

func (c *sqliteClient) Get(ctx context.Context, key moderation.Key) (moderation.Record, error) {
	cutoff := db.ExpiryCutoff(c.ttl, time.Now())
	query := `
		INSERT INTO escalation_records (chat_id, user_id, warn_count, last_violation_at)
		VALUES (?, ?, 0, 0)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		warn_count = CASE WHEN ? > 0 AND warn_count > 0 AND last_violation_at <= ? THEN 0 ELSE warn_count END,
		last_violation_at = CASE WHEN ? > 0 AND warn_count > 0 AND last_violation_at <= ? THEN 0 ELSE last_violation_at END
		RETURNING chat_id, user_id, warn_count, last_violation_at
	`
	var row db.EscalationRecord
	if err := c.db.GetContext(ctx, &row, query, key.ChatID, key.UserID, cutoff, cutoff, cutoff, cutoff); err != nil {
		return moderation.Record{}, errors.WithMessagef(err, "failed to get escalation record %d/%d", key.ChatID, key.UserID)
	}
	return row.Record(), nil
}

func (c *sqliteClient) Increment(ctx context.Context, key moderation.Key, at time.Time) (int, error) {
	cutoff := db.ExpiryCutoff(c.ttl, at)
	query := `
		INSERT INTO escalation_records (chat_id, user_id, warn_count, last_violation_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		warn_count = CASE WHEN ? > 0 AND last_violation_at > 0 AND last_violation_at <= ? THEN 1 ELSE warn_count + 1 END,
		last_violation_at = excluded.last_violation_at
		RETURNING warn_count
	`
	var count int
	if err := c.db.GetContext(ctx, &count, query, key.ChatID, key.UserID, at.UnixNano(), cutoff, cutoff); err != nil {
		return 0, errors.WithMessagef(err, "failed to increment escalation record %d/%d", key.ChatID, key.UserID)
	}
	return count, nil
}

func (c *sqliteClient) Reset(ctx context.Context, key moderation.Key) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM escalation_records WHERE chat_id = ? AND user_id = ?`, key.ChatID, key.UserID)
	return errors.WithMessagef(err, "failed to reset escalation record %d/%d", key.ChatID, key.UserID)
}

// Sweep deletes records expired at now and returns how many were deleted.
func (c *sqliteClient) Sweep(ctx context.Context, now time.Time) (int64, error) {
	cutoff := db.ExpiryCutoff(c.ttl, now)
	if cutoff == 0 {
		return 0, nil
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM escalation_records WHERE last_violation_at > 0 AND last_violation_at <= ?`, cutoff)
	if err != nil {
		return 0, errors.WithMessage(err, "failed to sweep escalation records")
	}
	return res.RowsAffected()
}
