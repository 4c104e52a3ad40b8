package db

import (
	"time"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

// EscalationRecord is the row shape of escalation_records.
type EscalationRecord struct {
	ChatID          int64 `db:"chat_id"`
	UserID          int64 `db:"user_id"`
	WarnCount       int   `db:"warn_count"`
	LastViolationAt int64 `db:"last_violation_at"`
}

func (r EscalationRecord) Record() moderation.Record {
	rec := moderation.Record{WarnCount: r.WarnCount}
	if r.LastViolationAt > 0 {
		rec.LastViolationAt = time.Unix(0, r.LastViolationAt)
	}
	return rec
}

// ExpiryCutoff is the unix-nano moment before which records count as expired. Zero disables expiry.
func ExpiryCutoff(ttl time.Duration, now time.Time) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(-ttl).UnixNano()
}
