package db

import (
	"context"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

// Client is an escalation store backed by an external database.
type Client interface {
	moderation.EscalationStore
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Close() error
}
