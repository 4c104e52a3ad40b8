package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/observability"
)

const (
	defaultDedupeSize = 4096
	defaultDedupeTTL  = 10 * time.Minute
)

type (
	// Platform is the chat platform client the dispatcher drives.
	Platform interface {
		DeleteMessage(ctx context.Context, chatID int64, messageID int) error
		WarnUser(ctx context.Context, chatID, userID int64) error
		RestrictUser(ctx context.Context, chatID, userID int64) error
		RemoveUser(ctx context.Context, chatID, userID int64, durationSeconds int64) error
	}

	// Result is the outcome of one command.
	Result struct {
		Command Command
		Err     error
		Skipped bool
	}

	// Dispatcher executes commands one by one, never retrying and never stopping on failure.
	Dispatcher struct {
		client  Platform
		deleted *expirable.LRU[Command, struct{}]
	}

	DispatcherOption func(*Dispatcher)
)

// WithDeleteDedupe tunes how many completed deletes are remembered and for how long.
func WithDeleteDedupe(size int, ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.deleted = expirable.NewLRU[Command, struct{}](size, nil, ttl)
	}
}

func NewDispatcher(client Platform, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:  client,
		deleted: expirable.NewLRU[Command, struct{}](defaultDedupeSize, nil, defaultDedupeTTL),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs a single command. Failures wrap ErrTransient or ErrPermanent.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) error {
	var err error
	switch cmd.Action {
	case ActionDelete:
		err = d.client.DeleteMessage(ctx, cmd.ChatID, cmd.MessageID)
	case ActionWarn:
		err = d.client.WarnUser(ctx, cmd.ChatID, cmd.UserID)
	case ActionRestrict:
		err = d.client.RestrictUser(ctx, cmd.ChatID, cmd.UserID)
	case ActionRemove:
		err = d.client.RemoveUser(ctx, cmd.ChatID, cmd.UserID, cmd.DurationSeconds())
	default:
		return fmt.Errorf("%w: unknown action %q", ngerrors.ErrPermanent, cmd.Action)
	}
	return classify(err)
}

// Dispatch executes every command in order and reports each outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, cmds []Command) []Result {
	results := make([]Result, 0, len(cmds))
	for _, cmd := range cmds {
		entry := d.getLogEntry().WithFields(log.Fields{
			"action":  cmd.Action,
			"chat_id": cmd.ChatID,
		})

		if cmd.Action == ActionDelete && d.deleted.Contains(cmd) {
			entry.WithField("message_id", cmd.MessageID).Debug("message already deleted, skipping")
			observability.RecordCommand(string(cmd.Action), "skipped")
			results = append(results, Result{Command: cmd, Skipped: true})
			continue
		}

		err := d.Execute(ctx, cmd)
		results = append(results, Result{Command: cmd, Err: err})
		switch {
		case err == nil:
			observability.RecordCommand(string(cmd.Action), "ok")
			if cmd.Action == ActionDelete {
				d.deleted.Add(cmd, struct{}{})
			}
			entry.Tracef("executed %s", cmd)
		case errors.Is(err, ngerrors.ErrPermanent):
			observability.RecordCommand(string(cmd.Action), "permanent")
			if cmd.Action == ActionDelete {
				// replaying a delete that failed for good changes nothing
				d.deleted.Add(cmd, struct{}{})
			}
			entry.WithField("error", err.Error()).Warnf("cant execute %s", cmd)
		default:
			observability.RecordCommand(string(cmd.Action), "transient")
			entry.WithField("error", err.Error()).Errorf("cant execute %s", cmd)
		}
	}
	return results
}

func classify(err error) error {
	if err == nil || ngerrors.IsEnforcement(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ngerrors.ErrTransient, err)
}

func (d *Dispatcher) getLogEntry() *log.Entry {
	return log.WithField("object", "Dispatcher")
}
