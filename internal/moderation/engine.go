package moderation

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/observability"
)

const tracerName = "github.com/iamwavecut/ngguard/internal/moderation"

// Engine turns events into enforcement commands. It performs no enforcement itself.
type Engine struct {
	rules  *RuleSet
	store  EscalationStore
	roles  RoleFetcher
	policy Policy
	now    func() time.Time
	tracer trace.Tracer
}

type Option func(*Engine)

// WithClock overrides the violation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(rules *RuleSet, store EscalationStore, roles RoleFetcher, policy Policy, opts ...Option) *Engine {
	e := &Engine{
		rules:  rules,
		store:  store,
		roles:  roles,
		policy: policy.normalize(),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective escalation policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// HandleEvent decides on a single event. It is safe for concurrent use.
//
// A malformed event yields ErrClassification and no commands. A store failure
// yields ErrState together with the commands that do not depend on the count.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) (cmds []Command, err error) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "moderation.HandleEvent", trace.WithAttributes(
		attribute.String("event.kind", string(ev.Kind)),
		attribute.Int64("chat.id", ev.ChatID),
		attribute.Int64("user.id", ev.UserID),
	))
	defer func() {
		status := "ignored"
		switch {
		case err != nil:
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case len(cmds) > 0:
			status = "enforced"
		}
		span.SetAttributes(attribute.Int("commands", len(cmds)))
		span.End()
		observability.RecordEvent(string(ev.Kind), status, time.Since(started))
	}()

	if err := ev.validate(); err != nil {
		return nil, err
	}

	switch {
	case ev.Kind == KindMemberJoined:
		// greeting is the transport's business
		return nil, nil
	case ev.Kind.IsMedia():
		return []Command{DeleteMessage(ev.ChatID, ev.MessageID)}, nil
	case ev.Kind == KindText:
		return e.handleText(ctx, ev)
	default:
		e.getLogEntry().WithField("kind", ev.Kind).Trace("unsupported event kind")
		return nil, nil
	}
}

func (e *Engine) handleText(ctx context.Context, ev Event) ([]Command, error) {
	matched, marker := e.rules.Matches(ev.Text)
	if !matched {
		return nil, nil
	}

	entry := e.getLogEntry().WithFields(log.Fields{
		"chat_id":    ev.ChatID,
		"user_id":    ev.UserID,
		"message_id": ev.MessageID,
		"marker":     marker,
	})

	role, err := e.fetchRole(ctx, ev)
	if err != nil {
		// fail closed
		entry.WithField("error", err.Error()).Warn("role lookup failed, moderating as ordinary member")
		observability.RecordRoleLookupFailure()
		role = RoleUnknown
	}
	if role.Privileged() {
		entry.WithField("role", role).Debug("privileged sender, skipping")
		return nil, nil
	}

	observability.RecordViolation()
	cmds := []Command{DeleteMessage(ev.ChatID, ev.MessageID)}

	count, err := e.store.Increment(ctx, ev.Key(), e.now())
	if err != nil {
		return cmds, fmt.Errorf("%w: increment chat %d user %d: %w", ngerrors.ErrState, ev.ChatID, ev.UserID, err)
	}
	if count < 1 {
		return cmds, fmt.Errorf("%w: increment chat %d user %d returned %d", ngerrors.ErrState, ev.ChatID, ev.UserID, count)
	}

	follow := e.policy.decide(ev.Key(), count)
	entry = entry.WithField("warn_count", count)
	if e.policy.Sanctioned(count) {
		observability.RecordSanction(string(e.policy.Action))
		entry.WithField("sanction", e.policy.Action).Info("violation threshold reached")
	} else {
		entry.Info("violation recorded")
	}
	return append(cmds, follow...), nil
}

func (e *Engine) fetchRole(ctx context.Context, ev Event) (Role, error) {
	if e.roles == nil {
		return RoleUnknown, fmt.Errorf("no role fetcher configured")
	}
	return e.roles.FetchRole(ctx, ev.ChatID, ev.UserID)
}

func (e *Engine) getLogEntry() *log.Entry {
	return log.WithField("object", "Engine")
}
