package bot

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/infrastructure/telegram"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type (
	UpdateProcessor struct {
		engine     Engine
		dispatcher Dispatcher
		greeter    Greeter
		greet      bool
		workers    int
		now        func() time.Time
	}

	Option func(*UpdateProcessor)
)

// WithGreeting welcomes members who join a moderated chat.
func WithGreeting(enabled bool) Option {
	return func(up *UpdateProcessor) {
		up.greet = enabled
	}
}

// WithWorkers bounds how many updates are processed at once.
func WithWorkers(n int) Option {
	return func(up *UpdateProcessor) {
		if n > 0 {
			up.workers = n
		}
	}
}

func NewUpdateProcessor(engine Engine, dispatcher Dispatcher, greeter Greeter, opts ...Option) *UpdateProcessor {
	up := &UpdateProcessor{
		engine:     engine,
		dispatcher: dispatcher,
		greeter:    greeter,
		workers:    1,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(up)
	}
	return up
}

// Process moderates a single update.
func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entry := up.getLogEntry().WithFields(log.Fields{
		"update_id": u.UpdateID,
		"corr_id":   uuid.New(),
	})

	var updateTime time.Time
	switch {
	case u.Message != nil:
		updateTime = time.Unix(int64(u.Message.Date), 0)
	case u.EditedMessage != nil:
		updateTime = time.Unix(int64(u.EditedMessage.Date), 0)
	default:
		updateTime = up.now()
	}
	if age := up.now().Sub(updateTime); age > UpdateTimeout {
		entry.WithFields(log.Fields{
			"update_time": updateTime,
			"age":         age,
		}).Debug("Skipping outdated update")
		return nil
	}

	if u.Message != nil && up.greeter != nil {
		up.greeter.Observe(u.Message.From)
	}

	for _, ev := range telegram.EventsFromUpdate(u) {
		evEntry := entry.WithFields(log.Fields{
			"kind":       ev.Kind,
			"chat_id":    ev.ChatID,
			"user_id":    ev.UserID,
			"message_id": ev.MessageID,
		})

		cmds, err := up.engine.HandleEvent(ctx, ev)
		switch {
		case err == nil:
		case errors.Is(err, ngerrors.ErrClassification):
			evEntry.WithField("error", err.Error()).Warn("dropping malformed event")
			continue
		case errors.Is(err, ngerrors.ErrState):
			evEntry.WithField("error", err.Error()).Error("escalation state unavailable")
		default:
			return errors.WithMessage(err, "handling error")
		}

		if len(cmds) > 0 {
			up.dispatcher.Dispatch(ctx, cmds)
		}

		if ev.Kind == moderation.KindMemberJoined && up.greet && up.greeter != nil {
			if err := up.greeter.Greet(ctx, ev.ChatID, joinedUser(u.Message, ev.UserID)); err != nil {
				evEntry.WithField("error", err.Error()).Warn("cant greet member")
			}
		}
	}
	return nil
}

// Run processes updates concurrently until the channel closes or ctx is done.
func (up *UpdateProcessor) Run(ctx context.Context, updates <-chan api.Update) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(up.workers)

	for {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				if err := up.Process(gctx, &update); err != nil && !errors.Is(err, context.Canceled) {
					up.getLogEntry().WithField("update_id", update.UpdateID).WithField("error", err.Error()).Error("cant process update")
				}
				return nil
			})
		}
	}
}

func (up *UpdateProcessor) getLogEntry() *log.Entry {
	return log.WithField("object", "UpdateProcessor")
}

func joinedUser(msg *api.Message, userID int64) *api.User {
	if msg == nil {
		return nil
	}
	for i := range msg.NewChatMembers {
		if msg.NewChatMembers[i].ID == userID {
			return &msg.NewChatMembers[i]
		}
	}
	return nil
}

// GetUpdatesChans long-polls the Bot API, moving the offset past every delivered update.
func GetUpdatesChans(ctx context.Context, bot UpdatesSource, config api.UpdateConfig, buffer int) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, buffer)
	chErr := make(chan error, 1)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			select {
			case <-ctx.Done():
				chErr <- ctx.Err()
				return
			default:
				updates, err := bot.GetUpdates(config)
				if err != nil {
					chErr <- err
					return
				}

				for _, update := range updates {
					if update.UpdateID >= config.Offset {
						config.Offset = update.UpdateID + 1
						select {
						case ch <- update:
						case <-ctx.Done():
							chErr <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return ch, chErr
}
