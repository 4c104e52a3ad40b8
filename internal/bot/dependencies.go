package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

// Engine decides what to do about one event.
type Engine interface {
	HandleEvent(ctx context.Context, ev moderation.Event) ([]moderation.Command, error)
}

// Dispatcher executes the decided commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmds []moderation.Command) []moderation.Result
}

// Greeter welcomes joined members and learns sender names for notices.
type Greeter interface {
	Observe(user *api.User)
	Greet(ctx context.Context, chatID int64, user *api.User) error
}

// UpdatesSource is the part of *api.BotAPI used for long polling.
type UpdatesSource interface {
	GetUpdates(config api.UpdateConfig) ([]api.Update, error)
}
