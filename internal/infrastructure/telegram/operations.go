package telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/policy/permissions"
)

const (
	knownUsersSize = 8192
	knownUsersTTL  = time.Hour
)

// BotAPI is the part of *api.BotAPI the client needs.
type BotAPI interface {
	Request(c api.Chattable) (*api.APIResponse, error)
	Send(c api.Chattable) (api.Message, error)
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
}

type Config struct {
	// RestrictDuration is how long a restriction lasts, zero is forever.
	RestrictDuration time.Duration
	// NoticeTTL is how long warning notices stay in the chat, zero keeps them.
	NoticeTTL time.Duration
}

// Client performs moderation calls against the Bot API.
type Client struct {
	bot   BotAPI
	cfg   Config
	users *expirable.LRU[int64, api.User]
	now   func() time.Time

	runMutex  sync.Mutex
	started   bool
	runCtx    context.Context
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

func NewClient(bot BotAPI, cfg Config) *Client {
	return &Client{
		bot:   bot,
		cfg:   cfg,
		users: expirable.NewLRU[int64, api.User](knownUsersSize, nil, knownUsersTTL),
		now:   time.Now,
	}
}

// Observe remembers a sender so that notices can mention them by name.
func (c *Client) Observe(user *api.User) {
	if user == nil || user.ID == 0 {
		return
	}
	c.users.Add(user.ID, *user)
}

func (c *Client) FetchRole(ctx context.Context, chatID, userID int64) (moderation.Role, error) {
	if err := ctx.Err(); err != nil {
		return moderation.RoleUnknown, err
	}
	member, err := c.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
	})
	if err != nil {
		return moderation.RoleUnknown, classify(err, "cant get chat member")
	}
	return permissions.RoleOf(&member), nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Request(api.NewDeleteMessage(chatID, messageID))
	return classify(err, "failed to delete message")
}

// WarnUser posts a localized notice mentioning the user and removes it after NoticeTTL.
func (c *Client) WarnUser(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	user, _ := c.users.Get(userID)
	text := fmt.Sprintf(
		i18n.Get("%s, links and media are not allowed here.", user.LanguageCode),
		mention(userID, &user),
	)
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeHTML
	msg.LinkPreviewOptions.IsDisabled = true
	msg.DisableNotification = true

	sent, err := c.bot.Send(msg)
	if err != nil {
		return classify(err, "failed to send warning")
	}
	c.scheduleDelete(chatID, sent.MessageID)
	return nil
}

// RestrictUser revokes every send permission.
func (c *Client) RestrictUser(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var untilDate int64
	if c.cfg.RestrictDuration > 0 {
		untilDate = c.now().Add(c.cfg.RestrictDuration).Unix()
	}
	_, err := c.bot.Request(api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		UntilDate: untilDate,
		Permissions: &api.ChatPermissions{
			CanSendMessages:       false,
			CanSendAudios:         false,
			CanSendDocuments:      false,
			CanSendPhotos:         false,
			CanSendVideos:         false,
			CanSendVideoNotes:     false,
			CanSendVoiceNotes:     false,
			CanSendPolls:          false,
			CanSendOtherMessages:  false,
			CanAddWebPagePreviews: false,
		},
	})
	return classify(err, "failed to restrict user")
}

// RemoveUser bans the user for durationSeconds, zero bans forever.
func (c *Client) RemoveUser(ctx context.Context, chatID, userID int64, durationSeconds int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var untilDate int64
	if durationSeconds > 0 {
		untilDate = c.now().Add(time.Duration(durationSeconds) * time.Second).Unix()
	}
	_, err := c.bot.Request(api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		UntilDate: untilDate,
	})
	return classify(err, "failed to remove user")
}

// Greet welcomes a member who just joined.
func (c *Client) Greet(ctx context.Context, chatID int64, user *api.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	msg := api.NewMessage(chatID, fmt.Sprintf(i18n.Get("Welcome, %s!", user.LanguageCode), mention(user.ID, user)))
	msg.ParseMode = api.ModeHTML
	msg.LinkPreviewOptions.IsDisabled = true
	_, err := c.bot.Send(msg)
	return classify(err, "failed to greet")
}

func (c *Client) scheduleDelete(chatID int64, messageID int) {
	if c.cfg.NoticeTTL <= 0 || messageID == 0 {
		return
	}

	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	if !c.started {
		return
	}
	runCtx := c.runCtx

	c.workersWg.Add(1)
	go func() {
		defer c.workersWg.Done()
		timer := time.NewTimer(c.cfg.NoticeTTL)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-runCtx.Done():
			// notices are not left behind on shutdown
		}
		if _, err := c.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
			c.getLogEntry().WithFields(log.Fields{
				"chat_id":    chatID,
				"message_id": messageID,
				"error":      err.Error(),
			}).Debug("cant delete notice")
		}
	}()
}

func (c *Client) Start(ctx context.Context) error {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	if c.started {
		return nil
	}
	c.runCtx, c.runCancel = context.WithCancel(ctx)
	c.started = true
	return nil
}

func (c *Client) Stop(ctx context.Context) error {
	c.runMutex.Lock()
	if !c.started {
		c.runMutex.Unlock()
		return nil
	}
	c.started = false
	cancel := c.runCancel
	c.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *Client) getLogEntry() *log.Entry {
	return log.WithField("object", "TelegramClient")
}

func mention(userID int64, user *api.User) string {
	name := GetFullName(user)
	if name == "" {
		name = fmt.Sprintf("%d", userID)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

// classify maps Bot API failures onto transient and permanent enforcement errors.
func classify(err error, message string) error {
	if err == nil {
		return nil
	}
	code := 0
	var apiErr *api.Error
	var apiErrValue api.Error
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrValue):
		code = apiErrValue.Code
	default:
		return fmt.Errorf("%w: %s: %w", ngerrors.ErrTransient, message, err)
	}
	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s: %w", ngerrors.ErrTransient, message, err)
	}
	return fmt.Errorf("%w: %s: %w", ngerrors.ErrPermanent, message, err)
}
