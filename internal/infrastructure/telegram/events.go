package telegram

import (
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

// MessageKind reports the moderation kind of a message, false when the message is not moderated.
func MessageKind(msg *api.Message) (moderation.Kind, bool) {
	switch {
	case msg == nil:
		return "", false
	case len(msg.NewChatMembers) > 0:
		return moderation.KindMemberJoined, true
	case msg.Sticker != nil:
		return moderation.KindSticker, true
	case len(msg.Photo) > 0:
		return moderation.KindPhoto, true
	case msg.Video != nil, msg.VideoNote != nil, msg.Animation != nil:
		return moderation.KindVideo, true
	case msg.Audio != nil:
		return moderation.KindAudio, true
	case msg.Voice != nil:
		return moderation.KindVoice, true
	case msg.Document != nil:
		return moderation.KindDocument, true
	case msg.Text != "":
		return moderation.KindText, true
	default:
		return "", false
	}
}

// EventsFromUpdate turns a message update into moderation events.
// A join message yields one event per joined user, other updates yield none.
func EventsFromUpdate(u *api.Update) []moderation.Event {
	if u == nil || u.Message == nil || u.Message.Chat.ID == 0 {
		return nil
	}
	msg := u.Message

	kind, ok := MessageKind(msg)
	if !ok {
		return nil
	}

	if kind == moderation.KindMemberJoined {
		events := make([]moderation.Event, 0, len(msg.NewChatMembers))
		for i := range msg.NewChatMembers {
			user := &msg.NewChatMembers[i]
			if user.IsBot {
				continue
			}
			events = append(events, moderation.Event{
				Kind:      kind,
				ChatID:    msg.Chat.ID,
				UserID:    user.ID,
				MessageID: msg.MessageID,
				UserName:  GetFullName(user),
				Language:  user.LanguageCode,
			})
		}
		return events
	}

	if msg.From == nil {
		return nil
	}
	ev := moderation.Event{
		Kind:      kind,
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		MessageID: msg.MessageID,
		UserName:  GetUN(msg.From),
		Language:  msg.From.LanguageCode,
	}
	if kind == moderation.KindText {
		ev.Text = msg.Text
		ev.HasText = true
	}
	return []moderation.Event{ev}
}

func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	userName := user.UserName
	if len(userName) == 0 {
		userName = user.FirstName + " " + user.LastName
		userName = strings.TrimSpace(userName)
	}
	return userName
}

func GetFullName(user *api.User) string {
	if user == nil {
		return ""
	}
	fullName := user.FirstName + " " + user.LastName
	fullName = strings.TrimSpace(fullName)
	if len(fullName) == 0 {
		fullName = user.UserName
	}
	return fullName
}
