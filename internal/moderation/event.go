package moderation

import (
	"fmt"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

type (
	// Kind is the inbound event kind.
	Kind string

	// Event is a single inbound occurrence, alive for one HandleEvent call.
	Event struct {
		Kind      Kind
		ChatID    int64
		UserID    int64
		MessageID int
		// Text is set for KindText only. HasText tells an empty message from a missing one.
		Text    string
		HasText bool

		// Presentation only, never consulted by the decision logic.
		UserName string
		Language string
	}
)

const (
	KindText         Kind = "text"
	KindPhoto        Kind = "photo"
	KindVideo        Kind = "video"
	KindAudio        Kind = "audio"
	KindVoice        Kind = "voice"
	KindDocument     Kind = "document"
	KindSticker      Kind = "sticker"
	KindMemberJoined Kind = "member_joined"
)

var mediaKinds = map[Kind]struct{}{
	KindPhoto:    {},
	KindVideo:    {},
	KindAudio:    {},
	KindVoice:    {},
	KindDocument: {},
	KindSticker:  {},
}

// IsMedia reports whether the kind is blanket-deleted.
func (k Kind) IsMedia() bool {
	_, ok := mediaKinds[k]
	return ok
}

// Key returns the escalation key of the event sender.
func (e Event) Key() Key {
	return Key{ChatID: e.ChatID, UserID: e.UserID}
}

func (e Event) validate() error {
	if e.Kind == KindText && !e.HasText {
		return fmt.Errorf("%w: text event %d in chat %d carries no text", ngerrors.ErrClassification, e.MessageID, e.ChatID)
	}
	return nil
}

// TextEvent builds a text-kind event.
func TextEvent(chatID, userID int64, messageID int, text string) Event {
	return Event{
		Kind:      KindText,
		ChatID:    chatID,
		UserID:    userID,
		MessageID: messageID,
		Text:      text,
		HasText:   true,
	}
}
