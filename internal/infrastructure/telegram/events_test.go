package telegram

import (
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

func TestMessageKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		msg    *api.Message
		want   moderation.Kind
		wantOk bool
	}{
		{name: "nil", msg: nil},
		{name: "text", msg: &api.Message{Text: "hi"}, want: moderation.KindText, wantOk: true},
		{name: "photo", msg: &api.Message{Photo: []api.PhotoSize{{FileID: "p"}}}, want: moderation.KindPhoto, wantOk: true},
		{name: "photo with caption", msg: &api.Message{Photo: []api.PhotoSize{{FileID: "p"}}, Caption: "http://x"}, want: moderation.KindPhoto, wantOk: true},
		{name: "video", msg: &api.Message{Video: &api.Video{FileID: "v"}}, want: moderation.KindVideo, wantOk: true},
		{name: "animation", msg: &api.Message{Animation: &api.Animation{FileID: "a"}}, want: moderation.KindVideo, wantOk: true},
		{name: "video note", msg: &api.Message{VideoNote: &api.VideoNote{FileID: "n"}}, want: moderation.KindVideo, wantOk: true},
		{name: "audio", msg: &api.Message{Audio: &api.Audio{FileID: "a"}}, want: moderation.KindAudio, wantOk: true},
		{name: "voice", msg: &api.Message{Voice: &api.Voice{FileID: "v"}}, want: moderation.KindVoice, wantOk: true},
		{name: "document", msg: &api.Message{Document: &api.Document{FileID: "d"}}, want: moderation.KindDocument, wantOk: true},
		{name: "sticker", msg: &api.Message{Sticker: &api.Sticker{FileID: "s"}}, want: moderation.KindSticker, wantOk: true},
		{name: "join", msg: &api.Message{NewChatMembers: []api.User{{ID: 1}}}, want: moderation.KindMemberJoined, wantOk: true},
		{name: "service", msg: &api.Message{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := MessageKind(tt.msg)
			if got != tt.want || ok != tt.wantOk {
				t.Fatalf("MessageKind() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestEventsFromUpdateText(t *testing.T) {
	t.Parallel()

	events := EventsFromUpdate(&api.Update{Message: &api.Message{
		MessageID: 7,
		Chat:      api.Chat{ID: -100},
		From:      &api.User{ID: 42, UserName: "spammer", LanguageCode: "ru"},
		Text:      "see http://x",
	}})
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	want := moderation.Event{
		Kind:      moderation.KindText,
		ChatID:    -100,
		UserID:    42,
		MessageID: 7,
		Text:      "see http://x",
		HasText:   true,
		UserName:  "spammer",
		Language:  "ru",
	}
	if events[0] != want {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestEventsFromUpdateJoinSkipsBots(t *testing.T) {
	t.Parallel()

	events := EventsFromUpdate(&api.Update{Message: &api.Message{
		MessageID: 3,
		Chat:      api.Chat{ID: -100},
		From:      &api.User{ID: 10},
		NewChatMembers: []api.User{
			{ID: 10, FirstName: "Ann"},
			{ID: 11, FirstName: "helper", IsBot: true},
			{ID: 12, FirstName: "Bob", LastName: "Lee"},
		},
	}})
	if len(events) != 2 {
		t.Fatalf("expected two join events, got %+v", events)
	}
	if events[0].UserID != 10 || events[1].UserID != 12 || events[1].UserName != "Bob Lee" {
		t.Fatalf("unexpected join events: %+v", events)
	}
	for _, ev := range events {
		if ev.Kind != moderation.KindMemberJoined || ev.HasText {
			t.Fatalf("unexpected join event: %+v", ev)
		}
	}
}

func TestEventsFromUpdateIgnoresOtherUpdates(t *testing.T) {
	t.Parallel()

	for name, u := range map[string]*api.Update{
		"nil":            nil,
		"no message":     {UpdateID: 1},
		"edited":         {EditedMessage: &api.Message{Chat: api.Chat{ID: -1}, From: &api.User{ID: 1}, Text: "http://x"}},
		"no sender":      {Message: &api.Message{Chat: api.Chat{ID: -1}, Text: "http://x"}},
		"service":        {Message: &api.Message{Chat: api.Chat{ID: -1}, From: &api.User{ID: 1}}},
		"chat not known": {Message: &api.Message{From: &api.User{ID: 1}, Text: "hi"}},
	} {
		if events := EventsFromUpdate(u); len(events) != 0 {
			t.Fatalf("%s: expected no events, got %+v", name, events)
		}
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	user := &api.User{FirstName: "Ann", LastName: "Lee", UserName: "ann"}
	if got := GetUN(user); got != "ann" {
		t.Fatalf("GetUN = %q", got)
	}
	if got := GetFullName(user); got != "Ann Lee" {
		t.Fatalf("GetFullName = %q", got)
	}
	if got := GetUN(&api.User{FirstName: "Ann"}); got != "Ann" {
		t.Fatalf("GetUN fallback = %q", got)
	}
	if got := GetFullName(&api.User{UserName: "ann"}); got != "ann" {
		t.Fatalf("GetFullName fallback = %q", got)
	}
}
