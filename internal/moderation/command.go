package moderation

import (
	"fmt"
	"time"
)

type (
	// Action names an enforcement operation.
	Action string

	// Command is a single enforcement directive. Commands are plain values.
	Command struct {
		Action    Action
		ChatID    int64
		UserID    int64
		MessageID int
		// Duration is set for ActionRemove only.
		Duration time.Duration
	}
)

const (
	ActionDelete   Action = "delete"
	ActionWarn     Action = "warn"
	ActionRestrict Action = "restrict"
	ActionRemove   Action = "remove"
)

func DeleteMessage(chatID int64, messageID int) Command {
	return Command{Action: ActionDelete, ChatID: chatID, MessageID: messageID}
}

func WarnUser(chatID, userID int64) Command {
	return Command{Action: ActionWarn, ChatID: chatID, UserID: userID}
}

func RestrictUser(chatID, userID int64) Command {
	return Command{Action: ActionRestrict, ChatID: chatID, UserID: userID}
}

func RemoveUser(chatID, userID int64, duration time.Duration) Command {
	return Command{Action: ActionRemove, ChatID: chatID, UserID: userID, Duration: duration}
}

// DurationSeconds is the ban length as the platform expects it.
func (c Command) DurationSeconds() int64 {
	return int64(c.Duration / time.Second)
}

func (c Command) String() string {
	switch c.Action {
	case ActionDelete:
		return fmt.Sprintf("DeleteMessage(%d, %d)", c.ChatID, c.MessageID)
	case ActionRemove:
		return fmt.Sprintf("RemoveUser(%d, %d, %ds)", c.ChatID, c.UserID, c.DurationSeconds())
	case ActionWarn:
		return fmt.Sprintf("WarnUser(%d, %d)", c.ChatID, c.UserID)
	case ActionRestrict:
		return fmt.Sprintf("RestrictUser(%d, %d)", c.ChatID, c.UserID)
	default:
		return fmt.Sprintf("%s(%d, %d)", c.Action, c.ChatID, c.UserID)
	}
}
