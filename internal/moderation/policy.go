package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type (
	// Role is a chat membership status as reported by the platform.
	Role string

	// RoleFetcher resolves a member role. Results are never cached.
	RoleFetcher interface {
		FetchRole(ctx context.Context, chatID, userID int64) (Role, error)
	}

	// SanctionAction is what happens once a user reaches the threshold.
	SanctionAction string

	// Policy configures escalation.
	Policy struct {
		Threshold        int
		Action           SanctionAction
		SanctionDuration time.Duration
		// Warn notifies the user on every violation, ahead of any sanction.
		Warn bool
	}
)

const (
	RoleCreator       Role = "creator"
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
	RoleRestricted    Role = "restricted"
	RoleLeft          Role = "left"
	RoleKicked        Role = "kicked"
	RoleUnknown       Role = ""
)

const (
	SanctionRestrict SanctionAction = "restrict"
	SanctionRemove   SanctionAction = "remove"
)

// Privileged roles are exempt from enforcement.
func (r Role) Privileged() bool {
	return r == RoleCreator || r == RoleAdministrator
}

// ParseSanctionAction accepts "restrict" and "remove" (also "kick" and "ban" for remove).
func ParseSanctionAction(s string) (SanctionAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "restrict", "mute":
		return SanctionRestrict, nil
	case "remove", "kick", "ban":
		return SanctionRemove, nil
	default:
		return "", fmt.Errorf("unknown sanction action %q", s)
	}
}

// DefaultPolicy restricts on the fifth violation.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:        5,
		Action:           SanctionRestrict,
		SanctionDuration: 24 * time.Hour,
	}
}

// WarnThenRemovePolicy warns and removes after a single violation.
func WarnThenRemovePolicy(duration time.Duration) Policy {
	return Policy{
		Threshold:        1,
		Action:           SanctionRemove,
		SanctionDuration: duration,
		Warn:             true,
	}
}

func (p Policy) normalize() Policy {
	if p.Threshold < 1 {
		p.Threshold = 1
	}
	if p.Action == "" {
		p.Action = SanctionRestrict
	}
	if p.SanctionDuration < 0 {
		p.SanctionDuration = 0
	}
	return p
}

// decide maps a post-increment count to the commands that follow the delete.
func (p Policy) decide(key Key, count int) []Command {
	var cmds []Command
	if p.Warn {
		cmds = append(cmds, WarnUser(key.ChatID, key.UserID))
	}
	if count < p.Threshold {
		return cmds
	}
	if p.Action == SanctionRemove {
		return append(cmds, RemoveUser(key.ChatID, key.UserID, p.SanctionDuration))
	}
	return append(cmds, RestrictUser(key.ChatID, key.UserID))
}

// Sanctioned reports whether count is at or past the threshold.
func (p Policy) Sanctioned(count int) bool {
	return count >= p.normalize().Threshold
}
