package permissions

import (
	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

// RoleOf maps a chat member status onto a moderation role.
func RoleOf(member *api.ChatMember) moderation.Role {
	if member == nil {
		return moderation.RoleUnknown
	}
	switch {
	case member.IsCreator():
		return moderation.RoleCreator
	case member.IsAdministrator():
		return moderation.RoleAdministrator
	case member.HasLeft():
		return moderation.RoleLeft
	case member.WasKicked():
		return moderation.RoleKicked
	}
	switch moderation.Role(member.Status) {
	case moderation.RoleMember:
		return moderation.RoleMember
	case moderation.RoleRestricted:
		return moderation.RoleRestricted
	}
	return moderation.RoleUnknown
}
