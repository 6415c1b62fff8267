// Package approve finds the chats an operator can admit members to and
// works through their pending join requests.
package approve

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

// EligibleChat is a chat where the operator may approve join requests.
// Rebuilt on every scan, never cached.
type EligibleChat struct {
	ID    int64
	Title string
}

// Eligible walks the session's dialog list and keeps the channels and
// groups where the operator holds the invite privilege. A privilege probe
// failing for one chat excludes that chat only; an empty result is a
// valid outcome, not an error.
func Eligible(ctx context.Context, client userbot.Client) ([]EligibleChat, error) {
	var out []EligibleChat

	it := client.Dialogs(ctx)
	for it.Next(ctx) {
		chat := it.Dialog().Chat
		if chat.Kind != userbot.ChatKindGroup && chat.Kind != userbot.ChatKindChannel {
			continue
		}
		priv, err := client.MembershipPrivileges(ctx, chat)
		if err != nil {
			log.Warn().Err(err).Int64("chat", chat.ID).Msg("could not check permissions, skipping chat")
			continue
		}
		if priv.Invite == userbot.CapabilityPresent {
			out = append(out, EligibleChat{ID: chat.ID, Title: chat.Title})
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
