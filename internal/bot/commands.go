package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"relaybot/internal/content"
	"relaybot/internal/session"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

func (b *Bot) handleCommand(ctx context.Context, m *kit.Message, cmd string, args []string) {
	to := kit.ChatTarget{ChatID: m.ChatID}

	switch cmd {
	case "start", "menu":
		b.sessions.Clear(m.FromID)
		b.sendMenu(ctx, m.FromID)

	case "help":
		text := userHelp
		if b.roster.IsAdmin(m.FromID) {
			text += "\n" + adminHelp
		}
		_, _ = b.adapter.SendText(ctx, to, text, nil)

	case "cancel":
		b.sessions.Clear(m.FromID)
		_, _ = b.adapter.SendText(ctx, to, textCancelled, nil)

	case "setbots":
		b.armContentEdit(ctx, m, content.SectionBots, content.SubGeneral)
	case "setvserv":
		b.armContentEdit(ctx, m, content.SectionVserv, content.SubGeneral)
	case "setsouls":
		if len(args) < 1 {
			_, _ = b.adapter.SendText(ctx, to, "Usage: /setsouls <chat|call>", nil)
			return
		}
		b.armContentEdit(ctx, m, content.SectionSouls, strings.ToLower(args[0]))
	case "setrules":
		if len(args) < 2 {
			_, _ = b.adapter.SendText(ctx, to,
				"Usage: /setrules <section> <sub>\nSections: bots souls vserv free; subs: general chat call", nil)
			return
		}
		b.armContentEdit(ctx, m, strings.ToLower(args[0]), strings.ToLower(args[1]))

	case "broadcast":
		if !b.requireAdmin(ctx, m) {
			return
		}
		b.sessions.Set(m.FromID, session.StateAwaitingBroadcastPayload, nil)
		_, _ = b.adapter.SendText(ctx, to, textAskBroadcast, nil)

	case "groupsend":
		if !b.requireAdmin(ctx, m) {
			return
		}
		b.sessions.Set(m.FromID, session.StateAwaitingGroupBroadcast, nil)
		_, _ = b.adapter.SendText(ctx, to, textAskGroupcast, nil)

	case "listgroups":
		if !b.requireAdmin(ctx, m) {
			return
		}
		b.listGroups(ctx, to)

	case "stats":
		if !b.requireAdmin(ctx, m) {
			return
		}
		b.sendStats(ctx, to)

	case "addadmin":
		b.rosterCommand(ctx, m, args, "Admin added.", b.roster.AddAdmin)
	case "deladmin":
		b.rosterCommand(ctx, m, args, "Admin removed.", b.roster.RemoveAdmin)
	case "block":
		b.rosterCommand(ctx, m, args, "User blocked.", b.roster.Block)
	case "unblock":
		b.rosterCommand(ctx, m, args, "User unblocked.", b.roster.Unblock)

	case "reply":
		if !b.requireAdmin(ctx, m) {
			return
		}
		id, ok := parseID(args)
		if !ok {
			_, _ = b.adapter.SendText(ctx, to, "Usage: /reply <user id>", nil)
			return
		}
		b.armAdminReply(ctx, m.FromID, id)

	default:
		_, _ = b.adapter.SendText(ctx, to, textMenuHint, nil)
	}
}

func (b *Bot) sendMenu(ctx context.Context, userID int64) {
	to := kit.ChatTarget{ChatID: userID}
	_, _ = b.adapter.SendText(ctx, to, textWelcome, nil)
	_, _ = b.adapter.SendText(ctx, to, textMenu, &kit.SendOptions{Keyboard: mainMenuKB()})
}

func (b *Bot) requireAdmin(ctx context.Context, m *kit.Message) bool {
	if b.roster.IsAdmin(m.FromID) {
		return true
	}
	_, _ = b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, textUnauthorized, nil)
	return false
}

func (b *Bot) armContentEdit(ctx context.Context, m *kit.Message, section, sub string) {
	if !b.requireAdmin(ctx, m) {
		return
	}
	if !validSection(section, sub) {
		_, _ = b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID},
			"Unknown section. Sections: bots souls vserv free; subs: general chat call", nil)
		return
	}
	b.sessions.Set(m.FromID, session.StateAwaitingContentEdit, map[string]string{
		session.AttrSection: section,
		session.AttrSub:     sub,
	})
	_, _ = b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, textAskRules, nil)
}

func (b *Bot) armAdminReply(ctx context.Context, adminID, targetID int64) {
	b.sessions.Set(adminID, session.StateAwaitingAdminReply, map[string]string{
		session.AttrTarget: strconv.FormatInt(targetID, 10),
	})
	_, _ = b.adapter.SendText(ctx, kit.ChatTarget{ChatID: adminID},
		fmt.Sprintf("Send your reply for user %d. Cancel: /cancel", targetID), nil)
}

// rosterCommand runs one of the id-taking roster mutations.
func (b *Bot) rosterCommand(ctx context.Context, m *kit.Message, args []string, done string,
	apply func(context.Context, int64) error) {
	if !b.requireAdmin(ctx, m) {
		return
	}
	to := kit.ChatTarget{ChatID: m.ChatID}
	id, ok := parseID(args)
	if !ok {
		_, _ = b.adapter.SendText(ctx, to, "Usage: send the numeric user id as the argument.", nil)
		return
	}
	if err := apply(ctx, id); err != nil {
		b.log.Warn("roster mutation failed", logx.Int64("target", id), logx.Err(err))
		_, _ = b.adapter.SendText(ctx, to, "Storage error, try again.", nil)
		return
	}
	_, _ = b.adapter.SendText(ctx, to, done, nil)
}

func (b *Bot) listGroups(ctx context.Context, to kit.ChatTarget) {
	groups, err := b.store.ListGroups(ctx)
	if err != nil {
		b.log.Warn("group list failed", logx.Err(err))
		_, _ = b.adapter.SendText(ctx, to, "Storage error, try again.", nil)
		return
	}
	if len(groups) == 0 {
		_, _ = b.adapter.SendText(ctx, to, "No groups registered yet.", nil)
		return
	}
	var sb strings.Builder
	sb.WriteString("Registered groups:\n")
	for _, g := range groups {
		title := g.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&sb, "• %s", title)
		if g.Username != "" {
			fmt.Fprintf(&sb, " @%s", g.Username)
		}
		fmt.Fprintf(&sb, " [%d]\n", g.ChatID)
	}
	_, _ = b.adapter.SendText(ctx, to, sb.String(), nil)
}

func (b *Bot) sendStats(ctx context.Context, to kit.ChatTarget) {
	users, err := b.store.CountUsers(ctx)
	if err != nil {
		b.log.Warn("stats query failed", logx.Err(err))
		_, _ = b.adapter.SendText(ctx, to, "Storage error, try again.", nil)
		return
	}
	groupIDs, err := b.store.ListGroupIDs(ctx)
	if err != nil {
		b.log.Warn("stats query failed", logx.Err(err))
		_, _ = b.adapter.SendText(ctx, to, "Storage error, try again.", nil)
		return
	}
	_, _ = b.adapter.SendText(ctx, to,
		fmt.Sprintf("\U0001F4CA Stats\nUsers: %d\nGroups: %d\nAdmins: %d",
			users, len(groupIDs), len(b.roster.Admins())), nil)
}

func parseID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func validSection(section, sub string) bool {
	switch section {
	case content.SectionBots, content.SectionSouls, content.SectionVserv, content.SectionFree:
	default:
		return false
	}
	switch sub {
	case content.SubGeneral, content.SubChat, content.SubCall:
		return true
	}
	return false
}
