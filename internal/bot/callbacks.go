package bot

import (
	"context"
	"strings"

	"relaybot/internal/content"
	"relaybot/internal/relay"
	"relaybot/internal/session"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

func (b *Bot) handleCallback(ctx context.Context, cb *kit.Callback) {
	ack := func(note string) { _ = b.adapter.AnswerCallback(ctx, cb.ID, note) }

	switch {
	case cb.Data == cbMenu:
		ack("")
		b.sessions.Clear(cb.FromID)
		b.sendMenu(ctx, cb.FromID)

	case strings.HasPrefix(cb.Data, cbSec):
		ack("")
		b.showSection(ctx, cb.FromID, strings.TrimPrefix(cb.Data, cbSec))

	case strings.HasPrefix(cb.Data, cbSouls):
		ack("")
		b.showSoulsRules(ctx, cb.FromID, strings.TrimPrefix(cb.Data, cbSouls))

	case strings.HasPrefix(cb.Data, cbAct):
		b.handleAction(ctx, cb, strings.TrimPrefix(cb.Data, cbAct), ack)

	case cb.Data == cbAgain:
		ack("")
		b.sessions.Set(cb.FromID, session.StateAwaitingRelayText, nil)
		_, _ = b.adapter.SendText(ctx, kit.ChatTarget{ChatID: cb.FromID}, textAskAgain, nil)

	default:
		if target, ok := relay.ParseReplyToken(cb.Data); ok {
			if !b.roster.IsAdmin(cb.FromID) {
				ack(textUnauthorized)
				return
			}
			ack("")
			b.armAdminReply(ctx, cb.FromID, target)
			return
		}
		b.log.Debug("unknown callback", logx.String("data", cb.Data), logx.Int64("from", cb.FromID))
		ack("")
	}
}

// showSection renders one main-menu section: its stored text plus the
// section's action keyboard. Souls opens a submenu instead.
func (b *Bot) showSection(ctx context.Context, userID int64, section string) {
	to := kit.ChatTarget{ChatID: userID}

	if section == content.SectionSouls {
		_, _ = b.adapter.SendText(ctx, to, "Souls group — whom do you need?",
			&kit.SendOptions{Keyboard: soulsSubmenuKB()})
		return
	}

	var kind, fallback string
	switch section {
	case content.SectionBots:
		kind, fallback = relay.KindBots, "Custom bots: describe what you need and I'll forward it."
	case content.SectionVserv:
		kind, fallback = relay.KindVserv, "Virtual services: describe what you need and I'll forward it."
	case content.SectionFree:
		kind, fallback = relay.KindFree, textFreeIntro
	default:
		b.sendMenu(ctx, userID)
		return
	}

	text := b.ruleText(ctx, section, content.SubGeneral, fallback)
	_, _ = b.adapter.SendText(ctx, to, text, &kit.SendOptions{Keyboard: quickSendKB(kind)})
}

func (b *Bot) showSoulsRules(ctx context.Context, userID int64, sub string) {
	var kind, fallback string
	switch sub {
	case content.SubChat:
		kind, fallback = relay.KindChat, "Chat admin request: read the terms, then accept to send your message."
	case content.SubCall:
		kind, fallback = relay.KindCall, "Call admin request: read the terms, then accept to send your message."
	default:
		b.sendMenu(ctx, userID)
		return
	}
	text := b.ruleText(ctx, content.SectionSouls, sub, fallback)
	_, _ = b.adapter.SendText(ctx, kit.ChatTarget{ChatID: userID}, text,
		&kit.SendOptions{Keyboard: afterRulesKB(kind)})
}

// handleAction processes act|send|<kind> and act|cancel|<kind>.
func (b *Bot) handleAction(ctx context.Context, cb *kit.Callback, rest string, ack func(string)) {
	to := kit.ChatTarget{ChatID: cb.FromID}
	verb, kind, _ := strings.Cut(rest, "|")

	switch verb {
	case "send":
		ack("")
		b.sessions.Set(cb.FromID, session.StateAwaitingRelayText, map[string]string{
			session.AttrKind: kind,
		})
		_, _ = b.adapter.SendText(ctx, to, textAskPayload, nil)
	case "cancel":
		ack(textCancelled)
		b.sessions.Clear(cb.FromID)
		_, _ = b.adapter.SendText(ctx, to, textMenu, &kit.SendOptions{Keyboard: mainMenuKB()})
	default:
		ack("")
	}
}

func (b *Bot) ruleText(ctx context.Context, section, sub, fallback string) string {
	text, err := b.rules.Get(ctx, section, sub)
	if err != nil {
		b.log.Warn("rules read failed",
			logx.String("section", section), logx.String("sub", sub), logx.Err(err))
	}
	if text == "" {
		return fallback
	}
	return text
}
