package bot

import (
	"context"
	"fmt"
	"strconv"

	"relaybot/internal/relay"
	"relaybot/internal/session"
	"relaybot/internal/storage"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

// handleStateMessage routes a non-command private message by the sender's
// session state.
func (b *Bot) handleStateMessage(ctx context.Context, m *kit.Message) {
	state, attrs := b.sessions.Get(m.FromID)

	switch state {
	case session.StateAwaitingRelayText:
		b.relayUserMessage(ctx, m, attrs)
	case session.StateAwaitingAdminReply:
		b.forwardAdminReply(ctx, m, attrs)
	case session.StateAwaitingBroadcastPayload:
		b.runBroadcast(ctx, m, false)
	case session.StateAwaitingGroupBroadcast:
		b.runBroadcast(ctx, m, true)
	case session.StateAwaitingContentEdit:
		b.saveContent(ctx, m, attrs)
	default:
		_, _ = b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, textMenuHint, nil)
	}
}

func (b *Bot) relayUserMessage(ctx context.Context, m *kit.Message, attrs map[string]string) {
	if b.roster.IsBlocked(m.FromID) {
		b.sessions.Clear(m.FromID)
		_, _ = b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, textBlocked, nil)
		return
	}

	// Album parts go through the aggregator; the flush callback builds
	// one envelope for the whole group.
	if m.AlbumID != "" && m.Media != nil {
		b.albums.Add(m.FromID, m.AlbumID, kit.AlbumItem{
			Kind:   m.Media.Kind,
			FileID: m.Media.FileID,
		}, m.Caption)
		return
	}

	kind := attrs[session.AttrKind]
	if kind == "" {
		kind = relay.KindGeneral
	}
	ref := m.Ref()
	env := &relay.Envelope{
		SourceUserID:   m.FromID,
		SourceUsername: m.FromUsername,
		SourceFullName: fullName(m),
		Kind:           kind,
		CopyFrom:       &ref,
		Summary:        summarize(m),
	}

	res := b.relay.Relay(ctx, env)
	if res.Outcome == relay.OutcomeDelivered {
		b.sessions.Clear(m.FromID)
	}
	b.reportRelayOutcome(ctx, m.FromID, res)
}

func (b *Bot) forwardAdminReply(ctx context.Context, m *kit.Message, attrs map[string]string) {
	to := kit.ChatTarget{ChatID: m.ChatID}
	if !b.roster.IsAdmin(m.FromID) {
		b.sessions.Clear(m.FromID)
		_, _ = b.adapter.SendText(ctx, to, textUnauthorized, nil)
		return
	}
	target, err := strconv.ParseInt(attrs[session.AttrTarget], 10, 64)
	if err != nil || target == 0 {
		b.sessions.Clear(m.FromID)
		_, _ = b.adapter.SendText(ctx, to, textMenuHint, nil)
		return
	}

	ok := b.relay.ReplyBack(ctx, m.FromID, target, m.Ref(), summarize(m))
	b.sessions.Clear(m.FromID)
	if !ok {
		_, _ = b.adapter.SendText(ctx, to,
			"❌ Could not deliver the reply (user may have blocked the bot).", nil)
		return
	}
	_, _ = b.adapter.SendText(ctx, to, "✅ Reply delivered.",
		&kit.SendOptions{Keyboard: replyAgainKB(target)})
}

// runBroadcast copies the admin's message to every known user or group.
func (b *Bot) runBroadcast(ctx context.Context, m *kit.Message, toGroups bool) {
	to := kit.ChatTarget{ChatID: m.ChatID}
	b.sessions.Clear(m.FromID)
	if !b.roster.IsAdmin(m.FromID) {
		_, _ = b.adapter.SendText(ctx, to, textUnauthorized, nil)
		return
	}

	var (
		recipients []int64
		err        error
		scope      = "users"
	)
	if toGroups {
		recipients, err = b.store.ListGroupIDs(ctx)
		scope = "groups"
	} else {
		recipients, err = b.store.ListUserIDs(ctx)
	}
	if err != nil {
		b.log.Warn("broadcast recipient list failed", logx.String("scope", scope), logx.Err(err))
		_, _ = b.adapter.SendText(ctx, to, "Storage error, try again.", nil)
		return
	}

	src := m.Ref()
	res := b.engine.Run(ctx, recipients, func(ctx context.Context, chatID int64) error {
		_, err := b.adapter.CopyMessage(ctx, kit.ChatTarget{ChatID: chatID}, src, nil)
		return err
	})

	if err := b.store.AppendAudit(ctx, storage.AuditEntry{
		ActorID:   m.FromID,
		Direction: storage.AuditBroadcast,
		Kind:      scope,
		Summary:   summarize(m),
	}); err != nil {
		b.log.Warn("audit append failed", logx.Err(err))
	}

	_, _ = b.adapter.SendText(ctx, to,
		fmt.Sprintf("Broadcast to %s finished: sent %d, failed %d.", scope, res.Sent, res.Failed), nil)
}

func (b *Bot) saveContent(ctx context.Context, m *kit.Message, attrs map[string]string) {
	to := kit.ChatTarget{ChatID: m.ChatID}
	if !b.roster.IsAdmin(m.FromID) {
		b.sessions.Clear(m.FromID)
		_, _ = b.adapter.SendText(ctx, to, textUnauthorized, nil)
		return
	}
	section, sub := attrs[session.AttrSection], attrs[session.AttrSub]
	if section == "" || sub == "" {
		b.sessions.Clear(m.FromID)
		_, _ = b.adapter.SendText(ctx, to, textMenuHint, nil)
		return
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if text == "" {
		_, _ = b.adapter.SendText(ctx, to, "Send plain text for this section. Cancel: /cancel", nil)
		return
	}
	if err := b.rules.Set(ctx, section, sub, text); err != nil {
		b.log.Warn("rules write failed",
			logx.String("section", section), logx.String("sub", sub), logx.Err(err))
		_, _ = b.adapter.SendText(ctx, to, "Storage error, try again.", nil)
		return
	}
	b.sessions.Clear(m.FromID)
	_, _ = b.adapter.SendText(ctx, to, textRulesSaved, nil)
}

func fullName(m *kit.Message) string {
	if m.FromLastName == "" {
		return m.FromFirstName
	}
	if m.FromFirstName == "" {
		return m.FromLastName
	}
	return m.FromFirstName + " " + m.FromLastName
}

func summarize(m *kit.Message) string {
	if m.Text != "" {
		return clip(m.Text, 120)
	}
	if m.Caption != "" {
		return clip(m.Caption, 120)
	}
	if m.Media != nil {
		return string(m.Media.Kind)
	}
	return "message"
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
