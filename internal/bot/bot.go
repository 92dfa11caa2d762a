// Package bot is the command surface: it consumes classified updates from
// the transport adapter and drives the session, relay, broadcast and
// content components. One worker processes updates in arrival order;
// timers (album flush, auto-delete) interleave on their own goroutines.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"relaybot/internal/album"
	"relaybot/internal/autodelete"
	"relaybot/internal/broadcast"
	"relaybot/internal/content"
	"relaybot/internal/relay"
	"relaybot/internal/roster"
	"relaybot/internal/session"
	"relaybot/internal/storage"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

type Config struct {
	TriggerWord     string
	TriggerReplyTTL time.Duration
}

type Bot struct {
	adapter  kit.Adapter
	sessions *session.Store
	roster   *roster.Roster
	rules    *content.Store
	store    storage.Store
	relay    *relay.Router
	albums   *album.Aggregator
	engine   *broadcast.Engine
	deleter  *autodelete.Scheduler
	log      logx.Logger

	cfgMu sync.RWMutex
	cfg   Config

	ctxMu  sync.RWMutex
	runCtx context.Context
}

type Deps struct {
	Adapter  kit.Adapter
	Sessions *session.Store
	Roster   *roster.Roster
	Rules    *content.Store
	Store    storage.Store
	Relay    *relay.Router
	Engine   *broadcast.Engine
	Deleter  *autodelete.Scheduler
	Logger   logx.Logger
}

func New(cfg Config, deps Deps, quietPeriod time.Duration) *Bot {
	b := &Bot{
		adapter:  deps.Adapter,
		sessions: deps.Sessions,
		roster:   deps.Roster,
		rules:    deps.Rules,
		store:    deps.Store,
		relay:    deps.Relay,
		engine:   deps.Engine,
		deleter:  deps.Deleter,
		log:      deps.Logger,
		cfg:      cfg,
	}
	b.albums = album.New(quietPeriod, b.onAlbumFlush, deps.Logger.With(logx.String("comp", "album")))
	return b
}

// Albums exposes the aggregator for live config updates.
func (b *Bot) Albums() *album.Aggregator { return b.albums }

// Engine exposes the broadcast engine for live config updates.
func (b *Bot) Engine() *broadcast.Engine { return b.engine }

func (b *Bot) Apply(cfg Config) {
	b.cfgMu.Lock()
	b.cfg = cfg
	b.cfgMu.Unlock()
}

func (b *Bot) config() Config {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg
}

func (b *Bot) context() context.Context {
	b.ctxMu.RLock()
	defer b.ctxMu.RUnlock()
	if b.runCtx != nil {
		return b.runCtx
	}
	return context.Background()
}

// DispatchLoop consumes updates until ctx is canceled. Returns nil on
// clean shutdown.
func (b *Bot) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	b.ctxMu.Lock()
	b.runCtx = ctx
	b.ctxMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, up)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, up kit.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panicked",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			b.handleMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			b.handleCallback(ctx, up.Callback)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *kit.Message) {
	if m.ChatKind.IsGroup() {
		b.handleGroupMessage(ctx, m)
		return
	}
	if m.ChatKind != kit.ChatPrivate {
		return
	}

	b.upsertUser(ctx, m)

	if cmd, args, ok := parseCommand(m.Text); ok {
		b.handleCommand(ctx, m, cmd, args)
		return
	}
	b.handleStateMessage(ctx, m)
}

// handleGroupMessage registers the group and answers the trigger word with
// a deep link into the private chat, removed again after a short TTL.
func (b *Bot) handleGroupMessage(ctx context.Context, m *kit.Message) {
	if err := b.store.UpsertGroup(ctx, storage.GroupRecord{
		ChatID:   m.ChatID,
		Title:    m.ChatTitle,
		Username: m.ChatUsername,
		Active:   true,
	}); err != nil {
		b.log.Warn("group upsert failed", logx.Int64("chat", m.ChatID), logx.Err(err))
	}

	cfg := b.config()
	if cfg.TriggerWord == "" {
		return
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if !strings.Contains(strings.ToLower(text), strings.ToLower(cfg.TriggerWord)) {
		return
	}

	sent, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, textGroupPing,
		&kit.SendOptions{Keyboard: deepLinkKB(b.adapter.Username())})
	if err != nil {
		b.log.Debug("group ping failed", logx.Int64("chat", m.ChatID), logx.Err(err))
		return
	}
	ttl := cfg.TriggerReplyTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	b.deleter.Schedule(sent, ttl)
}

func (b *Bot) upsertUser(ctx context.Context, m *kit.Message) {
	if err := b.store.UpsertUser(ctx, storage.UserRecord{
		ID:       m.FromID,
		Username: m.FromUsername,
		FullName: fullName(m),
	}); err != nil {
		b.log.Warn("user upsert failed", logx.Int64("user", m.FromID), logx.Err(err))
	}
}

// onAlbumFlush is called by the aggregator exactly once per completed
// album. The session may already be gone (user cancelled mid-quiet-period);
// captured media is relayed anyway.
func (b *Bot) onAlbumFlush(senderID int64, groupID string, items []kit.AlbumItem, caption string) {
	ctx, cancel := context.WithTimeout(b.context(), 60*time.Second)
	defer cancel()

	state, attrs := b.sessions.Get(senderID)
	kind := attrs[session.AttrKind]
	if kind == "" {
		kind = relay.KindGeneral
	}

	env := &relay.Envelope{
		SourceUserID: senderID,
		Kind:         kind,
		Album:        items,
		AlbumCaption: caption,
		Summary:      fmt.Sprintf("album(%d)", len(items)),
	}
	if u, ok, err := b.store.GetUser(ctx, senderID); err == nil && ok {
		env.SourceUsername = u.Username
		env.SourceFullName = u.FullName
	}

	res := b.relay.Relay(ctx, env)
	if res.Outcome == relay.OutcomeDelivered && state == session.StateAwaitingRelayText {
		b.sessions.Clear(senderID)
	}
	b.reportRelayOutcome(ctx, senderID, res)
}

func (b *Bot) reportRelayOutcome(ctx context.Context, userID int64, res relay.Result) {
	to := kit.ChatTarget{ChatID: userID}
	switch res.Outcome {
	case relay.OutcomeBlocked:
		_, _ = b.adapter.SendText(ctx, to, textBlocked, nil)
	case relay.OutcomeNoAdmins:
		_, _ = b.adapter.SendText(ctx, to, textNoAdmins, nil)
	default:
		// The fan-out attempt itself is "sent"; there is no delivery
		// acknowledgment channel from admin clients.
		_, _ = b.adapter.SendText(ctx, to, textSent, &kit.SendOptions{Keyboard: sendAgainKB()})
	}
}

func parseCommand(text string) (cmd string, args []string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	cmd = strings.TrimPrefix(fields[0], "/")
	// Strip the @botname suffix Telegram appends in some clients.
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:], true
}
