// Package relay routes inbound user messages to every administrator with a
// reply affordance bound back to the source user, and routes admin replies
// to their target. Fan-out is best-effort per recipient; one admin's
// delivery failure never aborts the rest.
package relay

import (
	"context"

	"relaybot/internal/storage"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeBlocked
	OutcomeNoAdmins
)

// Result reports one relay attempt. Delivered counts admins that received
// both the header and the payload.
type Result struct {
	Outcome   Outcome
	Delivered int
	Failed    int
}

// Directory is the roster view the router needs.
type Directory interface {
	Admins() []int64
	IsBlocked(id int64) bool
}

type Router struct {
	adapter kit.Adapter
	dir     Directory
	audit   storage.Store
	log     logx.Logger
}

func NewRouter(adapter kit.Adapter, dir Directory, audit storage.Store, log logx.Logger) *Router {
	return &Router{adapter: adapter, dir: dir, audit: audit, log: log}
}

// Relay fans the envelope out to every admin. Preconditions: the source
// must not be blocked and the roster must be non-empty; both refusals are
// distinct outcomes with zero admin contact. The attempt is audited
// regardless of per-admin outcome.
func (r *Router) Relay(ctx context.Context, env *Envelope) Result {
	if r.dir.IsBlocked(env.SourceUserID) {
		return Result{Outcome: OutcomeBlocked}
	}
	admins := r.dir.Admins()
	if len(admins) == 0 {
		return Result{Outcome: OutcomeNoAdmins}
	}

	header := env.Header()
	opt := &kit.SendOptions{
		ParseMode: "HTML",
		Keyboard: [][]kit.Button{
			{{Text: "✉️ Reply", Data: ReplyToken(env.SourceUserID)}},
		},
	}

	res := Result{Outcome: OutcomeDelivered}
	for _, adminID := range admins {
		if err := r.deliverOne(ctx, adminID, header, opt, env); err != nil {
			res.Failed++
			r.log.Warn("relay delivery failed",
				logx.Int64("admin", adminID),
				logx.Int64("source", env.SourceUserID),
				logx.Err(err))
			continue
		}
		res.Delivered++
	}

	if err := r.audit.AppendAudit(ctx, storage.AuditEntry{
		ActorID:   env.SourceUserID,
		Direction: storage.AuditUserToAdmin,
		Kind:      env.Kind,
		Summary:   env.Summary,
	}); err != nil {
		r.log.Warn("audit append failed", logx.Err(err))
	}
	return res
}

func (r *Router) deliverOne(ctx context.Context, adminID int64, header string, opt *kit.SendOptions, env *Envelope) error {
	to := kit.ChatTarget{ChatID: adminID}
	if _, err := r.adapter.SendText(ctx, to, header, opt); err != nil {
		return err
	}
	if len(env.Album) > 0 {
		return r.adapter.SendAlbum(ctx, to, env.Album, env.AlbumCaption)
	}
	if env.CopyFrom != nil {
		_, err := r.adapter.CopyMessage(ctx, to, *env.CopyFrom, opt)
		return err
	}
	return nil
}

// ReplyBack copies an admin's message verbatim to the target user. The
// caller performs the admin check; transport failure returns false with no
// retry.
func (r *Router) ReplyBack(ctx context.Context, adminID, targetUserID int64, src kit.MessageRef, summary string) bool {
	_, err := r.adapter.CopyMessage(ctx, kit.ChatTarget{ChatID: targetUserID}, src, nil)
	if aerr := r.audit.AppendAudit(ctx, storage.AuditEntry{
		ActorID:   adminID,
		TargetID:  targetUserID,
		Direction: storage.AuditAdminToUser,
		Summary:   summary,
	}); aerr != nil {
		r.log.Warn("audit append failed", logx.Err(aerr))
	}
	if err != nil {
		r.log.Warn("reply delivery failed",
			logx.Int64("admin", adminID),
			logx.Int64("target", targetUserID),
			logx.Err(err))
		return false
	}
	return true
}
