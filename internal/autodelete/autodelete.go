// Package autodelete removes transient bot messages after a timeout.
// Strictly best-effort: a failed delete (message already gone, missing
// rights) is swallowed, never surfaced to users.
package autodelete

import (
	"context"
	"time"

	rtsup "relaybot/internal/runtime/supervisor"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

type Scheduler struct {
	adapter kit.Adapter
	sup     *rtsup.Supervisor
	log     logx.Logger
}

func New(adapter kit.Adapter, log logx.Logger) *Scheduler {
	return &Scheduler{adapter: adapter, log: log}
}

// Start binds pending deletions to ctx; on shutdown they are abandoned
// rather than fired early.
func (s *Scheduler) Start(ctx context.Context) {
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
}

func (s *Scheduler) Stop(ctx context.Context) {
	if s.sup == nil {
		return
	}
	s.sup.Cancel()
	_ = s.sup.Wait(ctx)
}

// Schedule arms a deferred delete of the given message. Fire-and-forget:
// there is no cancellation handle.
func (s *Scheduler) Schedule(ref kit.MessageRef, delay time.Duration) {
	if s.sup == nil || delay < 0 {
		return
	}
	s.sup.Go0("autodelete", func(ctx context.Context) {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.adapter.DeleteMessage(dctx, ref); err != nil {
			s.log.Debug("auto-delete failed",
				logx.Int64("chat", ref.ChatID),
				logx.Int("message", ref.MessageID),
				logx.Err(err))
		}
	})
}
