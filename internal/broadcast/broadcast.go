// Package broadcast fans one payload out to a recipient snapshot. Each
// recipient gets exactly one attempt; an individual failure never aborts
// the loop. Delivery is paced by a token-bucket limiter so large fan-outs
// don't hammer the transport.
package broadcast

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	logx "relaybot/pkg/logx"
)

const defaultRatePerSec = 10

// SendFunc delivers the payload to one recipient chat.
type SendFunc func(ctx context.Context, chatID int64) error

type Result struct {
	Sent   int
	Failed int
}

type Engine struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	log     logx.Logger
}

func New(ratePerSec int, log logx.Logger) *Engine {
	e := &Engine{log: log}
	e.SetRate(ratePerSec)
	return e
}

// SetRate applies a new pacing rate; takes effect for subsequent sends.
func (e *Engine) SetRate(ratePerSec int) {
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	e.mu.Lock()
	e.limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	e.mu.Unlock()
}

func (e *Engine) limit() *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limiter
}

// Run iterates the recipient snapshot once. No ordering guarantee is
// offered to callers; recipients are attempted in the given slice order.
// Context cancellation (process shutdown) stops the loop and counts the
// unattempted remainder as failed.
func (e *Engine) Run(ctx context.Context, recipients []int64, send SendFunc) Result {
	var res Result
	for i, chatID := range recipients {
		if err := e.limit().Wait(ctx); err != nil {
			res.Failed += len(recipients) - i
			break
		}
		if err := send(ctx, chatID); err != nil {
			res.Failed++
			e.log.Debug("broadcast delivery failed",
				logx.Int64("chat", chatID), logx.Err(err))
			continue
		}
		res.Sent++
	}
	e.log.Info("broadcast finished",
		logx.Int("sent", res.Sent),
		logx.Int("failed", res.Failed),
		logx.Int("total", len(recipients)))
	return res
}
