// Package album coalesces the parts of one multi-media submission into a
// single unit. Parts arrive keyed by (sender, group id); a flush fires only
// after a contiguous quiet period with no new parts.
package album

import (
	"sync"
	"time"

	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

// DefaultQuietPeriod matches the debounce window used for Telegram media
// groups, whose parts arrive as separate messages within a couple seconds.
const DefaultQuietPeriod = 2 * time.Second

// FlushFunc receives exactly one call per completed album.
type FlushFunc func(senderID int64, groupID string, items []kit.AlbumItem, caption string)

type key struct {
	sender int64
	group  string
}

type buffer struct {
	items   []kit.AlbumItem
	caption string
	timer   *time.Timer

	// gen invalidates a timer that fires after a newer part re-armed the
	// buffer; a part arriving exactly as the old timer fires is never lost
	// and never double-flushed.
	gen uint64
}

type Aggregator struct {
	mu    sync.Mutex
	quiet time.Duration
	bufs  map[key]*buffer

	flush FlushFunc
	log   logx.Logger
}

func New(quiet time.Duration, flush FlushFunc, log logx.Logger) *Aggregator {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Aggregator{
		quiet: quiet,
		bufs:  make(map[key]*buffer),
		flush: flush,
		log:   log,
	}
}

// SetQuietPeriod applies a new debounce window to buffers created after the
// call. In-flight buffers keep their armed timers.
func (a *Aggregator) SetQuietPeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	a.mu.Lock()
	a.quiet = d
	a.mu.Unlock()
}

// Add appends one part to the (sender, group) buffer and re-arms its flush
// timer. Distinct group ids for the same sender buffer independently; two
// concurrent albums never merge.
func (a *Aggregator) Add(senderID int64, groupID string, item kit.AlbumItem, caption string) {
	k := key{sender: senderID, group: groupID}

	a.mu.Lock()
	b := a.bufs[k]
	if b == nil {
		b = &buffer{}
		a.bufs[k] = b
	}
	b.items = append(b.items, item)
	if caption != "" {
		b.caption = caption
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	quiet := a.quiet
	b.timer = time.AfterFunc(quiet, func() { a.fire(k, gen) })
	a.mu.Unlock()
}

// Pending reports how many buffers are currently waiting to flush.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.bufs)
}

func (a *Aggregator) fire(k key, gen uint64) {
	a.mu.Lock()
	b := a.bufs[k]
	if b == nil || b.gen != gen {
		// A newer part re-armed the buffer after this timer was scheduled.
		a.mu.Unlock()
		return
	}
	delete(a.bufs, k)
	items := b.items
	caption := b.caption
	a.mu.Unlock()

	a.log.Debug("album flushed",
		logx.Int64("sender", k.sender),
		logx.String("group", k.group),
		logx.Int("parts", len(items)))
	a.flush(k.sender, k.group, items, caption)
}
