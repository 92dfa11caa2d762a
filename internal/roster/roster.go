// Package roster holds the administrator set and the block-list. Both are
// persisted as user flags in storage and cached in memory so relay-path
// checks are synchronous.
package roster

import (
	"context"
	"sort"
	"sync"

	"relaybot/internal/storage"
	logx "relaybot/pkg/logx"
)

type Roster struct {
	mu      sync.RWMutex
	admins  map[int64]struct{}
	blocked map[int64]struct{}

	store storage.Store
	log   logx.Logger
}

// Load builds the roster from storage.
func Load(ctx context.Context, store storage.Store, log logx.Logger) (*Roster, error) {
	r := &Roster{
		admins:  make(map[int64]struct{}),
		blocked: make(map[int64]struct{}),
		store:   store,
		log:     log,
	}
	adminIDs, err := store.ListAdminIDs(ctx)
	if err != nil {
		return nil, err
	}
	blockedIDs, err := store.ListBlockedIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range adminIDs {
		r.admins[id] = struct{}{}
	}
	for _, id := range blockedIDs {
		r.blocked[id] = struct{}{}
	}
	return r, nil
}

// Seed grants admin rights to the configured ids. It never revokes: the
// seed is the trusted recovery path, runtime removals stay in effect for
// everyone not listed.
func (r *Roster) Seed(ctx context.Context, ids []int64) {
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if err := r.AddAdmin(ctx, id); err != nil {
			r.log.Warn("admin seed failed", logx.Int64("user", id), logx.Err(err))
		}
	}
}

func (r *Roster) IsAdmin(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.admins[id]
	return ok
}

func (r *Roster) AddAdmin(ctx context.Context, id int64) error {
	if err := r.store.SetAdmin(ctx, id, true); err != nil {
		return err
	}
	r.mu.Lock()
	r.admins[id] = struct{}{}
	r.mu.Unlock()
	return nil
}

// RemoveAdmin revokes admin rights. Removing the last admin is allowed;
// recovery is via the configured seed ids.
func (r *Roster) RemoveAdmin(ctx context.Context, id int64) error {
	if err := r.store.SetAdmin(ctx, id, false); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.admins, id)
	r.mu.Unlock()
	return nil
}

// Admins returns the admin ids in ascending order.
func (r *Roster) Admins() []int64 {
	r.mu.RLock()
	out := make([]int64, 0, len(r.admins))
	for id := range r.admins {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Roster) IsBlocked(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.blocked[id]
	return ok
}

func (r *Roster) Block(ctx context.Context, id int64) error {
	if err := r.store.SetBlocked(ctx, id, true); err != nil {
		return err
	}
	r.mu.Lock()
	r.blocked[id] = struct{}{}
	r.mu.Unlock()
	return nil
}

func (r *Roster) Unblock(ctx context.Context, id int64) error {
	if err := r.store.SetBlocked(ctx, id, false); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.blocked, id)
	r.mu.Unlock()
	return nil
}
