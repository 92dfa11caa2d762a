// Package storage is the durable layer: known users and groups (with admin
// and blocked flags), per-section rules text, and an append-only audit log.
// Backed by SQLite (modernc.org/sqlite, cgo-free).
package storage

import (
	"context"
	"time"
)

// Store is the persistence API used by the relay core and command surface.
type Store interface {
	UpsertUser(ctx context.Context, u UserRecord) error
	GetUser(ctx context.Context, id int64) (UserRecord, bool, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int, error)

	UpsertGroup(ctx context.Context, g GroupRecord) error
	ListGroups(ctx context.Context) ([]GroupRecord, error)
	ListGroupIDs(ctx context.Context) ([]int64, error)

	SetAdmin(ctx context.Context, id int64, admin bool) error
	ListAdminIDs(ctx context.Context) ([]int64, error)

	SetBlocked(ctx context.Context, id int64, blocked bool) error
	ListBlockedIDs(ctx context.Context) ([]int64, error)

	GetRule(ctx context.Context, section, sub string) (string, error)
	SetRule(ctx context.Context, section, sub, text string) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	PruneAudit(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
