package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// UserRecord is one known private-chat user. Admin and blocked flags live
// on the user row, so the roster and blocklist are plain queries.
type UserRecord struct {
	ID        int64
	Username  string
	FullName  string
	IsAdmin   bool
	Blocked   bool
	FirstSeen time.Time
	LastSeen  time.Time
}

// GroupRecord is one group chat the bot has seen. Registered groups are the
// recipient set for group broadcasts.
type GroupRecord struct {
	ChatID   int64
	Title    string
	Username string
	Active   bool
	LastSeen time.Time
}

// Audit directions.
const (
	AuditUserToAdmin = "user_to_admin"
	AuditAdminToUser = "admin_to_user"
	AuditBroadcast   = "broadcast"
)

// AuditEntry records one relay/reply/broadcast attempt.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time
	ActorID   int64
	TargetID  int64 // 0 for fan-out entries
	Direction string
	Kind      string
	Summary   string
}
