package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "relaybot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite store, creating the file and schema as needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if log.IsZero() {
		log = logx.Nop()
	}
	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- users ----

func (s *sqliteStore) UpsertUser(ctx context.Context, u UserRecord) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	now := time.Now()
	if u.FirstSeen.IsZero() {
		u.FirstSeen = now
	}
	if u.LastSeen.IsZero() {
		u.LastSeen = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, username, full_name, is_admin, blocked, first_seen, last_seen)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   username=excluded.username,
		   full_name=excluded.full_name,
		   last_seen=excluded.last_seen`,
		u.ID, nullStr(u.Username), nullStr(u.FullName), boolInt(u.IsAdmin), boolInt(u.Blocked),
		u.FirstSeen.Format(time.RFC3339Nano), u.LastSeen.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) GetUser(ctx context.Context, id int64) (UserRecord, bool, error) {
	if s == nil || s.db == nil {
		return UserRecord{}, false, ErrClosed
	}
	var (
		u                   UserRecord
		username, fullName  sql.NullString
		isAdmin, blocked    int
		firstSeen, lastSeen string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, full_name, is_admin, blocked, first_seen, last_seen
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &username, &fullName, &isAdmin, &blocked, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, false, nil
	}
	if err != nil {
		return UserRecord{}, false, err
	}
	u.Username = username.String
	u.FullName = fullName.String
	u.IsAdmin = isAdmin != 0
	u.Blocked = blocked != 0
	u.FirstSeen, _ = time.Parse(time.RFC3339Nano, firstSeen)
	u.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)
	return u, true, nil
}

func (s *sqliteStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, `SELECT id FROM users ORDER BY id`)
}

func (s *sqliteStore) CountUsers(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// ---- groups ----

func (s *sqliteStore) UpsertGroup(ctx context.Context, g GroupRecord) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if g.LastSeen.IsZero() {
		g.LastSeen = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups(chat_id, title, username, active, last_seen)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   title=excluded.title,
		   username=excluded.username,
		   active=excluded.active,
		   last_seen=excluded.last_seen`,
		g.ChatID, nullStr(g.Title), nullStr(g.Username), boolInt(g.Active),
		g.LastSeen.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) ListGroups(ctx context.Context) ([]GroupRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, title, username, active, last_seen
		 FROM groups WHERE active = 1 ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GroupRecord
	for rows.Next() {
		var (
			g               GroupRecord
			title, username sql.NullString
			active          int
			lastSeen        string
		)
		if err := rows.Scan(&g.ChatID, &title, &username, &active, &lastSeen); err != nil {
			return nil, err
		}
		g.Title = title.String
		g.Username = username.String
		g.Active = active != 0
		g.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ListGroupIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, `SELECT chat_id FROM groups WHERE active = 1 ORDER BY chat_id`)
}

// ---- admin / blocked flags ----

func (s *sqliteStore) SetAdmin(ctx context.Context, id int64, admin bool) error {
	return s.setFlag(ctx, id, "is_admin", admin)
}

func (s *sqliteStore) ListAdminIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, `SELECT id FROM users WHERE is_admin = 1 ORDER BY id`)
}

func (s *sqliteStore) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return s.setFlag(ctx, id, "blocked", blocked)
}

func (s *sqliteStore) ListBlockedIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, `SELECT id FROM users WHERE blocked = 1 ORDER BY id`)
}

// setFlag flips a user flag, inserting a minimal row if the user was never
// seen (admins can be seeded before their first interaction).
func (s *sqliteStore) setFlag(ctx context.Context, id int64, column string, v bool) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if column != "is_admin" && column != "blocked" {
		return fmt.Errorf("unknown user flag %q", column)
	}
	now := time.Now().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, `+column+`, first_seen, last_seen) VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET `+column+`=excluded.`+column,
		id, boolInt(v), now, now,
	)
	return err
}

// ---- rules ----

func (s *sqliteStore) GetRule(ctx context.Context, section, sub string) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrClosed
	}
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT text FROM rules WHERE section = ? AND sub = ?`, section, sub,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (s *sqliteStore) SetRule(ctx context.Context, section, sub, text string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rules(section, sub, text, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(section, sub) DO UPDATE SET
		   text=excluded.text,
		   updated_at=excluded.updated_at`,
		section, sub, text, time.Now().Format(time.RFC3339Nano),
	)
	return err
}

// ---- audit ----

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor_id, target_id, direction, kind, summary)
		 VALUES(?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.ActorID, e.TargetID,
		e.Direction, nullStr(e.Kind), nullStr(e.Summary),
	)
	return err
}

func (s *sqliteStore) PruneAudit(ctx context.Context, olderThan time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit WHERE at < ?`, olderThan.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ---- helpers ----

func (s *sqliteStore) listIDs(ctx context.Context, query string) ([]int64, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
