package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "relaybot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}, logx.Nop()); err == nil {
		t.Fatal("Open with empty path succeeded")
	}
}

func TestUserUpsertPreservesFlags(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertUser(ctx, UserRecord{ID: 7, Username: "alice", FullName: "Alice"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := st.SetAdmin(ctx, 7, true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}

	// A later sighting must not reset the admin flag.
	if err := st.UpsertUser(ctx, UserRecord{ID: 7, Username: "alice2", FullName: "Alice B"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	u, ok, err := st.GetUser(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("GetUser: ok=%v err=%v", ok, err)
	}
	if u.Username != "alice2" || u.FullName != "Alice B" {
		t.Fatalf("identity not updated: %+v", u)
	}
	if !u.IsAdmin {
		t.Fatal("admin flag lost on re-upsert")
	}
}

func TestGetUserAbsent(t *testing.T) {
	st := openTestStore(t)
	_, ok, err := st.GetUser(context.Background(), 12345)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if ok {
		t.Fatal("absent user reported present")
	}
}

func TestSetFlagOnUnseenUser(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// Admins can be seeded before their first message.
	if err := st.SetAdmin(ctx, 555, true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	ids, err := st.ListAdminIDs(ctx)
	if err != nil {
		t.Fatalf("ListAdminIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != 555 {
		t.Fatalf("admin ids = %v, want [555]", ids)
	}

	if err := st.SetAdmin(ctx, 555, false); err != nil {
		t.Fatalf("SetAdmin(false): %v", err)
	}
	ids, _ = st.ListAdminIDs(ctx)
	if len(ids) != 0 {
		t.Fatalf("admin ids after revoke = %v, want empty", ids)
	}
}

func TestBlockedList(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if err := st.UpsertUser(ctx, UserRecord{ID: id}); err != nil {
			t.Fatalf("UpsertUser(%d): %v", id, err)
		}
	}
	if err := st.SetBlocked(ctx, 2, true); err != nil {
		t.Fatalf("SetBlocked: %v", err)
	}

	ids, err := st.ListBlockedIDs(ctx)
	if err != nil {
		t.Fatalf("ListBlockedIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("blocked ids = %v, want [2]", ids)
	}

	n, err := st.CountUsers(ctx)
	if err != nil || n != 3 {
		t.Fatalf("CountUsers = %d, %v, want 3", n, err)
	}
}

func TestGroupsRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertGroup(ctx, GroupRecord{ChatID: -100, Title: "Ops", Active: true}); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	if err := st.UpsertGroup(ctx, GroupRecord{ChatID: -200, Title: "Old", Active: false}); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}

	groups, err := st.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].ChatID != -100 || groups[0].Title != "Ops" {
		t.Fatalf("groups = %+v, want only the active one", groups)
	}

	ids, err := st.ListGroupIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != -100 {
		t.Fatalf("group ids = %v, %v", ids, err)
	}
}

func TestRulesAbsentReadsEmpty(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	text, err := st.GetRule(ctx, "bots", "general")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if text != "" {
		t.Fatalf("absent rule = %q, want empty", text)
	}

	if err := st.SetRule(ctx, "bots", "general", "v1"); err != nil {
		t.Fatalf("SetRule: %v", err)
	}
	if err := st.SetRule(ctx, "bots", "general", "v2"); err != nil {
		t.Fatalf("SetRule overwrite: %v", err)
	}
	text, _ = st.GetRule(ctx, "bots", "general")
	if text != "v2" {
		t.Fatalf("rule = %q, want v2", text)
	}

	// Other (section, sub) pairs stay independent.
	if other, _ := st.GetRule(ctx, "souls", "chat"); other != "" {
		t.Fatalf("unrelated rule = %q, want empty", other)
	}
}

func TestAuditAppendAndPrune(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	entries := []AuditEntry{
		{At: now.Add(-48 * time.Hour), ActorID: 1, Direction: AuditUserToAdmin, Summary: "old"},
		{At: now.Add(-1 * time.Hour), ActorID: 2, Direction: AuditAdminToUser, TargetID: 1, Summary: "recent"},
		{ActorID: 3, Direction: AuditBroadcast, Summary: "now"},
	}
	for _, e := range entries {
		if err := st.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	n, err := st.PruneAudit(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneAudit: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d rows, want 1", n)
	}

	n, err = st.PruneAudit(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("second prune = %d, %v, want 0", n, err)
	}
}

func TestClosedStore(t *testing.T) {
	st := openTestStore(t)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.UpsertUser(context.Background(), UserRecord{ID: 1}); err == nil {
		t.Fatal("write on closed store succeeded")
	}
}
