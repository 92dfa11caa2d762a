package roster

import (
	"context"
	"path/filepath"
	"testing"

	"relaybot/internal/storage"
	logx "relaybot/pkg/logx"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestLoadReflectsStoredFlags(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SetAdmin(ctx, 100, true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	if err := st.SetBlocked(ctx, 7, true); err != nil {
		t.Fatalf("SetBlocked: %v", err)
	}

	r, err := Load(ctx, st, logx.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !r.IsAdmin(100) || r.IsAdmin(200) {
		t.Fatalf("admin cache wrong: %v", r.Admins())
	}
	if !r.IsBlocked(7) || r.IsBlocked(8) {
		t.Fatal("blocked cache wrong")
	}
}

func TestMutationsPersist(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	r, err := Load(ctx, st, logx.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := r.AddAdmin(ctx, 300); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if err := r.Block(ctx, 7); err != nil {
		t.Fatalf("Block: %v", err)
	}

	// A fresh roster from the same store sees the changes.
	r2, err := Load(ctx, st, logx.Nop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !r2.IsAdmin(300) || !r2.IsBlocked(7) {
		t.Fatal("mutations did not reach storage")
	}

	if err := r2.RemoveAdmin(ctx, 300); err != nil {
		t.Fatalf("RemoveAdmin: %v", err)
	}
	if err := r2.Unblock(ctx, 7); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if r2.IsAdmin(300) || r2.IsBlocked(7) {
		t.Fatal("revocations not applied")
	}
}

func TestRemoveLastAdminAllowed(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	r, _ := Load(ctx, st, logx.Nop())
	if err := r.AddAdmin(ctx, 100); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if err := r.RemoveAdmin(ctx, 100); err != nil {
		t.Fatalf("RemoveAdmin(last): %v", err)
	}
	if got := r.Admins(); len(got) != 0 {
		t.Fatalf("admins = %v, want empty", got)
	}
}

func TestSeedGrantsButNeverRevokes(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	r, _ := Load(ctx, st, logx.Nop())
	if err := r.AddAdmin(ctx, 900); err != nil { // runtime grant, not in seed
		t.Fatalf("AddAdmin: %v", err)
	}

	r.Seed(ctx, []int64{100, 200, 0}) // zero id skipped

	want := []int64{100, 200, 900}
	got := r.Admins()
	if len(got) != len(want) {
		t.Fatalf("admins = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("admins = %v, want %v (sorted)", got, want)
		}
	}

	// Re-seeding with a shorter list must not revoke anyone.
	r.Seed(ctx, []int64{100})
	if len(r.Admins()) != 3 {
		t.Fatalf("re-seed revoked admins: %v", r.Admins())
	}
}
