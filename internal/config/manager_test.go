package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  poll_timeout: "15s"
  admin_seed_ids: [100, 200]
  trigger_word: "secretary"
logging:
  level: "debug"
  console: true
  file:
    enabled: false
relay:
  album_quiet_period: "2s"
broadcast:
  rate_per_sec: 5
storage:
  path: "/tmp/bot.db"
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminSeedIDs) != 2 || cfg.Telegram.AdminSeedIDs[1] != 200 {
		t.Fatalf("admin_seed_ids = %v", cfg.Telegram.AdminSeedIDs)
	}
	if cfg.Broadcast.RatePerSec != 5 {
		t.Fatalf("rate_per_sec = %d", cfg.Broadcast.RatePerSec)
	}
	if !cfg.Logging.Console || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestParseJSON(t *testing.T) {
	path := writeConfig(t, "config.json",
		`{"telegram":{"token":"t","admin_seed_ids":[1]},"logging":{"level":"info","console":true,"file":{"enabled":false}},"storage":{"path":"x.db"}}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Path != "x.db" {
		t.Fatalf("storage.path = %q", cfg.Storage.Path)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "t"
  admin_seed_ids: []
  totally_unknown_key: 1
storage:
  path: "x.db"
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfig(t, "config.json",
		`{"telegram":{"token":"t","admin_seed_ids":[]}} {"extra":true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestParseMissingFile(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestParseDurationField(t *testing.T) {
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"500ms", 500 * time.Millisecond, false},
		{"2s", 2 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"-2s", 0, true},
		{"2", 0, true},
		{"soon", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDurationField("x", tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDurationField(%q) accepted", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseDurationField(%q) = %v, %v; want %v", tc.raw, got, err, tc.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	got, err := ParseDurationOrDefault("x", "", 10*time.Second)
	if err != nil || got != 10*time.Second {
		t.Fatalf("empty = %v, %v; want default", got, err)
	}
	got, err = ParseDurationOrDefault("x", "3s", 10*time.Second)
	if err != nil || got != 3*time.Second {
		t.Fatalf("explicit = %v, %v; want 3s", got, err)
	}
}

func TestSubscribePublishDropsOldest(t *testing.T) {
	path := writeConfig(t, "config.json", `{"telegram":{"token":"t","admin_seed_ids":[]},"storage":{"path":"x.db"}}`)
	m := NewManager(path)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	a := &Config{}
	b := &Config{}
	m.publish(a)
	m.publish(b) // buffer full: a is dropped in favor of b

	got := <-ch
	if got != b {
		t.Fatal("publish did not drop the oldest config on a full buffer")
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra config %p", extra)
	default:
	}
}
