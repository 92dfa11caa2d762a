package config

// Config is the whole bot configuration, loaded from a YAML or JSON file.
//
// All durations are Go duration strings (e.g. "500ms", "2s", "1m").
type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Relay       RelayConfig       `json:"relay"`
	Broadcast   BroadcastConfig   `json:"broadcast"`
	Storage     StorageConfig     `json:"storage"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"` // default "10s"

	// AdminSeedIDs are granted admin rights at startup and on every config
	// reload. This is the trusted recovery path when the runtime roster is
	// emptied (removing the last admin is allowed).
	AdminSeedIDs []int64 `json:"admin_seed_ids"`

	// TriggerWord makes the bot answer in group chats when a message
	// contains it, with a deep link into the private chat. Empty disables
	// the group trigger.
	TriggerWord string `json:"trigger_word,omitempty"`

	// TriggerReplyTTL is how long the group trigger reply stays before the
	// bot deletes it. Default "30s".
	TriggerReplyTTL string `json:"trigger_reply_ttl,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    FileLoggingConfig `json:"file"`
}

type FileLoggingConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type RelayConfig struct {
	// AlbumQuietPeriod is the debounce window after the last album part
	// before the album is considered complete. Default "2s".
	AlbumQuietPeriod string `json:"album_quiet_period,omitempty"`
}

type BroadcastConfig struct {
	// RatePerSec paces broadcast fan-out. Default 10.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the SQLite database file.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// MaintenanceConfig controls background housekeeping jobs.
type MaintenanceConfig struct {
	// AuditRetention is how long audit rows are kept. Default "720h" (30d).
	// "0s" disables pruning.
	AuditRetention string `json:"audit_retention,omitempty"`

	// PruneSchedule is a cron spec for the audit prune job. Default "17 3 * * *".
	PruneSchedule string `json:"prune_schedule,omitempty"`

	// StatsSchedule is a cron spec for the daily stats log line.
	// Empty disables it.
	StatsSchedule string `json:"stats_schedule,omitempty"`
}
