package app

import (
	"fmt"
	"strings"
	"time"

	"relaybot/internal/bot"
	"relaybot/internal/config"
	"relaybot/internal/maintenance"
	logx "relaybot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapBotConfig(cfg *config.Config) bot.Config {
	ttl, _ := config.ParseDurationOrDefault(
		"telegram.trigger_reply_ttl", cfg.Telegram.TriggerReplyTTL, 30*time.Second)
	return bot.Config{
		TriggerWord:     cfg.Telegram.TriggerWord,
		TriggerReplyTTL: ttl,
	}
}

func mapMaintenanceConfig(cfg *config.Config) (maintenance.Config, error) {
	// Absent means the 30-day default; an explicit zero disables pruning.
	retention := 720 * time.Hour
	if strings.TrimSpace(cfg.Maintenance.AuditRetention) != "" {
		d, err := config.ParseDurationField(
			"maintenance.audit_retention", cfg.Maintenance.AuditRetention)
		if err != nil {
			return maintenance.Config{}, err
		}
		retention = d
	}
	return maintenance.Config{
		AuditRetention: retention,
		PruneSchedule:  cfg.Maintenance.PruneSchedule,
		StatsSchedule:  cfg.Maintenance.StatsSchedule,
	}, nil
}

// validateConfig rejects configs that would break the live components.
// Used at startup and as the hot-reload gate.
func validateConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if cfg.Broadcast.RatePerSec < 0 {
		return fmt.Errorf("broadcast.rate_per_sec must be >= 0")
	}
	for _, pair := range []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"telegram.trigger_reply_ttl", cfg.Telegram.TriggerReplyTTL},
		{"relay.album_quiet_period", cfg.Relay.AlbumQuietPeriod},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"maintenance.audit_retention", cfg.Maintenance.AuditRetention},
	} {
		if _, err := config.ParseDurationField(pair.path, pair.raw); err != nil {
			return err
		}
	}
	mcfg, err := mapMaintenanceConfig(cfg)
	if err != nil {
		return err
	}
	return maintenance.New(mcfg, nil, logx.Nop()).Validate()
}
