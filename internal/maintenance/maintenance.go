// Package maintenance runs background housekeeping on a cron schedule:
// pruning old audit rows and an optional daily stats log line.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"relaybot/internal/storage"
	logx "relaybot/pkg/logx"
)

const (
	defaultRetention = 30 * 24 * time.Hour
	// Off-peak by default; the minute is arbitrary to avoid thundering
	// herds across deployments sharing a host.
	defaultPruneSpec = "17 3 * * *"
)

type Config struct {
	AuditRetention time.Duration // 0 disables pruning
	PruneSchedule  string
	StatsSchedule  string // empty disables the stats line
}

type Service struct {
	cfg   Config
	store storage.Store
	log   logx.Logger
	cron  *cron.Cron
}

func New(cfg Config, store storage.Store, log logx.Logger) *Service {
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = defaultPruneSpec
	}
	return &Service{cfg: cfg, store: store, log: log}
}

// Validate checks the cron specs without starting anything.
func (s *Service) Validate() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(s.cfg.PruneSchedule); err != nil {
		return err
	}
	if s.cfg.StatsSchedule != "" {
		if _, err := parser.Parse(s.cfg.StatsSchedule); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	c := cron.New()

	if s.cfg.AuditRetention > 0 {
		if _, err := c.AddFunc(s.cfg.PruneSchedule, func() { s.pruneAudit(ctx) }); err != nil {
			return err
		}
	}
	if s.cfg.StatsSchedule != "" {
		if _, err := c.AddFunc(s.cfg.StatsSchedule, func() { s.logStats(ctx) }); err != nil {
			return err
		}
	}

	s.cron = c
	c.Start()
	s.log.Info("maintenance started",
		logx.Duration("audit_retention", s.cfg.AuditRetention),
		logx.String("prune_schedule", s.cfg.PruneSchedule))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Service) pruneAudit(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	cutoff := time.Now().Add(-s.cfg.AuditRetention)
	n, err := s.store.PruneAudit(pctx, cutoff)
	if err != nil {
		s.log.Warn("audit prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("audit pruned", logx.Int64("rows", n), logx.Time("cutoff", cutoff))
	}
}

func (s *Service) logStats(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	users, err := s.store.CountUsers(sctx)
	if err != nil {
		s.log.Warn("stats query failed", logx.Err(err))
		return
	}
	groups, err := s.store.ListGroupIDs(sctx)
	if err != nil {
		s.log.Warn("stats query failed", logx.Err(err))
		return
	}
	s.log.Info("daily stats", logx.Int("users", users), logx.Int("groups", len(groups)))
}
