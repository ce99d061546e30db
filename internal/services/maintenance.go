package services

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/civicdesk/backend/internal/logger"
)

const (
	defaultSweepSchedule = "@every 15m"
	auditCleanupSchedule = "@daily"
)

// Maintenance runs the periodic housekeeping jobs: archiving expired
// announcements and trimming the action log.
type Maintenance struct {
	cron               *cron.Cron
	announcements      AnnouncementService
	actionLogs         ActionLogService
	sweepSchedule      string
	auditRetentionDays int
	log                *slog.Logger
}

func NewMaintenance(announcements AnnouncementService, actionLogs ActionLogService, sweepSchedule string, auditRetentionDays int) *Maintenance {
	if sweepSchedule == "" {
		sweepSchedule = defaultSweepSchedule
	}
	return &Maintenance{
		cron:               cron.New(),
		announcements:      announcements,
		actionLogs:         actionLogs,
		sweepSchedule:      sweepSchedule,
		auditRetentionDays: auditRetentionDays,
		log:                logger.WithComponent("maintenance"),
	}
}

func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc(m.sweepSchedule, func() {
		if _, err := m.SweepAnnouncements(context.Background()); err != nil {
			m.log.Error("announcement sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if m.actionLogs != nil && m.auditRetentionDays > 0 {
		if _, err := m.cron.AddFunc(auditCleanupSchedule, func() {
			if _, err := m.TrimActionLogs(context.Background()); err != nil {
				m.log.Error("action log cleanup failed", "error", err)
			}
		}); err != nil {
			return err
		}
	}

	m.cron.Start()
	m.log.Info("maintenance scheduler started", "sweep", m.sweepSchedule, "audit_retention_days", m.auditRetentionDays)
	return nil
}

// Stop waits for running jobs to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

func (m *Maintenance) SweepAnnouncements(ctx context.Context) (int64, error) {
	return m.announcements.ArchiveExpired(ctx)
}

func (m *Maintenance) TrimActionLogs(ctx context.Context) (int64, error) {
	n, err := m.actionLogs.CleanupOldLogs(ctx, m.auditRetentionDays)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Info("old action logs removed", "count", n)
	}
	return n, nil
}
