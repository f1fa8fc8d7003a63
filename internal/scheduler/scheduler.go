package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/config"
	"github.com/mnuel1/chat-fieldiq/internal/service/reporting"
	"github.com/mnuel1/chat-fieldiq/pkg/clients/notify"
)

// Scheduler manages the daily reporting and reminder jobs. The request-scoped
// core never schedules anything itself; this is the only background surface.
type Scheduler struct {
	cron         *cron.Cron
	reportingSvc *reporting.Service
	notifier     notify.Client
	cfg          config.Config
	logger       *zap.Logger
}

// NewScheduler creates a new scheduler instance. The notifier may be nil
// when no messaging gateway is configured.
func NewScheduler(cfg config.Config, reportingSvc *reporting.Service, notifier notify.Client, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to UTC", zap.String("timezone", cfg.Reporting.Timezone))
		location = time.UTC
	}

	return &Scheduler{
		cron:         cron.New(cron.WithLocation(location)),
		reportingSvc: reportingSvc,
		notifier:     notifier,
		cfg:          cfg,
		logger:       logger,
	}
}

// Start registers and starts the scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.Reporting.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.runDailyJobs); err != nil {
		s.logger.Error("failed to schedule daily jobs", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runDailyJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s.logger.Info("exporting daily analytics snapshots")
	if err := s.reportingSvc.ExportDailySnapshots(ctx); err != nil {
		s.logger.Error("daily snapshot export failed", zap.Error(err))
	}

	if s.notifier == nil {
		return
	}

	reminders, err := s.reportingSvc.ReminderCandidates(ctx)
	if err != nil {
		s.logger.Error("failed resolving reminder candidates", zap.Error(err))
		return
	}

	for _, reminder := range reminders {
		if err := s.notifier.SendText(ctx, reminder.To, reminder.Message); err != nil {
			s.logger.Error("failed sending log reminder", zap.String("to", reminder.To), zap.Error(err))
		}
	}

	s.logger.Info("daily jobs finished", zap.Int("reminders", len(reminders)))
}
