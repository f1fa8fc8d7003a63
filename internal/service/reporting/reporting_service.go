// Package reporting composes per-farmer analytics into daily snapshots for
// the spreadsheet export and builds log-reminder candidates for the
// scheduler.
package reporting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
	"github.com/mnuel1/chat-fieldiq/internal/repository/sheets"
)

const (
	snapshotRange = "DailySnapshots!A:L"
	dateLayout    = "2006-01-02"
)

// EventReader is the subset of the event store the reporting pipeline needs.
type EventReader interface {
	ListActivePrograms(ctx context.Context) ([]models.FeedProgram, error)
	CountPerformanceLogsSince(ctx context.Context, farmerID string, since time.Time) (int64, error)
	GetUserProfile(ctx context.Context, farmerID string) (*models.UserProfile, error)
}

// Analytics is the aggregator surface the snapshot builder consumes.
type Analytics interface {
	GrowthPerformance(ctx context.Context, farmerID string) (models.GrowthPerformance, error)
	FeedIntakeBehavior(ctx context.Context, farmerID string) (models.FeedIntakeBehavior, error)
	HealthWatch(ctx context.Context, farmerID, filter string) (models.HealthWatch, error)
}

// Service drives daily snapshot export and reminder selection.
type Service struct {
	store     EventReader
	analytics Analytics
	exporter  sheets.Exporter
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires a reporting service instance. The exporter may be nil
// when spreadsheet credentials are not configured.
func NewService(store EventReader, analytics Analytics, exporter sheets.Exporter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		analytics: analytics,
		exporter:  exporter,
		logger:    logger,
		now:       time.Now,
	}
}

// ExportDailySnapshots appends one analytics row per active feed program to
// the snapshot sheet. A failure for one farmer does not abort the others.
func (s *Service) ExportDailySnapshots(ctx context.Context) error {
	if s.exporter == nil {
		s.logger.Debug("sheets exporter not configured, skipping snapshot export")
		return nil
	}

	programs, err := s.store.ListActivePrograms(ctx)
	if err != nil {
		return fmt.Errorf("list active programs: %w", err)
	}

	exported := s.exportedToday(ctx)

	var firstErr error
	for _, program := range programs {
		if _, ok := exported[program.FarmerID]; ok {
			s.logger.Debug("snapshot already exported today, skipping",
				zap.String("farmer_id", program.FarmerID))
			continue
		}

		snapshot, err := s.buildSnapshot(ctx, program)
		if err != nil {
			s.logger.Error("failed building snapshot", zap.String("farmer_id", program.FarmerID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		row := []interface{}{
			snapshot.Date.Format(dateLayout),
			snapshot.FarmerID,
			snapshot.FeedProgramID,
			snapshot.DaysOnFeed,
			snapshot.GrowthRate,
			snapshot.ActualWeight,
			snapshot.TargetWeight,
			snapshot.CurrentFlockSize,
			snapshot.MortalityPercentage,
			snapshot.BehaviorScore,
			snapshot.HealthScore,
		}
		if err := s.exporter.AppendRow(ctx, snapshotRange, row); err != nil {
			s.logger.Error("failed exporting snapshot row", zap.String("farmer_id", program.FarmerID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// exportedToday reads the snapshot sheet and collects the farmer ids that
// already have a row for today, so a re-run of the job does not duplicate
// rows. A read failure degrades to no dedup; appends stay possible.
func (s *Service) exportedToday(ctx context.Context) map[string]struct{} {
	exported := make(map[string]struct{})

	rows, err := s.exporter.ReadRange(ctx, snapshotRange)
	if err != nil {
		s.logger.Warn("failed reading existing snapshots, exporting without dedup", zap.Error(err))
		return exported
	}

	today := s.now().UTC().Format(dateLayout)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		date, _ := row[0].(string)
		farmerID, _ := row[1].(string)
		if date == today && farmerID != "" {
			exported[farmerID] = struct{}{}
		}
	}
	return exported
}

func (s *Service) buildSnapshot(ctx context.Context, program models.FeedProgram) (models.DailySnapshot, error) {
	growth, err := s.analytics.GrowthPerformance(ctx, program.FarmerID)
	if err != nil {
		return models.DailySnapshot{}, err
	}
	intake, err := s.analytics.FeedIntakeBehavior(ctx, program.FarmerID)
	if err != nil {
		return models.DailySnapshot{}, err
	}
	health, err := s.analytics.HealthWatch(ctx, program.FarmerID, "")
	if err != nil {
		return models.DailySnapshot{}, err
	}

	now := s.now().UTC()
	return models.DailySnapshot{
		Date:                now,
		FarmerID:            program.FarmerID,
		FeedProgramID:       program.ID,
		DaysOnFeed:          program.DaysOnFeed,
		GrowthRate:          growth.DailyAverageGrowthRate,
		ActualWeight:        growth.ActualWeight,
		TargetWeight:        growth.TargetWeight,
		CurrentFlockSize:    growth.PerformanceAnalytics.CurrentFlockSize,
		MortalityPercentage: growth.PerformanceAnalytics.MortalityPercentage,
		BehaviorScore:       intake.BehaviorScore,
		HealthScore:         health.HealthScore,
		CreatedAt:           now,
	}, nil
}

// ReminderCandidates returns one reminder per farmer holding an active
// program who has not filed a performance log today.
func (s *Service) ReminderCandidates(ctx context.Context) ([]models.ReminderMessage, error) {
	programs, err := s.store.ListActivePrograms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active programs: %w", err)
	}

	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var reminders []models.ReminderMessage
	for _, program := range programs {
		count, err := s.store.CountPerformanceLogsSince(ctx, program.FarmerID, startOfDay)
		if err != nil {
			s.logger.Error("failed counting today's logs", zap.String("farmer_id", program.FarmerID), zap.Error(err))
			continue
		}
		if count > 0 {
			continue
		}

		profile, err := s.store.GetUserProfile(ctx, program.FarmerID)
		if err != nil || profile == nil || profile.Phone == "" {
			continue
		}

		reminders = append(reminders, models.ReminderMessage{
			To: profile.Phone,
			Message: fmt.Sprintf(
				"Day %d of your feed program. Don't forget to log today's flock weight and feed intake.",
				program.DaysOnFeed),
		})
	}

	return reminders, nil
}
