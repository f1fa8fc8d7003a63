// Package analytics derives dashboard metrics from performance logs and
// health incidents, always bounded by the farmer's active feed program
// window.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/domain/fielderr"
	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
)

// Window filters accepted by HealthWatch.
const (
	FilterDaily  = "daily"
	FilterWeekly = "weekly"
)

const dateLayout = "2006-01-02"

// Store defines the read operations the aggregator requires.
type Store interface {
	FarmerExists(ctx context.Context, farmerID string) (bool, error)
	ListPerformanceLogs(ctx context.Context, farmerID string, from time.Time, to *time.Time, asc bool) ([]models.PerformanceLog, error)
	ListHealthIncidents(ctx context.Context, farmerID string, from time.Time, to *time.Time, asc bool) ([]models.HealthIncident, error)
	GetTargetWeight(ctx context.Context, feedProductID string) (float64, error)
}

// Programs resolves the farmer's active feed program.
type Programs interface {
	GetActiveProgram(ctx context.Context, farmerID string) (*models.FeedProgram, error)
}

// Service composes the flock merger with growth, feed-intake and health
// computations. All reads are stateless; a farmer without an active program
// receives documented default structures instead of errors.
type Service struct {
	store    Store
	programs Programs
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the aggregator.
func NewService(store Store, programs Programs, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		programs: programs,
		logger:   logger,
		now:      time.Now,
	}
}

// GrowthPerformance builds the growth dashboard for the farmer's active
// program window.
func (s *Service) GrowthPerformance(ctx context.Context, farmerID string) (models.GrowthPerformance, error) {
	if err := s.requireFarmer(ctx, farmerID); err != nil {
		return models.GrowthPerformance{}, err
	}

	activeProgram, err := s.programs.GetActiveProgram(ctx, farmerID)
	if err != nil {
		if errors.Is(err, fielderr.ErrNotFound) {
			return defaultGrowthPerformance(), nil
		}
		return models.GrowthPerformance{}, err
	}

	logs, err := s.store.ListPerformanceLogs(ctx, farmerID, activeProgram.StartDate, activeProgram.EndDate, true)
	if err != nil {
		return models.GrowthPerformance{}, err
	}
	incidents, err := s.store.ListHealthIncidents(ctx, farmerID, activeProgram.StartDate, activeProgram.EndDate, true)
	if err != nil {
		return models.GrowthPerformance{}, err
	}

	if len(logs) == 0 && len(incidents) == 0 {
		return defaultGrowthPerformance(), nil
	}

	tracking := TrackFlock(activeProgram.AnimalQuantity, logs, incidents)
	growthRate, rawGain := growthRate(logs)

	targetWeight, err := s.store.GetTargetWeight(ctx, activeProgram.FeedProductID)
	if err != nil {
		s.logger.Warn("growth target lookup failed",
			zap.String("feed_product_id", activeProgram.FeedProductID), zap.Error(err))
		targetWeight = 0
	}

	// Endpoint selection and recency are by created_at, never fetch order.
	ordered := sortedByCreatedAt(logs)

	totalWeight := 0.0
	for _, log := range ordered {
		totalWeight += log.AverageWeightKg
	}

	actualWeight := 0.0
	if len(ordered) > 0 {
		actualWeight = ordered[len(ordered)-1].AverageWeightKg
	}

	result := models.GrowthPerformance{
		DailyAverageGrowthRate: growthRate,
		RawGainKg:              rawGain,
		ActualWeight:           actualWeight,
		TargetWeight:           targetWeight,
		GrowthChartData:        buildGrowthChart(ordered, targetWeight),
		PerformanceAnalytics: models.PerformanceAnalytics{
			TotalLogs:           len(ordered),
			TotalWeightKg:       round3(totalWeight),
			MortalityCount:      tracking.TotalMortality,
			MortalityPercentage: tracking.MortalityPercentage,
			InitialFlockSize:    activeProgram.AnimalQuantity,
			CurrentFlockSize:    tracking.CurrentFlockSize,
			MortalityBreakdown:  tracking.MortalityBreakdown,
			RecentRecords:       buildRecentRecords(ordered),
		},
	}
	return result, nil
}

// FeedIntakeBehavior classifies the window's performance logs by feeding
// behavior and scores them.
func (s *Service) FeedIntakeBehavior(ctx context.Context, farmerID string) (models.FeedIntakeBehavior, error) {
	if err := s.requireFarmer(ctx, farmerID); err != nil {
		return models.FeedIntakeBehavior{}, err
	}

	activeProgram, err := s.programs.GetActiveProgram(ctx, farmerID)
	if err != nil {
		if errors.Is(err, fielderr.ErrNotFound) {
			return defaultFeedIntakeBehavior(), nil
		}
		return models.FeedIntakeBehavior{}, err
	}

	logs, err := s.store.ListPerformanceLogs(ctx, farmerID, activeProgram.StartDate, activeProgram.EndDate, false)
	if err != nil {
		return models.FeedIntakeBehavior{}, err
	}
	if len(logs) == 0 {
		return defaultFeedIntakeBehavior(), nil
	}

	summary := models.FeedIntakeSummary{}
	recent := make([]models.FeedRecord, 0, len(logs))
	qualifying := 0

	for _, log := range logs {
		switch log.FeedIntakeStatus {
		case models.IntakeEatingWell:
			summary.EatingWell++
			qualifying++
		case models.IntakePicky:
			summary.Picky++
			qualifying++
		case models.IntakeNotEating:
			summary.NotEating++
			qualifying++
		}

		recent = append(recent, models.FeedRecord{
			Date:             log.CreatedAt.UTC().Format(time.RFC3339),
			FeedIntakeStatus: log.FeedIntakeStatus,
			FeedIntakeKg:     log.FeedIntakeKg,
		})
	}

	score := 0.0
	status := "no_data"
	if qualifying > 0 {
		weighted := float64(summary.EatingWell)*1.0 + float64(summary.Picky)*0.5
		score = round2(weighted / float64(qualifying) * 100)
		status = dominantStatus(summary)
	}

	return models.FeedIntakeBehavior{
		BehaviorScore:     score,
		BehaviorStatus:    status,
		Summary:           summary,
		RecentFeedRecords: recent,
	}, nil
}

// HealthWatch scores flock health from incidents inside the program window,
// optionally narrowed to today or the current week.
func (s *Service) HealthWatch(ctx context.Context, farmerID, filter string) (models.HealthWatch, error) {
	if filter != "" && filter != FilterDaily && filter != FilterWeekly {
		return models.HealthWatch{}, fmt.Errorf("%w: unknown health watch filter %q", fielderr.ErrValidation, filter)
	}

	if err := s.requireFarmer(ctx, farmerID); err != nil {
		return models.HealthWatch{}, err
	}

	activeProgram, err := s.programs.GetActiveProgram(ctx, farmerID)
	if err != nil {
		if errors.Is(err, fielderr.ErrNotFound) {
			return defaultHealthWatch(filter), nil
		}
		return models.HealthWatch{}, err
	}

	effectiveStart := activeProgram.StartDate
	if filterStart, ok := s.filterStart(filter); ok && filterStart.After(effectiveStart) {
		effectiveStart = filterStart
	}

	incidents, err := s.store.ListHealthIncidents(ctx, farmerID, effectiveStart, activeProgram.EndDate, false)
	if err != nil {
		return models.HealthWatch{}, err
	}
	if len(incidents) == 0 {
		return defaultHealthWatch(filter), nil
	}

	summary := models.IssueSummary{}
	score := 100
	recent := make([]models.RecentIssue, 0, len(incidents))

	for _, incident := range incidents {
		switch incident.IncidentType {
		case models.IncidentSickness:
			summary.Sick += incident.AffectedCount
			score -= incident.AffectedCount * 2
		case models.IncidentMortality:
			summary.Mortality += incident.AffectedCount
			score -= incident.AffectedCount * 4
		}
		if incident.HasNotes() {
			summary.Notes++
			score--
		}

		recent = append(recent, models.RecentIssue{
			Date:             incident.IncidentDate.UTC().Format(dateLayout),
			IncidentType:     incident.IncidentType,
			AffectedCount:    incident.AffectedCount,
			Symptoms:         incident.Symptoms,
			SuspectedCause:   incident.SuspectedCause,
			RequiresVetVisit: incident.RequiresVetVisit,
			FeedInfo:         incident.FeedInfo,
			ActionsTaken:     incident.ActionsTaken,
		})
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return models.HealthWatch{
		HealthScore:   score,
		IssueSummary:  summary,
		RecentIssues:  recent,
		FilterApplied: filterLabel(filter),
	}, nil
}

func (s *Service) requireFarmer(ctx context.Context, farmerID string) error {
	exists, err := s.store.FarmerExists(ctx, farmerID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: farmer %s does not exist", fielderr.ErrNotFound, farmerID)
	}
	return nil
}

// filterStart resolves the optional narrowing window: start of the current
// UTC day for daily, the most recent Monday 00:00 UTC for weekly.
func (s *Service) filterStart(filter string) (time.Time, bool) {
	now := s.now().UTC()
	switch filter {
	case FilterDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	case FilterWeekly:
		return mondayStart(now), true
	default:
		return time.Time{}, false
	}
}

func mondayStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	daysSinceMonday := (weekday + 6) % 7
	start := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}

// growthRate derives the daily average gain between the earliest and latest
// log by timestamp. Fewer than two logs, or endpoints less than a full day
// apart, yield zeros.
func growthRate(logs []models.PerformanceLog) (rate, rawGain float64) {
	if len(logs) < 2 {
		return 0, 0
	}

	ordered := sortedByCreatedAt(logs)
	first := ordered[0]
	last := ordered[len(ordered)-1]

	days := int(last.CreatedAt.Sub(first.CreatedAt).Hours() / 24)
	if days <= 0 {
		return 0, 0
	}

	gain := last.AverageWeightKg - first.AverageWeightKg
	return round3(gain / float64(days)), round3(gain)
}

func sortedByCreatedAt(logs []models.PerformanceLog) []models.PerformanceLog {
	ordered := make([]models.PerformanceLog, len(logs))
	copy(ordered, logs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}

// buildGrowthChart buckets logs by UTC calendar day, keeping the last log of
// each day, and pairs each point with the program's target weight.
func buildGrowthChart(ordered []models.PerformanceLog, targetWeight float64) []models.GrowthPoint {
	latestPerDay := make(map[string]models.PerformanceLog)
	for _, log := range ordered {
		latestPerDay[log.CreatedAt.UTC().Format(dateLayout)] = log
	}

	days := make([]string, 0, len(latestPerDay))
	for day := range latestPerDay {
		days = append(days, day)
	}
	sort.Strings(days)

	chart := make([]models.GrowthPoint, 0, len(days))
	for _, day := range days {
		chart = append(chart, models.GrowthPoint{
			Date:         day,
			ActualWeight: latestPerDay[day].AverageWeightKg,
			TargetWeight: targetWeight,
		})
	}
	return chart
}

func buildRecentRecords(ordered []models.PerformanceLog) []models.RecentRecord {
	records := make([]models.RecentRecord, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		log := ordered[i]
		records = append(records, models.RecentRecord{
			Date:         log.CreatedAt.UTC().Format(dateLayout),
			ActualWeight: log.AverageWeightKg,
			Note:         log.Notes,
		})
	}
	return records
}

// dominantStatus picks the most frequent bucket; ties resolve in the fixed
// order eating_well, picky, not_eating.
func dominantStatus(summary models.FeedIntakeSummary) string {
	status := string(models.IntakeEatingWell)
	best := summary.EatingWell
	if summary.Picky > best {
		status = string(models.IntakePicky)
		best = summary.Picky
	}
	if summary.NotEating > best {
		status = string(models.IntakeNotEating)
	}
	return status
}

func filterLabel(filter string) string {
	if filter == "" {
		return "all"
	}
	return filter
}

func defaultGrowthPerformance() models.GrowthPerformance {
	return models.GrowthPerformance{
		GrowthChartData: []models.GrowthPoint{},
		PerformanceAnalytics: models.PerformanceAnalytics{
			RecentRecords: []models.RecentRecord{},
		},
	}
}

func defaultFeedIntakeBehavior() models.FeedIntakeBehavior {
	return models.FeedIntakeBehavior{
		BehaviorStatus:    "no_data",
		RecentFeedRecords: []models.FeedRecord{},
	}
}

func defaultHealthWatch(filter string) models.HealthWatch {
	return models.HealthWatch{
		HealthScore:   100,
		RecentIssues:  []models.RecentIssue{},
		FilterApplied: filterLabel(filter),
	}
}
