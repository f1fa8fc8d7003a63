package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
)

func day(n int) time.Time {
	return time.Date(2026, time.March, n, 12, 0, 0, 0, time.UTC)
}

func TestTrackFlockReplaysChronologically(t *testing.T) {
	logs := []models.PerformanceLog{
		{MortalityCount: 10, CreatedAt: day(5)},
		{MortalityCount: 0, CreatedAt: day(10)},
	}
	incidents := []models.HealthIncident{
		{IncidentType: models.IncidentMortality, AffectedCount: 5, CreatedAt: day(7)},
		{IncidentType: models.IncidentSickness, AffectedCount: 20, CreatedAt: day(8)},
	}

	tracking := TrackFlock(100, logs, incidents)

	assert.Equal(t, 85, tracking.CurrentFlockSize)
	assert.Equal(t, 15, tracking.TotalMortality)
	assert.InDelta(t, 15.0, tracking.MortalityPercentage, 1e-9)
	assert.InDelta(t, 0.85, tracking.SurvivalRate, 1e-9)
	assert.Equal(t, 10, tracking.MortalityBreakdown.FromPerformanceLogs)
	assert.Equal(t, 5, tracking.MortalityBreakdown.FromHealthIncidents)
}

func TestTrackFlockClampsOvershoot(t *testing.T) {
	logs := []models.PerformanceLog{
		{MortalityCount: 8, CreatedAt: day(3)},
	}
	incidents := []models.HealthIncident{
		{IncidentType: models.IncidentMortality, AffectedCount: 7, CreatedAt: day(4)},
	}

	tracking := TrackFlock(10, logs, incidents)

	assert.Equal(t, 0, tracking.CurrentFlockSize)
	assert.Equal(t, 15, tracking.TotalMortality)
	assert.InDelta(t, 0.0, tracking.SurvivalRate, 1e-9)
}

func TestTrackFlockBounds(t *testing.T) {
	logs := []models.PerformanceLog{
		{MortalityCount: 3, CreatedAt: day(2)},
		{MortalityCount: 9, CreatedAt: day(9)},
	}
	incidents := []models.HealthIncident{
		{IncidentType: models.IncidentMortality, AffectedCount: 4, CreatedAt: day(6)},
		{IncidentType: models.IncidentOther, AffectedCount: 2, CreatedAt: day(6)},
	}

	initial := 20
	tracking := TrackFlock(initial, logs, incidents)

	require.GreaterOrEqual(t, tracking.CurrentFlockSize, 0)
	require.LessOrEqual(t, tracking.CurrentFlockSize, initial)
	sum := tracking.MortalityBreakdown.FromPerformanceLogs + tracking.MortalityBreakdown.FromHealthIncidents
	assert.Equal(t, tracking.TotalMortality, sum)
	assert.Equal(t, 4, tracking.CurrentFlockSize)
}

func TestTrackFlockIgnoresNonMortalityIncidents(t *testing.T) {
	incidents := []models.HealthIncident{
		{IncidentType: models.IncidentSickness, AffectedCount: 12, CreatedAt: day(1)},
		{IncidentType: models.IncidentOther, AffectedCount: 4, CreatedAt: day(2)},
	}

	tracking := TrackFlock(50, nil, incidents)

	assert.Equal(t, 50, tracking.CurrentFlockSize)
	assert.Equal(t, 0, tracking.TotalMortality)
	assert.InDelta(t, 1.0, tracking.SurvivalRate, 1e-9)
}

func TestTrackFlockZeroInitialShortCircuits(t *testing.T) {
	logs := []models.PerformanceLog{{MortalityCount: 5, CreatedAt: day(1)}}

	tracking := TrackFlock(0, logs, nil)

	assert.Equal(t, 0, tracking.CurrentFlockSize)
	assert.Equal(t, 0, tracking.TotalMortality)
	assert.InDelta(t, 1.0, tracking.SurvivalRate, 1e-9)
}
