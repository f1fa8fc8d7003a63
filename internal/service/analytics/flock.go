package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
)

// mortalitySource labels where a mortality event was reported.
type mortalitySource string

const (
	sourcePerformanceLog mortalitySource = "performance_log"
	sourceHealthIncident mortalitySource = "health_incident"
)

type mortalityEvent struct {
	date   time.Time
	count  int
	source mortalitySource
}

// TrackFlock replays mortality events from performance logs and health
// incidents chronologically against the initial flock size. The replay, not a
// plain sum, keeps the flock size from going negative when reports overshoot
// the remaining stock.
func TrackFlock(initialFlockSize int, logs []models.PerformanceLog, incidents []models.HealthIncident) models.FlockTracking {
	if initialFlockSize <= 0 {
		return models.FlockTracking{
			CurrentFlockSize: initialFlockSize,
			SurvivalRate:     1.0,
		}
	}

	// Performance-log events are queued before incident events so the stable
	// sort breaks date ties by source, then insertion order.
	events := make([]mortalityEvent, 0, len(logs)+len(incidents))
	for _, log := range logs {
		if log.MortalityCount > 0 {
			events = append(events, mortalityEvent{
				date:   log.CreatedAt,
				count:  log.MortalityCount,
				source: sourcePerformanceLog,
			})
		}
	}
	for _, incident := range incidents {
		if incident.IncidentType == models.IncidentMortality && incident.AffectedCount > 0 {
			events = append(events, mortalityEvent{
				date:   incident.CreatedAt,
				count:  incident.AffectedCount,
				source: sourceHealthIncident,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].date.Before(events[j].date)
	})

	current := initialFlockSize
	fromLogs := 0
	fromIncidents := 0

	for _, event := range events {
		current -= event.count
		if current < 0 {
			current = 0
		}
		if event.source == sourcePerformanceLog {
			fromLogs += event.count
		} else {
			fromIncidents += event.count
		}
	}

	total := fromLogs + fromIncidents

	return models.FlockTracking{
		CurrentFlockSize:    current,
		TotalMortality:      total,
		MortalityPercentage: round2(float64(total) / float64(initialFlockSize) * 100),
		SurvivalRate:        round4(float64(current) / float64(initialFlockSize)),
		MortalityBreakdown: models.MortalityBreakdown{
			FromPerformanceLogs: fromLogs,
			FromHealthIncidents: fromIncidents,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
