package models

// MortalityBreakdown splits total mortality by reporting source.
type MortalityBreakdown struct {
	FromPerformanceLogs int `json:"from_performance_logs"`
	FromHealthIncidents int `json:"from_health_incidents"`
}

// FlockTracking is the result of replaying mortality events against the
// initial flock size.
type FlockTracking struct {
	CurrentFlockSize    int                `json:"current_flock_size"`
	TotalMortality      int                `json:"total_mortality"`
	MortalityPercentage float64            `json:"mortality_percentage"`
	SurvivalRate        float64            `json:"survival_rate"`
	MortalityBreakdown  MortalityBreakdown `json:"mortality_breakdown"`
}

// GrowthPoint is one day-bucketed entry on the growth chart.
type GrowthPoint struct {
	Date         string  `json:"date"`
	ActualWeight float64 `json:"actual_weight"`
	TargetWeight float64 `json:"target_weight"`
}

// RecentRecord is one reverse-chronological growth entry.
type RecentRecord struct {
	Date         string  `json:"date"`
	ActualWeight float64 `json:"actual_weight"`
	Note         string  `json:"note"`
}

// PerformanceAnalytics aggregates flock-level numbers for the growth view.
type PerformanceAnalytics struct {
	TotalLogs           int                `json:"total_logs"`
	TotalWeightKg       float64            `json:"total_weight_kg"`
	MortalityCount      int                `json:"mortality_count"`
	MortalityPercentage float64            `json:"mortality_percentage"`
	InitialFlockSize    int                `json:"initial_flock_size"`
	CurrentFlockSize    int                `json:"current_flock_size"`
	MortalityBreakdown  MortalityBreakdown `json:"mortality_breakdown"`
	RecentRecords       []RecentRecord     `json:"recent_records"`
}

// GrowthPerformance is the growth dashboard payload. Callers always receive a
// fully populated structure; a farmer without an active program gets the
// zero-value defaults rather than an error.
type GrowthPerformance struct {
	DailyAverageGrowthRate float64              `json:"daily_average_growth_rate"`
	RawGainKg              float64              `json:"raw_gain_kg"`
	ActualWeight           float64              `json:"actual_weight"`
	TargetWeight           float64              `json:"target_weight"`
	GrowthChartData        []GrowthPoint        `json:"growth_chart_data"`
	PerformanceAnalytics   PerformanceAnalytics `json:"performance_analytics"`
}

// FeedIntakeSummary buckets performance logs by observed feeding behavior.
type FeedIntakeSummary struct {
	EatingWell int `json:"eating_well"`
	Picky      int `json:"picky"`
	NotEating  int `json:"not_eating"`
}

// FeedRecord is one reverse-chronological feed intake entry.
type FeedRecord struct {
	Date             string           `json:"date"`
	FeedIntakeStatus FeedIntakeStatus `json:"feed_intake_status"`
	FeedIntakeKg     float64          `json:"feed_intake_kg"`
}

// FeedIntakeBehavior is the feed behavior dashboard payload.
type FeedIntakeBehavior struct {
	BehaviorScore     float64           `json:"behavior_score"`
	BehaviorStatus    string            `json:"behavior_status"`
	Summary           FeedIntakeSummary `json:"summary"`
	RecentFeedRecords []FeedRecord      `json:"recent_feed_records"`
}

// IssueSummary tallies health incident impact inside the queried window.
type IssueSummary struct {
	Sick      int `json:"sick"`
	Mortality int `json:"mortality"`
	Notes     int `json:"notes"`
}

// RecentIssue is one reverse-chronological health incident entry.
type RecentIssue struct {
	Date             string       `json:"date"`
	IncidentType     IncidentType `json:"incident_type"`
	AffectedCount    int          `json:"affected_count"`
	Symptoms         string       `json:"symptoms,omitempty"`
	SuspectedCause   string       `json:"suspected_cause,omitempty"`
	RequiresVetVisit bool         `json:"requires_vet_visit"`
	FeedInfo         string       `json:"feed_info,omitempty"`
	ActionsTaken     string       `json:"actions_taken,omitempty"`
}

// HealthWatch is the health dashboard payload.
type HealthWatch struct {
	HealthScore   int           `json:"health_score"`
	IssueSummary  IssueSummary  `json:"issue_summary"`
	RecentIssues  []RecentIssue `json:"recent_issues"`
	FilterApplied string        `json:"filter_applied"`
}
