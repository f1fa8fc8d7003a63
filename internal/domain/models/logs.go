package models

import "time"

// FeedIntakeStatus enumerates observed feeding behavior in a performance log.
type FeedIntakeStatus string

const (
	IntakeEatingWell FeedIntakeStatus = "eating_well"
	IntakePicky      FeedIntakeStatus = "picky"
	IntakeNotEating  FeedIntakeStatus = "not_eating"
)

// PerformanceLog is an immutable daily farm performance report. It counts
// toward analytics only when created_at falls inside the queried program
// window.
type PerformanceLog struct {
	ID                  string           `bson:"_id" json:"id"`
	FarmerID            string           `bson:"farmer_id" json:"farmer_id"`
	CompanyID           string           `bson:"company_id,omitempty" json:"company_id,omitempty"`
	AverageWeightKg     float64          `bson:"average_weight_kg" json:"average_weight_kg"`
	FeedConversionRatio float64          `bson:"feed_conversion_ratio" json:"feed_conversion_ratio"`
	MortalityCount      int              `bson:"mortality_count" json:"mortality_count"`
	FeedIntakeKg        float64          `bson:"feed_intake_kg" json:"feed_intake_kg"`
	FeedIntakeStatus    FeedIntakeStatus `bson:"feed_intake_status" json:"feed_intake_status"`
	Notes               string           `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt           time.Time        `bson:"created_at" json:"created_at"`
}

// IncidentType enumerates health incident categories.
type IncidentType string

const (
	IncidentSickness  IncidentType = "sickness"
	IncidentMortality IncidentType = "mortality"
	IncidentOther     IncidentType = "other"
)

// HealthIncident is an immutable flock health report.
type HealthIncident struct {
	ID               string       `bson:"_id" json:"id"`
	FarmerID         string       `bson:"farmer_id" json:"farmer_id"`
	IncidentType     IncidentType `bson:"incident_type" json:"incident_type"`
	AffectedCount    int          `bson:"affected_count" json:"affected_count"`
	Symptoms         string       `bson:"symptoms,omitempty" json:"symptoms,omitempty"`
	SuspectedCause   string       `bson:"suspected_cause,omitempty" json:"suspected_cause,omitempty"`
	RequiresVetVisit bool         `bson:"requires_vet_visit" json:"requires_vet_visit"`
	FeedInfo         string       `bson:"feed_info,omitempty" json:"feed_info,omitempty"`
	ActionsTaken     string       `bson:"actions_taken,omitempty" json:"actions_taken,omitempty"`
	IncidentDate     time.Time    `bson:"incident_date" json:"incident_date"`
	ReportedBy       string       `bson:"reported_by,omitempty" json:"reported_by,omitempty"`
	CreatedAt        time.Time    `bson:"created_at" json:"created_at"`
}

// HasNotes reports whether the incident carries free-text observations that
// feed into the health score penalty.
func (h HealthIncident) HasNotes() bool {
	return h.Symptoms != "" || h.SuspectedCause != ""
}
