package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
)

// Form field schemas per log intent. Extracted keys outside the schema are
// dropped at merge time so untyped model output never reaches the completion
// callback unvalidated.
var (
	healthIncidentFields = fieldSet(
		"incident_type", "affected_count", "symptoms", "suspected_cause",
		"requires_vet_visit", "feed_info", "actions_taken", "incident_date",
	)
	performanceLogFields = fieldSet(
		"average_weight_kg", "feed_conversion_ratio", "mortality_count",
		"feed_intake_kg", "feed_intake_status", "notes",
	)
)

func allowedFields(intent Intent) map[string]struct{} {
	switch intent {
	case IntentHealthLog:
		return healthIncidentFields
	case IntentPerformanceLog:
		return performanceLogFields
	default:
		return nil
	}
}

func fieldSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// EventWriter is the subset of the event store the completion callbacks
// write into.
type EventWriter interface {
	InsertHealthIncident(ctx context.Context, incident models.HealthIncident) error
	InsertPerformanceLog(ctx context.Context, log models.PerformanceLog) error
}

type healthIncidentForm struct {
	IncidentType     models.IncidentType `json:"incident_type"`
	AffectedCount    int                 `json:"affected_count"`
	Symptoms         string              `json:"symptoms"`
	SuspectedCause   string              `json:"suspected_cause"`
	RequiresVetVisit bool                `json:"requires_vet_visit"`
	FeedInfo         string              `json:"feed_info"`
	ActionsTaken     string              `json:"actions_taken"`
	IncidentDate     string              `json:"incident_date"`
}

type performanceLogForm struct {
	AverageWeightKg     float64                 `json:"average_weight_kg"`
	FeedConversionRatio float64                 `json:"feed_conversion_ratio"`
	MortalityCount      int                     `json:"mortality_count"`
	FeedIntakeKg        float64                 `json:"feed_intake_kg"`
	FeedIntakeStatus    models.FeedIntakeStatus `json:"feed_intake_status"`
	Notes               string                  `json:"notes"`
}

// NewHealthIncidentCompletion returns the callback that commits a completed
// health log form as a HealthIncident record.
func NewHealthIncidentCompletion(store EventWriter, logger *zap.Logger) CompletionFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, farmerID, companyID string, formData map[string]any, result ExtractionResult) error {
		var form healthIncidentForm
		if err := decodeForm(formData, &form); err != nil {
			return err
		}

		switch form.IncidentType {
		case models.IncidentSickness, models.IncidentMortality, models.IncidentOther:
		default:
			return fmt.Errorf("invalid incident_type %q", form.IncidentType)
		}
		if form.AffectedCount <= 0 {
			return fmt.Errorf("affected_count must be positive, got %d", form.AffectedCount)
		}

		now := time.Now().UTC()
		incident := models.HealthIncident{
			ID:               uuid.NewString(),
			FarmerID:         farmerID,
			IncidentType:     form.IncidentType,
			AffectedCount:    form.AffectedCount,
			Symptoms:         form.Symptoms,
			SuspectedCause:   form.SuspectedCause,
			RequiresVetVisit: form.RequiresVetVisit,
			FeedInfo:         form.FeedInfo,
			ActionsTaken:     form.ActionsTaken,
			IncidentDate:     parseIncidentDate(form.IncidentDate, now),
			ReportedBy:       farmerID,
			CreatedAt:        now,
		}

		if err := store.InsertHealthIncident(ctx, incident); err != nil {
			return err
		}

		logger.Info("health incident created from chat",
			zap.String("farmer_id", farmerID),
			zap.String("incident_type", string(incident.IncidentType)),
			zap.Int("affected_count", incident.AffectedCount))
		return nil
	}
}

// NewPerformanceLogCompletion returns the callback that commits a completed
// performance report form as a PerformanceLog record.
func NewPerformanceLogCompletion(store EventWriter, logger *zap.Logger) CompletionFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, farmerID, companyID string, formData map[string]any, result ExtractionResult) error {
		var form performanceLogForm
		if err := decodeForm(formData, &form); err != nil {
			return err
		}

		if form.AverageWeightKg <= 0 {
			return fmt.Errorf("average_weight_kg must be positive, got %v", form.AverageWeightKg)
		}
		switch form.FeedIntakeStatus {
		case models.IntakeEatingWell, models.IntakePicky, models.IntakeNotEating, "":
		default:
			return fmt.Errorf("invalid feed_intake_status %q", form.FeedIntakeStatus)
		}

		log := models.PerformanceLog{
			ID:                  uuid.NewString(),
			FarmerID:            farmerID,
			CompanyID:           companyID,
			AverageWeightKg:     form.AverageWeightKg,
			FeedConversionRatio: form.FeedConversionRatio,
			MortalityCount:      form.MortalityCount,
			FeedIntakeKg:        form.FeedIntakeKg,
			FeedIntakeStatus:    form.FeedIntakeStatus,
			Notes:               form.Notes,
			CreatedAt:           time.Now().UTC(),
		}

		if err := store.InsertPerformanceLog(ctx, log); err != nil {
			return err
		}

		logger.Info("performance log created from chat",
			zap.String("farmer_id", farmerID),
			zap.Float64("average_weight_kg", log.AverageWeightKg))
		return nil
	}
}

// decodeForm converts the loosely-typed merged form into its typed shape via
// a JSON round trip, tolerating the numeric representations the extraction
// collaborator produces.
func decodeForm(formData map[string]any, out any) error {
	raw, err := json.Marshal(formData)
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("form data does not match schema: %w", err)
	}
	return nil
}

func parseIncidentDate(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006/01/02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return fallback
}
