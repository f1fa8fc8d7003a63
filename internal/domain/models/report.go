package models

import "time"

// DailySnapshot is the per-farmer analytics digest exported by the scheduler.
type DailySnapshot struct {
	Date                time.Time `bson:"date" json:"date"`
	FarmerID            string    `bson:"farmer_id" json:"farmer_id"`
	FeedProgramID       string    `bson:"feed_program_id" json:"feed_program_id"`
	DaysOnFeed          int       `bson:"days_on_feed" json:"days_on_feed"`
	GrowthRate          float64   `bson:"growth_rate" json:"growth_rate"`
	ActualWeight        float64   `bson:"actual_weight" json:"actual_weight"`
	TargetWeight        float64   `bson:"target_weight" json:"target_weight"`
	CurrentFlockSize    int       `bson:"current_flock_size" json:"current_flock_size"`
	MortalityPercentage float64   `bson:"mortality_percentage" json:"mortality_percentage"`
	BehaviorScore       float64   `bson:"behavior_score" json:"behavior_score"`
	HealthScore         int       `bson:"health_score" json:"health_score"`
	CreatedAt           time.Time `bson:"created_at" json:"created_at"`
}

// ReminderMessage represents an outbound log-reminder push to a farmer.
type ReminderMessage struct {
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required"`
}
