package models

import "time"

// ProgramStatus enumerates feed program lifecycle states.
type ProgramStatus string

const (
	ProgramActive     ProgramStatus = "active"
	ProgramSwitched   ProgramStatus = "switched"
	ProgramCompleted  ProgramStatus = "completed"
	ProgramIncomplete ProgramStatus = "incomplete"
)

// FeedProgram is a farmer's declared feeding plan for one flock.
// At most one program per farmer may be active at any instant.
type FeedProgram struct {
	ID             string        `bson:"_id" json:"id"`
	FarmerID       string        `bson:"farmer_id" json:"farmer_id"`
	FeedProductID  string        `bson:"feed_product_id" json:"feed_product_id"`
	AnimalQuantity int           `bson:"animal_quantity" json:"animal_quantity"`
	Status         ProgramStatus `bson:"status" json:"status"`
	StartDate      time.Time     `bson:"start_date" json:"start_date"`
	EndDate        *time.Time    `bson:"end_date,omitempty" json:"end_date,omitempty"`
	DaysOnFeed     int           `bson:"days_on_feed" json:"days_on_feed"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// FeedProduct describes a commercial feed referenced by programs.
type FeedProduct struct {
	ID            string `bson:"_id" json:"id"`
	Name          string `bson:"name" json:"name"`
	FeedStage     string `bson:"feed_stage" json:"feed_stage"`
	AgeRangeStart int    `bson:"age_range_start" json:"age_range_start"`
	AgeRangeEnd   int    `bson:"age_range_end" json:"age_range_end"`
	Goal          string `bson:"goal" json:"goal"`
}

// GrowthTarget holds the expected weight for animals on a given feed product.
type GrowthTarget struct {
	ID             string  `bson:"_id" json:"id"`
	FeedProductID  string  `bson:"feed_product_id" json:"feed_product_id"`
	TargetWeightKg float64 `bson:"target_weight_kg" json:"target_weight_kg"`
}

// ActiveFeedProduct is the dashboard view joining the active program with its
// feed product details.
type ActiveFeedProduct struct {
	FeedProgramID string        `json:"feed_program_id"`
	FeedName      string        `json:"feed_name"`
	Status        ProgramStatus `json:"status"`
	FeedStage     string        `json:"feed_stage"`
	AgeRangeStart int           `json:"age_range_start"`
	AgeRangeEnd   int           `json:"age_range_end"`
	FeedGoal      string        `json:"feed_goal"`
	DaysOnFeed    int           `json:"days_on_feed"`
}

// FeedCalculation stores a farmer's feed planning worksheet.
type FeedCalculation struct {
	ID                string     `bson:"_id" json:"id"`
	FarmerID          string     `bson:"farmer_id" json:"farmer_id"`
	NumberOfAnimals   int        `bson:"number_of_animals" json:"number_of_animals"`
	FeedFrequency     int        `bson:"feed_frequency" json:"feed_frequency"`
	BagSizeKg         int        `bson:"bag_size_kg" json:"bag_size_kg"`
	CurrentStockBags  int        `bson:"current_stock_bags" json:"current_stock_bags"`
	BagCostPhp        float64    `bson:"bag_cost_php" json:"bag_cost_php"`
	AnimalType        string     `bson:"animal_type" json:"animal_type"`
	FeedStage         string     `bson:"feed_stage" json:"feed_stage"`
	DailyConsumption  float64    `bson:"daily_consumption_kg" json:"daily_consumption_kg"`
	WeeklyConsumption float64    `bson:"weekly_consumption_kg" json:"weekly_consumption_kg"`
	BagsNeededPerWeek float64    `bson:"bags_needed_per_week" json:"bags_needed_per_week"`
	CostPerWeekPhp    float64    `bson:"cost_per_week_php" json:"cost_per_week_php"`
	ReorderPointDays  float64    `bson:"reorder_point_days" json:"reorder_point_days"`
	AlertLevel        string     `bson:"alert_level" json:"alert_level"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
