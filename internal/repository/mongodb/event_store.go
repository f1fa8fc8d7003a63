package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
)

const (
	programsColl     = "feed_programs"
	performanceColl  = "performance_logs"
	incidentsColl    = "health_incidents"
	productsColl     = "feed_products"
	targetsColl      = "growth_targets"
	calculationsColl = "feed_calculations"
	faqColl          = "faq"
	usersColl        = "user_profiles"
)

// EventStore persists farm domain records in MongoDB. Records are
// append-mostly: performance logs and health incidents are immutable once
// inserted, feed programs only receive status and days-on-feed patches.
type EventStore struct {
	client *mongo.Client
	dbName string
}

// NewEventStore connects to MongoDB and verifies the connection.
func NewEventStore(ctx context.Context, uri, dbName string) (*EventStore, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &EventStore{client: client, dbName: dbName}, nil
}

// Close closes the MongoDB connection.
func (s *EventStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *EventStore) coll(name string) *mongo.Collection {
	return s.client.Database(s.dbName).Collection(name)
}

// FarmerExists reports whether a user profile with the given id exists.
func (s *EventStore) FarmerExists(ctx context.Context, farmerID string) (bool, error) {
	err := s.coll(usersColl).FindOne(ctx, bson.M{"_id": farmerID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user profile %s: %w", farmerID, err)
	}
	return true, nil
}

// GetUserProfile fetches a user profile, returning nil when it does not exist.
func (s *EventStore) GetUserProfile(ctx context.Context, farmerID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.coll(usersColl).FindOne(ctx, bson.M{"_id": farmerID}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user profile %s: %w", farmerID, err)
	}
	return &profile, nil
}

// FindActiveProgram returns the farmer's active feed program, or nil when no
// program is active.
func (s *EventStore) FindActiveProgram(ctx context.Context, farmerID string) (*models.FeedProgram, error) {
	filter := bson.M{"farmer_id": farmerID, "status": models.ProgramActive}

	var program models.FeedProgram
	err := s.coll(programsColl).FindOne(ctx, filter).Decode(&program)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active program for farmer %s: %w", farmerID, err)
	}
	return &program, nil
}

// ListActivePrograms returns every active feed program across farmers. Used
// by the reporting scheduler.
func (s *EventStore) ListActivePrograms(ctx context.Context) ([]models.FeedProgram, error) {
	cursor, err := s.coll(programsColl).Find(ctx, bson.M{"status": models.ProgramActive})
	if err != nil {
		return nil, fmt.Errorf("list active programs: %w", err)
	}

	var programs []models.FeedProgram
	if err := cursor.All(ctx, &programs); err != nil {
		return nil, fmt.Errorf("decode active programs: %w", err)
	}
	return programs, nil
}

// InsertProgram stores a new feed program record.
func (s *EventStore) InsertProgram(ctx context.Context, program models.FeedProgram) error {
	if _, err := s.coll(programsColl).InsertOne(ctx, program); err != nil {
		return fmt.Errorf("insert feed program: %w", err)
	}
	return nil
}

// UpdateProgramFields applies a partial update to a feed program by id.
func (s *EventStore) UpdateProgramFields(ctx context.Context, programID string, fields map[string]any) error {
	res, err := s.coll(programsColl).UpdateOne(ctx, bson.M{"_id": programID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update feed program %s: %w", programID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update feed program %s: no matching record", programID)
	}
	return nil
}

// InsertPerformanceLog stores an immutable performance log.
func (s *EventStore) InsertPerformanceLog(ctx context.Context, log models.PerformanceLog) error {
	if _, err := s.coll(performanceColl).InsertOne(ctx, log); err != nil {
		return fmt.Errorf("insert performance log: %w", err)
	}
	return nil
}

// ListPerformanceLogs fetches a farmer's performance logs whose created_at
// falls inside [from, to]; to is open-ended when nil. Results are ordered by
// created_at, ascending when asc is true.
func (s *EventStore) ListPerformanceLogs(ctx context.Context, farmerID string, from time.Time, to *time.Time, asc bool) ([]models.PerformanceLog, error) {
	cursor, err := s.coll(performanceColl).Find(ctx, windowFilter(farmerID, from, to), findSort(asc))
	if err != nil {
		return nil, fmt.Errorf("list performance logs for farmer %s: %w", farmerID, err)
	}

	var logs []models.PerformanceLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decode performance logs: %w", err)
	}
	return logs, nil
}

// CountPerformanceLogsSince counts a farmer's performance logs created at or
// after the given instant. Used by the reminder job.
func (s *EventStore) CountPerformanceLogsSince(ctx context.Context, farmerID string, since time.Time) (int64, error) {
	filter := bson.M{"farmer_id": farmerID, "created_at": bson.M{"$gte": since}}
	count, err := s.coll(performanceColl).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count performance logs for farmer %s: %w", farmerID, err)
	}
	return count, nil
}

// InsertHealthIncident stores an immutable health incident.
func (s *EventStore) InsertHealthIncident(ctx context.Context, incident models.HealthIncident) error {
	if _, err := s.coll(incidentsColl).InsertOne(ctx, incident); err != nil {
		return fmt.Errorf("insert health incident: %w", err)
	}
	return nil
}

// ListHealthIncidents fetches a farmer's health incidents inside the window,
// with the same semantics as ListPerformanceLogs.
func (s *EventStore) ListHealthIncidents(ctx context.Context, farmerID string, from time.Time, to *time.Time, asc bool) ([]models.HealthIncident, error) {
	cursor, err := s.coll(incidentsColl).Find(ctx, windowFilter(farmerID, from, to), findSort(asc))
	if err != nil {
		return nil, fmt.Errorf("list health incidents for farmer %s: %w", farmerID, err)
	}

	var incidents []models.HealthIncident
	if err := cursor.All(ctx, &incidents); err != nil {
		return nil, fmt.Errorf("decode health incidents: %w", err)
	}
	return incidents, nil
}

// GetFeedProduct fetches a feed product, returning nil when unknown.
func (s *EventStore) GetFeedProduct(ctx context.Context, productID string) (*models.FeedProduct, error) {
	var product models.FeedProduct
	err := s.coll(productsColl).FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch feed product %s: %w", productID, err)
	}
	return &product, nil
}

// GetTargetWeight resolves the growth target for a feed product, returning 0
// when no target is configured.
func (s *EventStore) GetTargetWeight(ctx context.Context, feedProductID string) (float64, error) {
	var target models.GrowthTarget
	err := s.coll(targetsColl).FindOne(ctx, bson.M{"feed_product_id": feedProductID}).Decode(&target)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("fetch growth target for product %s: %w", feedProductID, err)
	}
	return target.TargetWeightKg, nil
}

// InsertFAQ mirrors a chat exchange into the knowledge base.
func (s *EventStore) InsertFAQ(ctx context.Context, entry models.FAQEntry) error {
	if _, err := s.coll(faqColl).InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert faq entry: %w", err)
	}
	return nil
}

// InsertFeedCalculation stores a feed planning worksheet.
func (s *EventStore) InsertFeedCalculation(ctx context.Context, calc models.FeedCalculation) error {
	if _, err := s.coll(calculationsColl).InsertOne(ctx, calc); err != nil {
		return fmt.Errorf("insert feed calculation: %w", err)
	}
	return nil
}

// GetFeedCalculation returns the farmer's feed calculation log, or nil when
// none has been saved.
func (s *EventStore) GetFeedCalculation(ctx context.Context, farmerID string) (*models.FeedCalculation, error) {
	var calc models.FeedCalculation
	err := s.coll(calculationsColl).FindOne(ctx, bson.M{"farmer_id": farmerID}).Decode(&calc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch feed calculation for farmer %s: %w", farmerID, err)
	}
	return &calc, nil
}

// UpdateFeedCalculation applies a partial update to the farmer's worksheet.
func (s *EventStore) UpdateFeedCalculation(ctx context.Context, farmerID string, fields map[string]any) error {
	res, err := s.coll(calculationsColl).UpdateOne(ctx, bson.M{"farmer_id": farmerID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update feed calculation for farmer %s: %w", farmerID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update feed calculation for farmer %s: no matching record", farmerID)
	}
	return nil
}

func windowFilter(farmerID string, from time.Time, to *time.Time) bson.M {
	window := bson.M{"$gte": from}
	if to != nil {
		window["$lte"] = *to
	}
	return bson.M{"farmer_id": farmerID, "created_at": window}
}

func findSort(asc bool) *options.FindOptions {
	direction := 1
	if !asc {
		direction = -1
	}
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: direction}})
}
