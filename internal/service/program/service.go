// Package program owns feed program state transitions and the
// single-active-program invariant.
package program

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/domain/fielderr"
	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
	"github.com/mnuel1/chat-fieldiq/pkg/keylock"
)

// Store defines the persistence operations the lifecycle manager requires.
type Store interface {
	FindActiveProgram(ctx context.Context, farmerID string) (*models.FeedProgram, error)
	InsertProgram(ctx context.Context, program models.FeedProgram) error
	UpdateProgramFields(ctx context.Context, programID string, fields map[string]any) error
	GetFeedProduct(ctx context.Context, productID string) (*models.FeedProduct, error)
	InsertFeedCalculation(ctx context.Context, calc models.FeedCalculation) error
	GetFeedCalculation(ctx context.Context, farmerID string) (*models.FeedCalculation, error)
	UpdateFeedCalculation(ctx context.Context, farmerID string, fields map[string]any) error
}

// Service implements the feed program lifecycle.
type Service struct {
	store  Store
	locks  *keylock.KeyLock
	logger *zap.Logger
	now    func() time.Time
}

// NewService constructs a lifecycle manager.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		locks:  keylock.New(),
		logger: logger,
		now:    time.Now,
	}
}

// StartProgram creates a new active feed program for the farmer. Any prior
// active program is demoted to "switched" in the same serialized section so
// two concurrent starts cannot leave two active rows.
func (s *Service) StartProgram(ctx context.Context, farmerID, feedProductID string, animalQuantity int) (*models.FeedProgram, error) {
	if animalQuantity <= 0 {
		return nil, fmt.Errorf("%w: animal quantity must be positive", fielderr.ErrValidation)
	}

	s.locks.Lock(farmerID)
	defer s.locks.Unlock(farmerID)

	active, err := s.store.FindActiveProgram(ctx, farmerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	if active != nil {
		fields := map[string]any{
			"status":     models.ProgramSwitched,
			"end_date":   now,
			"updated_at": now,
		}
		if err := s.store.UpdateProgramFields(ctx, active.ID, fields); err != nil {
			return nil, fmt.Errorf("demote prior program: %w", err)
		}
		s.logger.Info("demoted prior feed program",
			zap.String("farmer_id", farmerID),
			zap.String("program_id", active.ID))
	}

	next := models.FeedProgram{
		ID:             uuid.NewString(),
		FarmerID:       farmerID,
		FeedProductID:  feedProductID,
		AnimalQuantity: animalQuantity,
		Status:         models.ProgramActive,
		StartDate:      now,
		DaysOnFeed:     1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.InsertProgram(ctx, next); err != nil {
		return nil, err
	}

	s.logger.Info("started feed program",
		zap.String("farmer_id", farmerID),
		zap.String("program_id", next.ID),
		zap.Int("animal_quantity", animalQuantity))

	return &next, nil
}

// GetActiveProgram returns the farmer's active program with days_on_feed
// recomputed from the start date. The derived value is persisted only when it
// differs from the stored one.
func (s *Service) GetActiveProgram(ctx context.Context, farmerID string) (*models.FeedProgram, error) {
	active, err := s.store.FindActiveProgram(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, fmt.Errorf("%w: no active feed program", fielderr.ErrNotFound)
	}

	now := s.now().UTC()
	days := daysOnFeed(active.StartDate, now)
	if days != active.DaysOnFeed {
		fields := map[string]any{
			"days_on_feed": days,
			"updated_at":   now,
		}
		if err := s.store.UpdateProgramFields(ctx, active.ID, fields); err != nil {
			// A stale days_on_feed is tolerable; the derived value still
			// wins on this read.
			s.logger.Warn("failed persisting days_on_feed",
				zap.String("program_id", active.ID), zap.Error(err))
		} else {
			active.UpdatedAt = now
		}
		active.DaysOnFeed = days
	}

	return active, nil
}

// CompleteProgram transitions the active program to "completed".
func (s *Service) CompleteProgram(ctx context.Context, farmerID string) (*models.FeedProgram, error) {
	return s.endProgram(ctx, farmerID, models.ProgramCompleted)
}

// MarkIncomplete transitions the active program to "incomplete".
func (s *Service) MarkIncomplete(ctx context.Context, farmerID string) (*models.FeedProgram, error) {
	return s.endProgram(ctx, farmerID, models.ProgramIncomplete)
}

func (s *Service) endProgram(ctx context.Context, farmerID string, status models.ProgramStatus) (*models.FeedProgram, error) {
	s.locks.Lock(farmerID)
	defer s.locks.Unlock(farmerID)

	active, err := s.store.FindActiveProgram(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, fmt.Errorf("%w: no active feed program", fielderr.ErrNotFound)
	}

	now := s.now().UTC()
	fields := map[string]any{
		"status":     status,
		"end_date":   now,
		"updated_at": now,
	}
	if err := s.store.UpdateProgramFields(ctx, active.ID, fields); err != nil {
		return nil, err
	}

	active.Status = status
	active.EndDate = &now
	active.UpdatedAt = now

	s.logger.Info("ended feed program",
		zap.String("farmer_id", farmerID),
		zap.String("program_id", active.ID),
		zap.String("status", string(status)))

	return active, nil
}

// ActiveFeedProduct joins the farmer's active program with its feed product
// details for the dashboard. Returns nil when no program is active or the
// product is unknown.
func (s *Service) ActiveFeedProduct(ctx context.Context, farmerID string) (*models.ActiveFeedProduct, error) {
	active, err := s.GetActiveProgram(ctx, farmerID)
	if err != nil {
		if errors.Is(err, fielderr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	product, err := s.store.GetFeedProduct(ctx, active.FeedProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, nil
	}

	return &models.ActiveFeedProduct{
		FeedProgramID: active.ID,
		FeedName:      product.Name,
		Status:        active.Status,
		FeedStage:     product.FeedStage,
		AgeRangeStart: product.AgeRangeStart,
		AgeRangeEnd:   product.AgeRangeEnd,
		FeedGoal:      product.Goal,
		DaysOnFeed:    active.DaysOnFeed,
	}, nil
}

// CreateFeedCalculation stores a feed calculator result for the farmer.
func (s *Service) CreateFeedCalculation(ctx context.Context, calc models.FeedCalculation) (*models.FeedCalculation, error) {
	if calc.FarmerID == "" {
		return nil, fmt.Errorf("%w: farmer id is required", fielderr.ErrValidation)
	}
	if calc.NumberOfAnimals <= 0 {
		return nil, fmt.Errorf("%w: number of animals must be positive", fielderr.ErrValidation)
	}

	calc.ID = uuid.NewString()
	calc.CreatedAt = s.now().UTC()

	if err := s.store.InsertFeedCalculation(ctx, calc); err != nil {
		return nil, err
	}

	s.logger.Info("created feed calculation log",
		zap.String("farmer_id", calc.FarmerID),
		zap.String("calculation_id", calc.ID))

	return &calc, nil
}

// GetFeedCalculation returns the farmer's current feed calculator log.
func (s *Service) GetFeedCalculation(ctx context.Context, farmerID string) (*models.FeedCalculation, error) {
	calc, err := s.store.GetFeedCalculation(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	if calc == nil {
		return nil, fmt.Errorf("%w: no current calculation log for farmer %s", fielderr.ErrNotFound, farmerID)
	}
	return calc, nil
}

// UpdateFeedCalculation overwrites the farmer's calculator log fields and
// returns the refreshed document.
func (s *Service) UpdateFeedCalculation(ctx context.Context, farmerID string, fields map[string]any) (*models.FeedCalculation, error) {
	if _, err := s.GetFeedCalculation(ctx, farmerID); err != nil {
		return nil, err
	}

	fields["updated_at"] = s.now().UTC()
	if err := s.store.UpdateFeedCalculation(ctx, farmerID, fields); err != nil {
		return nil, err
	}

	return s.GetFeedCalculation(ctx, farmerID)
}

// daysOnFeed derives the one-based day counter from elapsed whole hours.
func daysOnFeed(start, now time.Time) int {
	hours := now.Sub(start).Hours()
	if hours < 0 {
		return 1
	}
	return int(hours/24) + 1
}
