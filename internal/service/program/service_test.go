package program

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnuel1/chat-fieldiq/internal/domain/fielderr"
	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
)

type fakeStore struct {
	programs map[string]*models.FeedProgram
	products map[string]*models.FeedProduct
	calcs    map[string]*models.FeedCalculation
	updates  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		programs: map[string]*models.FeedProgram{},
		products: map[string]*models.FeedProduct{},
		calcs:    map[string]*models.FeedCalculation{},
	}
}

func (f *fakeStore) FindActiveProgram(_ context.Context, farmerID string) (*models.FeedProgram, error) {
	for _, p := range f.programs {
		if p.FarmerID == farmerID && p.Status == models.ProgramActive {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertProgram(_ context.Context, program models.FeedProgram) error {
	f.programs[program.ID] = &program
	return nil
}

func (f *fakeStore) UpdateProgramFields(_ context.Context, programID string, fields map[string]any) error {
	p, ok := f.programs[programID]
	if !ok {
		return fmt.Errorf("program %s not found", programID)
	}
	f.updates++
	for key, value := range fields {
		switch key {
		case "status":
			p.Status = value.(models.ProgramStatus)
		case "end_date":
			end := value.(time.Time)
			p.EndDate = &end
		case "days_on_feed":
			p.DaysOnFeed = value.(int)
		case "updated_at":
			p.UpdatedAt = value.(time.Time)
		}
	}
	return nil
}

func (f *fakeStore) GetFeedProduct(_ context.Context, productID string) (*models.FeedProduct, error) {
	return f.products[productID], nil
}

func (f *fakeStore) InsertFeedCalculation(_ context.Context, calc models.FeedCalculation) error {
	f.calcs[calc.FarmerID] = &calc
	return nil
}

func (f *fakeStore) GetFeedCalculation(_ context.Context, farmerID string) (*models.FeedCalculation, error) {
	calc, ok := f.calcs[farmerID]
	if !ok {
		return nil, nil
	}
	clone := *calc
	return &clone, nil
}

func (f *fakeStore) UpdateFeedCalculation(_ context.Context, farmerID string, fields map[string]any) error {
	calc, ok := f.calcs[farmerID]
	if !ok {
		return fmt.Errorf("calculation for %s not found", farmerID)
	}
	if v, ok := fields["current_stock_bags"]; ok {
		calc.CurrentStockBags = v.(int)
	}
	if v, ok := fields["updated_at"]; ok {
		at := v.(time.Time)
		calc.UpdatedAt = &at
	}
	return nil
}

func (f *fakeStore) byStatus(status models.ProgramStatus) []*models.FeedProgram {
	var out []*models.FeedProgram
	for _, p := range f.programs {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

const testFarmer = "farmer-1"

func TestStartProgramDemotesPriorActive(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)

	first, err := svc.StartProgram(context.Background(), testFarmer, "feed-1", 100)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramActive, first.Status)
	assert.Equal(t, 1, first.DaysOnFeed)

	second, err := svc.StartProgram(context.Background(), testFarmer, "feed-2", 80)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramActive, second.Status)

	assert.Len(t, store.byStatus(models.ProgramActive), 1)
	assert.Len(t, store.byStatus(models.ProgramSwitched), 1)

	demoted := store.programs[first.ID]
	assert.Equal(t, models.ProgramSwitched, demoted.Status)
	require.NotNil(t, demoted.EndDate)

	_, err = svc.StartProgram(context.Background(), testFarmer, "feed-3", 60)
	require.NoError(t, err)
	assert.Len(t, store.byStatus(models.ProgramActive), 1)
	assert.Len(t, store.byStatus(models.ProgramSwitched), 2)
}

func TestStartProgramRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	_, err := svc.StartProgram(context.Background(), testFarmer, "feed-1", 0)
	require.ErrorIs(t, err, fielderr.ErrValidation)

	_, err = svc.StartProgram(context.Background(), testFarmer, "feed-1", -5)
	require.ErrorIs(t, err, fielderr.ErrValidation)
}

func TestGetActiveProgramRecomputesDaysOnFeed(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)

	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	created, err := svc.StartProgram(context.Background(), testFarmer, "feed-1", 100)
	require.NoError(t, err)
	require.Equal(t, 1, created.DaysOnFeed)

	// 3 days and a bit later: floor(76h/24)+1 = 4.
	svc.now = func() time.Time { return start.Add(76 * time.Hour) }

	updatesBefore := store.updates
	active, err := svc.GetActiveProgram(context.Background(), testFarmer)
	require.NoError(t, err)
	assert.Equal(t, 4, active.DaysOnFeed)
	assert.Equal(t, updatesBefore+1, store.updates)
	assert.Equal(t, 4, store.programs[created.ID].DaysOnFeed)

	// Unchanged counter does not write again.
	_, err = svc.GetActiveProgram(context.Background(), testFarmer)
	require.NoError(t, err)
	assert.Equal(t, updatesBefore+1, store.updates)
}

func TestGetActiveProgramNotFound(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	_, err := svc.GetActiveProgram(context.Background(), testFarmer)
	require.ErrorIs(t, err, fielderr.ErrNotFound)
}

func TestCompleteProgram(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)

	created, err := svc.StartProgram(context.Background(), testFarmer, "feed-1", 100)
	require.NoError(t, err)

	ended, err := svc.CompleteProgram(context.Background(), testFarmer)
	require.NoError(t, err)
	assert.Equal(t, created.ID, ended.ID)
	assert.Equal(t, models.ProgramCompleted, ended.Status)
	require.NotNil(t, ended.EndDate)

	_, err = svc.CompleteProgram(context.Background(), testFarmer)
	require.ErrorIs(t, err, fielderr.ErrNotFound)
}

func TestMarkIncomplete(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)

	_, err := svc.StartProgram(context.Background(), testFarmer, "feed-1", 100)
	require.NoError(t, err)

	ended, err := svc.MarkIncomplete(context.Background(), testFarmer)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramIncomplete, ended.Status)
}

func TestActiveFeedProductJoinsProgramAndProduct(t *testing.T) {
	store := newFakeStore()
	store.products["feed-1"] = &models.FeedProduct{
		ID:            "feed-1",
		Name:          "Starter Crumble",
		FeedStage:     "starter",
		AgeRangeStart: 1,
		AgeRangeEnd:   14,
		Goal:          "early growth",
	}
	svc := NewService(store, nil)

	created, err := svc.StartProgram(context.Background(), testFarmer, "feed-1", 100)
	require.NoError(t, err)

	dto, err := svc.ActiveFeedProduct(context.Background(), testFarmer)
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, created.ID, dto.FeedProgramID)
	assert.Equal(t, "Starter Crumble", dto.FeedName)
	assert.Equal(t, models.ProgramActive, dto.Status)
	assert.Equal(t, "starter", dto.FeedStage)
}

func TestActiveFeedProductNilWithoutProgram(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	dto, err := svc.ActiveFeedProduct(context.Background(), testFarmer)
	require.NoError(t, err)
	assert.Nil(t, dto)
}

func TestFeedCalculationLifecycle(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)

	_, err := svc.GetFeedCalculation(context.Background(), testFarmer)
	require.ErrorIs(t, err, fielderr.ErrNotFound)

	created, err := svc.CreateFeedCalculation(context.Background(), models.FeedCalculation{
		FarmerID:         testFarmer,
		NumberOfAnimals:  100,
		BagSizeKg:        50,
		CurrentStockBags: 4,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	fetched, err := svc.GetFeedCalculation(context.Background(), testFarmer)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)

	updated, err := svc.UpdateFeedCalculation(context.Background(), testFarmer, map[string]any{"current_stock_bags": 9})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.CurrentStockBags)
	require.NotNil(t, updated.UpdatedAt)
}

func TestCreateFeedCalculationValidation(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	_, err := svc.CreateFeedCalculation(context.Background(), models.FeedCalculation{NumberOfAnimals: 10})
	require.ErrorIs(t, err, fielderr.ErrValidation)

	_, err = svc.CreateFeedCalculation(context.Background(), models.FeedCalculation{FarmerID: testFarmer})
	require.ErrorIs(t, err, fielderr.ErrValidation)
}
