package pantry

import (
	"context"
	"errors"
	"testing"
	"time"

	"bodari/internal/models"
	"bodari/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) UpsertPantryEntry(ctx context.Context, entry *models.PantryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRepository) PantryBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.PantryEntry, error) {
	args := m.Called(ctx, userID, from, to)
	entries, _ := args.Get(0).([]models.PantryEntry)
	return entries, args.Error(1)
}

func qty(f float64) *float64 { return &f }

func day(s string) time.Time {
	d, _ := time.Parse(time.DateOnly, s)
	return d
}

func TestUpsertNormalisesEntry(t *testing.T) {
	repo := new(MockRepository)
	ledger := NewLedger(repo)
	ctx := context.Background()
	at := time.Date(2025, 6, 11, 18, 45, 0, 0, time.UTC)

	repo.On("UpsertPantryEntry", ctx, mock.MatchedBy(func(e *models.PantryEntry) bool {
		return e.UserID == 3 && e.Date.Equal(day("2025-06-11")) && e.Ingredient == "Eggs" &&
			*e.Quantity == 6 && e.Unit == models.UnitPieces
	})).Return(nil).Once()

	entry, err := ledger.Upsert(ctx, 3, at, Item{Ingredient: "  Eggs ", Quantity: qty(6), Unit: models.UnitPieces})
	require.NoError(t, err)
	assert.Equal(t, "Eggs", entry.Ingredient)
	repo.AssertExpectations(t)
}

func TestUpsertWithoutQuantityIsDistinctFromZero(t *testing.T) {
	repo := new(MockRepository)
	ledger := NewLedger(repo)
	repo.On("UpsertPantryEntry", mock.Anything, mock.Anything).Return(nil)

	unknown, err := ledger.Upsert(context.Background(), 1, day("2025-06-11"), Item{Ingredient: "Rice", Unit: models.UnitKg})
	require.NoError(t, err)
	assert.Nil(t, unknown.Quantity)
	assert.Equal(t, models.UnitUnits, unknown.Unit)

	zero, err := ledger.Upsert(context.Background(), 1, day("2025-06-11"), Item{Ingredient: "Milk", Quantity: qty(0), Unit: models.UnitMl})
	require.NoError(t, err)
	require.NotNil(t, zero.Quantity)
	assert.Equal(t, 0.0, *zero.Quantity)
	assert.Equal(t, models.UnitMl, zero.Unit)
}

func TestUpsertValidation(t *testing.T) {
	repo := new(MockRepository)
	ledger := NewLedger(repo)

	cases := map[string]Item{
		"missing ingredient": {Ingredient: "   ", Quantity: qty(1), Unit: models.UnitCups},
		"negative quantity":  {Ingredient: "Oats", Quantity: qty(-2), Unit: models.UnitGrams},
		"unknown unit":       {Ingredient: "Oats", Quantity: qty(2), Unit: "handfuls"},
		"quantity no unit":   {Ingredient: "Oats", Quantity: qty(2)},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.Upsert(context.Background(), 1, day("2025-06-11"), item)
			assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
		})
	}
	repo.AssertNotCalled(t, "UpsertPantryEntry", mock.Anything, mock.Anything)
}

func TestSaveAllValidatesBeforeWriting(t *testing.T) {
	repo := new(MockRepository)
	ledger := NewLedger(repo)

	_, err := ledger.SaveAll(context.Background(), 1, day("2025-06-11"), []Item{
		{Ingredient: "Eggs", Quantity: qty(6), Unit: models.UnitPieces},
		{Ingredient: "Milk", Quantity: qty(1), Unit: "gallons"},
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	repo.AssertNotCalled(t, "UpsertPantryEntry", mock.Anything, mock.Anything)

	_, err = ledger.SaveAll(context.Background(), 1, day("2025-06-11"), nil)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestSaveAllWritesEveryItem(t *testing.T) {
	repo := new(MockRepository)
	ledger := NewLedger(repo)
	repo.On("UpsertPantryEntry", mock.Anything, mock.Anything).Return(nil).Times(2)

	entries, err := ledger.SaveAll(context.Background(), 1, day("2025-06-11"), []Item{
		{Ingredient: "Eggs", Quantity: qty(6), Unit: models.UnitPieces},
		{Ingredient: "Spinach"},
	})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	repo.AssertExpectations(t)
}

func TestSaveAllPropagatesStoreErrors(t *testing.T) {
	repo := new(MockRepository)
	ledger := NewLedger(repo)
	boom := errors.New("connection reset")
	repo.On("UpsertPantryEntry", mock.Anything, mock.Anything).Return(boom)

	_, err := ledger.SaveAll(context.Background(), 1, day("2025-06-11"), []Item{{Ingredient: "Eggs"}})
	assert.ErrorIs(t, err, boom)
}

func TestForWeekQueriesMondayToSunday(t *testing.T) {
	repo := new(MockRepository)
	ledger := NewLedger(repo)
	want := []models.PantryEntry{{UserID: 1, Ingredient: "Eggs", Date: day("2025-06-12")}}
	repo.On("PantryBetween", mock.Anything, int64(1), day("2025-06-09"), day("2025-06-15")).Return(want, nil).Once()

	got, err := ledger.ForWeek(context.Background(), 1, day("2025-06-11"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	repo.AssertExpectations(t)
}

func TestTouchedOn(t *testing.T) {
	entries := []models.PantryEntry{
		{Ingredient: "Eggs", Date: day("2025-06-09")},
		{Ingredient: "Milk", Date: day("2025-06-10")},
	}
	assert.True(t, TouchedOn(entries, time.Date(2025, 6, 10, 22, 0, 0, 0, time.UTC)))
	assert.False(t, TouchedOn(entries, day("2025-06-11")))
	assert.False(t, TouchedOn(nil, day("2025-06-11")))
}

func TestOnHandKeepsLatestPerIngredient(t *testing.T) {
	entries := []models.PantryEntry{
		{Ingredient: "Eggs", Date: day("2025-06-09"), Quantity: qty(12), Unit: models.UnitPieces},
		{Ingredient: "eggs", Date: day("2025-06-11"), Quantity: qty(4), Unit: models.UnitPieces},
		{Ingredient: "Milk", Date: day("2025-06-10"), Quantity: qty(0), Unit: models.UnitMl},
		{Ingredient: "Banana", Date: day("2025-06-10"), Unit: models.UnitUnits},
	}

	got := OnHand(entries)
	require.Len(t, got, 2)
	assert.Equal(t, "Banana", got[0].Ingredient)
	assert.Equal(t, "eggs", got[1].Ingredient)
	assert.Equal(t, 4.0, *got[1].Quantity)
}

func TestPromptLines(t *testing.T) {
	entries := []models.PantryEntry{
		{Ingredient: "Rice", Date: day("2025-06-10"), Quantity: qty(1.5), Unit: models.UnitKg},
		{Ingredient: "Apple", Date: day("2025-06-10"), Unit: models.UnitUnits},
	}
	assert.Equal(t, []string{"Apple (amount unspecified)", "Rice (1.5 kg)"}, PromptLines(entries))
}

func TestFormatForPrompt(t *testing.T) {
	assert.Equal(t, "", FormatForPrompt(nil))
	entries := []models.PantryEntry{
		{Ingredient: "Oats", Date: day("2025-06-10"), Quantity: qty(500), Unit: models.UnitGrams},
		{Ingredient: "Honey", Date: day("2025-06-10"), Quantity: qty(1), Unit: models.UnitCups},
	}
	assert.Equal(t, "Honey (1 cups)\nOats (500 grams)", FormatForPrompt(entries))
}
