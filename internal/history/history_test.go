package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/zakupnik/suggestd/internal/errors"
	"github.com/zakupnik/suggestd/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func record(t *testing.T, s *Store, profileID, name string, qty float64, unit string) {
	t.Helper()
	require.NoError(t, s.RecordPurchase(context.Background(), profileID, name, qty, unit, time.Now()))
}

func TestAggregateByName_QuantityStatistics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Profile bought jabłka three times: 1, 2 and 1.5 kg.
	record(t, store, "p1", "jabłka", 1, "kg")
	record(t, store, "p1", "Jabłka", 2, "kg")
	record(t, store, "p1", "jabłka", 1.5, "kg")

	agg, err := store.AggregateByName(ctx, "p1", "jabłka")
	require.NoError(t, err)

	assert.EqualValues(t, 3, agg.TimesBought)
	assert.Equal(t, 1.5, agg.AvgQuantity)
	assert.Equal(t, 1.0, agg.MinQuantity)
	assert.Equal(t, 2.0, agg.MaxQuantity)
	assert.Equal(t, "kg", agg.ModalUnit)
}

func TestAggregateByName_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record(t, store, "p1", "mleko", 1, "l")
	record(t, store, "p1", "mleko", 2, "l")

	first, err := store.AggregateByName(ctx, "p1", "mleko")
	require.NoError(t, err)
	second, err := store.AggregateByName(ctx, "p1", "mleko")
	require.NoError(t, err)

	assert.Equal(t, first, second, "recomputing with no new purchases must not change statistics")
}

func TestAggregateByName_NoHistory(t *testing.T) {
	store := newTestStore(t)

	agg, err := store.AggregateByName(context.Background(), "p1", "nieznany")
	require.NoError(t, err)
	assert.Zero(t, agg.TimesBought)
}

func TestAggregateByName_ScopedToProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record(t, store, "p1", "kawa", 1, "szt")
	record(t, store, "p2", "kawa", 5, "kg")

	agg, err := store.AggregateByName(ctx, "p1", "kawa")
	require.NoError(t, err)
	assert.EqualValues(t, 1, agg.TimesBought)
	assert.Equal(t, "szt", agg.ModalUnit)
}

func TestAggregateByName_ModalUnitMostFrequent(t *testing.T) {
	store := newTestStore(t)

	record(t, store, "p1", "woda", 1, "l")
	record(t, store, "p1", "woda", 2, "l")
	record(t, store, "p1", "woda", 6, "szt")

	agg, err := store.AggregateByName(context.Background(), "p1", "woda")
	require.NoError(t, err)
	assert.Equal(t, "l", agg.ModalUnit)
}

func TestRecordPurchase_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.RecordPurchase(ctx, "p1", "  ", 1, "", time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.ErrCodeNameRequired, apperr.GetCode(err))

	err = store.RecordPurchase(ctx, "p1", "mleko", 0, "", time.Now())
	assert.Error(t, err)
}

func TestPersonalSuggestions_OrderedByTimesBought(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record(t, store, "p1", "mleko", 1, "l")
	record(t, store, "p1", "mleko", 1, "l")
	record(t, store, "p1", "mleko", 2, "l")
	record(t, store, "p1", "chleb", 1, "szt")
	record(t, store, "p1", "chleb", 1, "szt")
	record(t, store, "p1", "masło", 1, "szt")

	items, err := store.PersonalSuggestions(ctx, "p1", "", 0.2, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "mleko", items[0].Name)
	assert.EqualValues(t, 3, items[0].TimesBought)
	assert.Equal(t, 1.33, items[0].AvgQuantity)
	assert.Equal(t, "chleb", items[1].Name)
	assert.Equal(t, "masło", items[2].Name)
}

func TestPersonalSuggestions_FilteredByQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record(t, store, "p1", "mleko", 1, "l")
	record(t, store, "p1", "chleb", 1, "szt")

	items, err := store.PersonalSuggestions(ctx, "p1", "mle", 0.2, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "mleko", items[0].Name)
}

func TestPersonalSuggestions_DisplayNameAsTyped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Purchases recorded with the user's capitalization; grouping is
	// case-insensitive but the display name keeps the typed form.
	record(t, store, "p1", "Mleko UHT", 1, "l")
	record(t, store, "p1", "mleko uht", 1, "l")

	items, err := store.PersonalSuggestions(ctx, "p1", "", 0.2, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Mleko UHT", items[0].Name)
	assert.EqualValues(t, 2, items[0].TimesBought)
}

func TestFrequentItems_RequiresMinCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record(t, store, "p1", "mleko", 1, "l")
	record(t, store, "p1", "mleko", 1, "l")
	record(t, store, "p1", "kawior", 1, "szt")

	items, err := store.FrequentItems(ctx, "p1", 2, 15)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "mleko", items[0].Name)
}
