package storage

import (
	"testing"
	"time"

	"github.com/hueshift/hueshift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()

	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSlotRoundTrip(t *testing.T) {
	store := newTestStore(t)

	slot := &types.Slot{
		ID:             types.SlotBlue,
		App:            "storefront",
		CurrentVersion: "v1.0.0",
		Health:         types.HealthHealthy,
		Activity:       types.ActivityActive,
		Endpoint:       "10.0.0.1:8080",
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, store.SaveSlot(slot))

	got, err := store.GetSlot("storefront", types.SlotBlue)
	require.NoError(t, err)
	assert.Equal(t, slot.CurrentVersion, got.CurrentVersion)
	assert.Equal(t, types.ActivityActive, got.Activity)
}

func TestSaveSlots_WritesBothTogether(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveSlots(
		&types.Slot{ID: types.SlotBlue, App: "storefront", Activity: types.ActivityStandby},
		&types.Slot{ID: types.SlotGreen, App: "storefront", Activity: types.ActivityActive},
	)
	require.NoError(t, err)

	blue, err := store.GetSlot("storefront", types.SlotBlue)
	require.NoError(t, err)
	green, err := store.GetSlot("storefront", types.SlotGreen)
	require.NoError(t, err)
	assert.Equal(t, types.ActivityStandby, blue.Activity)
	assert.Equal(t, types.ActivityActive, green.Activity)
}

func TestGetSlot_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSlot("storefront", types.SlotGreen)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListSlots_PerApp(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveSlot(&types.Slot{ID: types.SlotBlue, App: "storefront"}))
	require.NoError(t, store.SaveSlot(&types.Slot{ID: types.SlotGreen, App: "storefront"}))
	require.NoError(t, store.SaveSlot(&types.Slot{ID: types.SlotBlue, App: "checkout"}))

	slots, err := store.ListSlots("storefront")
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestRouteRoundTrip(t *testing.T) {
	store := newTestStore(t)

	route := &types.TrafficRoute{
		App:      "storefront",
		Slot:     types.SlotBlue,
		Endpoint: "10.0.0.1:8080",
	}
	require.NoError(t, store.SaveRoute(route))

	got, err := store.GetRoute("storefront")
	require.NoError(t, err)
	assert.Equal(t, types.SlotBlue, got.Slot)
	assert.Equal(t, "10.0.0.1:8080", got.Endpoint)
}

func TestRolloutRecords_AppendOnlyOrdering(t *testing.T) {
	store := newTestStore(t)

	for _, version := range []string{"v1", "v2", "v3"} {
		err := store.AppendRolloutRecord(&types.RolloutRecord{
			App:     "storefront",
			Version: version,
			Outcome: types.OutcomeCommitted,
		})
		require.NoError(t, err)
	}

	records, err := store.ListRolloutRecords("storefront")
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Insertion order preserved
	assert.Equal(t, "v1", records[0].Version)
	assert.Equal(t, "v3", records[2].Version)
	assert.Less(t, records[0].Seq, records[2].Seq)
}

func TestLatestRolloutRecord_FiltersByOutcome(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendRolloutRecord(&types.RolloutRecord{
		App: "storefront", Version: "v1", Outcome: types.OutcomeCommitted,
	}))
	require.NoError(t, store.AppendRolloutRecord(&types.RolloutRecord{
		App: "storefront", Version: "v2", Outcome: types.OutcomeRolledBack,
	}))

	latest, err := store.LatestRolloutRecord("storefront", types.OutcomeCommitted)
	require.NoError(t, err)
	assert.Equal(t, "v1", latest.Version)

	any, err := store.LatestRolloutRecord("storefront", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", any.Version)

	_, err = store.LatestRolloutRecord("checkout", "")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
