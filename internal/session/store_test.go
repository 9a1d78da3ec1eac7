package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpfade/booking-platform/internal/availability"
	"github.com/sharpfade/booking-platform/internal/catalog"
	"github.com/sharpfade/booking-platform/internal/ledger"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestStateStoreRoundTrip(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStateStore(client)
	ctx := context.Background()

	snap := Snapshot{
		ServiceID:  "haircut",
		ProviderID: "albert",
		Date:       "2026-09-07",
		Time:       "12:00",
	}
	require.NoError(t, store.Save(ctx, "sess-1", snap))

	got, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap, *got)

	require.NoError(t, store.Clear(ctx, "sess-1"))
	got, err = store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got, "cleared snapshot loads as nil, not an error")
}

func TestStateStoreLoadMissing(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	got, err := NewStateStore(client).Load(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func newManagerWithStore(t *testing.T, store *StateStore) *Manager {
	t.Helper()
	cat := catalog.Seed()
	led := ledger.New(nil)
	eng := availability.NewEngine(availability.DefaultRules(), cat, nil)
	return NewManagerWithClock(cat, led, eng, store, nil, nil, func() time.Time { return testNow })
}

func TestSessionSurvivesManagerRestart(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()
	store := NewStateStore(client)
	ctx := context.Background()

	mgr := newManagerWithStore(t, store)
	id := func() string {
		v := mgr.Create(ctx)
		_, err := mgr.ChooseService(ctx, v.ID, "shave")
		require.NoError(t, err)
		_, err = mgr.ChooseProvider(ctx, v.ID, "charles")
		require.NoError(t, err)
		_, err = mgr.ChooseDate(ctx, v.ID, monday)
		require.NoError(t, err)
		_, err = mgr.SelectSlot(ctx, v.ID, tod(t, "14:00"))
		require.NoError(t, err)
		return v.ID
	}()

	// A fresh manager sharing the store restores the selection.
	restarted := newManagerWithStore(t, store)
	v, err := restarted.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateSlotChosen, v.State)
	assert.Equal(t, "shave", v.ServiceID)
	assert.Equal(t, "charles", v.ProviderID)
	assert.Equal(t, "14:00", v.Slot.String())
	assert.Zero(t, v.UndoDepth, "undo history does not survive a restore")

	// The restored session commits normally, which clears the snapshot.
	_, err = restarted.Commit(ctx, id, "Walter Finch")
	require.NoError(t, err)

	again := newManagerWithStore(t, store)
	_, err = again.Get(ctx, id)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestSnapshotClearedOnCommit(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()
	store := NewStateStore(client)
	ctx := context.Background()

	mgr := newManagerWithStore(t, store)
	v := mgr.Create(ctx)
	_, err := mgr.ChooseService(ctx, v.ID, "haircut")
	require.NoError(t, err)
	_, err = mgr.ChooseProvider(ctx, v.ID, "albert")
	require.NoError(t, err)
	_, err = mgr.ChooseDate(ctx, v.ID, monday)
	require.NoError(t, err)
	_, err = mgr.SelectSlot(ctx, v.ID, tod(t, "12:00"))
	require.NoError(t, err)

	snap, err := store.Load(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "12:00", snap.Time)

	_, err = mgr.Commit(ctx, v.ID, "Walter Finch")
	require.NoError(t, err)

	snap, err = store.Load(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, snap)
}
