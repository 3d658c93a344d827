package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberprof/ember/internal/hotspot"
	"github.com/emberprof/ember/internal/testutil"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	db := testutil.NewTestDatabase(t)
	storage, err := NewStorage(db, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return storage
}

// testSnapshot builds a snapshot whose entries follow the ranked order the
// profile produces: counts descending, key order ascending on ties.
func testSnapshot(taken time.Time, total int64, entries ...hotspot.Entry) hotspot.Snapshot {
	return hotspot.Snapshot{
		Taken:     taken,
		Total:     total,
		Evictions: 2,
		Size:      len(entries),
		Capacity:  8,
		Entries:   entries,
	}
}

func TestStorage_StoreAndQueryLatest(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	taken := time.Now().UTC().Truncate(time.Second)
	snap := testSnapshot(taken, 9,
		hotspot.Entry{Key: hotspot.Key{Type: "app/jobs", Signature: "Process"}, Count: 5},
		hotspot.Entry{Key: hotspot.Key{Type: "net/http", Signature: "ServeMux.ServeHTTP"}, Count: 3},
	)

	id, stored, err := storage.StoreSnapshot(ctx, snap)
	require.NoError(t, err)
	require.True(t, stored)
	require.NotEmpty(t, id)

	got, err := storage.QueryLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, id, got.ID)
	assert.WithinDuration(t, taken, got.TakenAt, time.Second)
	assert.Equal(t, int64(9), got.Total)
	assert.Equal(t, int64(2), got.Evictions)
	assert.Equal(t, 2, got.Tracked)
	assert.Equal(t, 8, got.Capacity)

	require.Len(t, got.Entries, 2)
	assert.Equal(t, snap.Entries[0], got.Entries[0])
	assert.Equal(t, snap.Entries[1], got.Entries[1])
}

func TestStorage_QueryLatest_Empty(t *testing.T) {
	storage := newTestStorage(t)

	got, err := storage.QueryLatest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStorage_SkipsUnchangedSnapshot(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	taken := time.Now().UTC().Truncate(time.Second)
	snap := testSnapshot(taken, 4,
		hotspot.Entry{Key: hotspot.Key{Type: "app/jobs", Signature: "Process"}, Count: 4},
	)

	_, stored, err := storage.StoreSnapshot(ctx, snap)
	require.NoError(t, err)
	require.True(t, stored)

	// Same ranked content a tick later must not produce a second row.
	snap.Taken = taken.Add(10 * time.Second)
	id, stored, err := storage.StoreSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Empty(t, id)

	// A count change makes it new content again.
	snap.Taken = taken.Add(20 * time.Second)
	snap.Total = 5
	snap.Entries[0].Count = 5
	_, stored, err = storage.StoreSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.True(t, stored)

	snaps, err := storage.QueryRange(ctx, taken.Add(-time.Minute), taken.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestStorage_QueryRange(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		snap := testSnapshot(base.Add(time.Duration(i)*time.Minute), int64(i+1),
			hotspot.Entry{Key: hotspot.Key{Type: "app/jobs", Signature: "Process"}, Count: int64(i + 1)},
		)
		_, stored, err := storage.StoreSnapshot(ctx, snap)
		require.NoError(t, err)
		require.True(t, stored)
	}

	// Window around the middle snapshot only.
	snaps, err := storage.QueryRange(ctx, base.Add(30*time.Second), base.Add(90*time.Second))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(2), snaps[0].Total)

	// Full window, oldest first.
	snaps, err = storage.QueryRange(ctx, base.Add(-time.Minute), base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, int64(1), snaps[0].Total)
	assert.Equal(t, int64(3), snaps[2].Total)
	require.Len(t, snaps[1].Entries, 1)
	assert.Equal(t, int64(2), snaps[1].Entries[0].Count)
}

func TestStorage_Cleanup(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)

	old := testSnapshot(now.Add(-48*time.Hour), 1,
		hotspot.Entry{Key: hotspot.Key{Type: "app/jobs", Signature: "Old"}, Count: 1},
	)
	_, stored, err := storage.StoreSnapshot(ctx, old)
	require.NoError(t, err)
	require.True(t, stored)

	fresh := testSnapshot(now, 2,
		hotspot.Entry{Key: hotspot.Key{Type: "app/jobs", Signature: "Fresh"}, Count: 2},
	)
	_, stored, err = storage.StoreSnapshot(ctx, fresh)
	require.NoError(t, err)
	require.True(t, stored)

	require.NoError(t, storage.Cleanup(ctx, 24*time.Hour))

	snaps, err := storage.QueryRange(ctx, now.Add(-72*time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(2), snaps[0].Total)
	require.Len(t, snaps[0].Entries, 1)
	assert.Equal(t, "Fresh", snaps[0].Entries[0].Key.Signature)

	// The removed snapshot leaves no orphaned entry rows behind.
	var entryRows int
	require.NoError(t, storage.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hotspot_entries_local`).Scan(&entryRows))
	assert.Equal(t, 1, entryRows)
}
