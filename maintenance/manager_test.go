package maintenance

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/index/flat"
	"github.com/semidx/semidx/record"
	"github.com/semidx/semidx/store"
)

func flatFactory(dim int) Factory {
	return func() (index.Index, error) {
		return flat.New(func(o *flat.Options) { o.Dimension = dim })
	}
}

func newRecord(id record.ID, vec []float32, state record.State) record.ContentRecord {
	return record.ContentRecord{
		ID:           id,
		Fingerprint:  fmt.Sprintf("fp-%s", id),
		ModelVersion: "model-v1",
		Vector:       vec,
		VectorOwner:  id,
		State:        state,
		CreatedAt:    time.Now().Add(-time.Minute),
	}
}

func newManager(t *testing.T, s store.Store, optFns ...func(o *Options)) *Manager {
	t.Helper()

	m, err := NewManager(s, "model-v1", flatFactory(2), optFns...)
	require.NoError(t, err)
	return m
}

func TestManager_Rebuild(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Put(ctx, newRecord("a", []float32{1, 0}, record.StateIndexed)))
	require.NoError(t, s.Put(ctx, newRecord("b", []float32{0, 1}, record.StateEmbedded)))
	require.NoError(t, s.Put(ctx, newRecord("c", []float32{1, 1}, record.StateSuperseded)))

	m := newManager(t, s)

	epoch, err := m.Rebuild(ctx)
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, 2, snap.Len())
	assert.True(t, snap.Contains("a"))
	assert.True(t, snap.Contains("b"))
	assert.False(t, snap.Contains("c"), "inactive records are not indexed")
	assert.Equal(t, epoch, m.Epoch())
}

func TestManager_RebuildFailureKeepsServingSnapshot(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, newRecord("a", []float32{1, 0}, record.StateIndexed)))

	faulty := &faultStore{Store: s}
	m := newManager(t, faulty)

	_, err := m.Rebuild(ctx)
	require.NoError(t, err)
	before := m.Snapshot()
	require.Equal(t, 1, before.Len())

	faulty.failScan = true
	_, err = m.Rebuild(ctx)
	require.Error(t, err)

	// The failed rebuild published nothing.
	after := m.Snapshot()
	assert.Equal(t, 1, after.Len())
	assert.True(t, after.Contains("a"))
	assert.Equal(t, HealthDegraded, m.Status().Health)

	// The next clean rebuild recovers.
	faulty.failScan = false
	_, err = m.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, HealthOK, m.Status().Health)
}

func TestManager_EpochMonotonicAcrossSwaps(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	m := newManager(t, s)

	var last uint64
	for i := range 3 {
		id := record.ID(fmt.Sprintf("rec-%d", i))
		require.NoError(t, s.Put(ctx, newRecord(id, []float32{1, 0}, record.StateIndexed)))
		require.NoError(t, m.Insert(id, []float32{1, 0}))

		epoch, err := m.Rebuild(ctx)
		require.NoError(t, err)
		assert.Greater(t, epoch, last)
		last = epoch
	}
}

func TestManager_Insert(t *testing.T) {
	m := newManager(t, store.NewMemoryStore())

	require.NoError(t, m.Insert("a", []float32{1, 0}))
	assert.True(t, m.Snapshot().Contains("a"))
}

func TestManager_Remove(t *testing.T) {
	m := newManager(t, store.NewMemoryStore())

	require.NoError(t, m.Insert("a", []float32{1, 0}))
	require.NoError(t, m.Remove("a"))
	assert.False(t, m.Snapshot().Contains("a"))

	// Removing an entry the index never held is not an error.
	require.NoError(t, m.Remove("a"))
}

func TestManager_Pass(t *testing.T) {
	ctx := context.Background()

	t.Run("RepairsOrphans", func(t *testing.T) {
		s := store.NewMemoryStore()
		rec := newRecord("a", []float32{1, 0}, record.StateIndexed)
		require.NoError(t, s.Put(ctx, rec))

		m := newManager(t, s)
		_, err := m.Rebuild(ctx)
		require.NoError(t, err)

		// The record is deleted behind the index's back.
		rec.State = record.StateDeleted
		require.NoError(t, s.Put(ctx, rec))

		require.NoError(t, m.Pass(ctx))
		assert.False(t, m.Snapshot().Contains("a"))

		status := m.Status()
		assert.Equal(t, int64(1), status.OrphansRepaired)
		assert.Equal(t, HealthDegraded, status.Health)
	})

	t.Run("RepairsMissing", func(t *testing.T) {
		s := store.NewMemoryStore()
		m := newManager(t, s)

		// An active record the index never saw, older than the bound.
		require.NoError(t, s.Put(ctx, newRecord("a", []float32{1, 0}, record.StateEmbedded)))

		require.NoError(t, m.Pass(ctx))
		assert.True(t, m.Snapshot().Contains("a"))
		assert.Equal(t, int64(1), m.Status().MissingRepaired)
	})

	t.Run("StalenessBoundDefersRepair", func(t *testing.T) {
		s := store.NewMemoryStore()
		m := newManager(t, s, func(o *Options) { o.StalenessBound = time.Hour })

		rec := newRecord("a", []float32{1, 0}, record.StateEmbedded)
		rec.CreatedAt = time.Now()
		require.NoError(t, s.Put(ctx, rec))

		require.NoError(t, m.Pass(ctx))
		assert.False(t, m.Snapshot().Contains("a"), "records within the bound are left alone")
		assert.Equal(t, HealthOK, m.Status().Health)
	})

	t.Run("CleanPassClearsDegraded", func(t *testing.T) {
		s := store.NewMemoryStore()
		m := newManager(t, s)

		m.MarkDegraded()
		require.Equal(t, HealthDegraded, m.Status().Health)

		require.NoError(t, m.Pass(ctx))
		assert.Equal(t, HealthOK, m.Status().Health)
	})
}

func TestManager_Status(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, newRecord("a", []float32{1, 0}, record.StateIndexed)))

	m := newManager(t, s)
	_, err := m.Rebuild(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Pass(ctx))

	status := m.Status()
	assert.Equal(t, 1, status.EntryCount)
	assert.Equal(t, "model-v1", status.ModelVersion)
	assert.Equal(t, HealthOK, status.Health)
	assert.False(t, status.LastBuildTime.IsZero())
	assert.False(t, status.LastPassTime.IsZero())
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := newManager(t, store.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

// faultStore wraps a Store and fails Scan on demand.
type faultStore struct {
	store.Store
	failScan bool
}

var errScanFault = errors.New("scan fault injected")

func (f *faultStore) Scan(ctx context.Context, filter store.Filter) iter.Seq2[record.ContentRecord, error] {
	if f.failScan {
		return func(yield func(record.ContentRecord, error) bool) {
			yield(record.ContentRecord{}, errScanFault)
		}
	}

	return f.Store.Scan(ctx, filter)
}
