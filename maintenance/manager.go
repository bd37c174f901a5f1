// Package maintenance keeps the similarity index consistent with the vector
// store: incremental insert-on-write, full double-buffered rebuilds, and a
// repair pass for orphaned and missing entries.
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/record"
	"github.com/semidx/semidx/store"
)

// Health summarizes index condition as reported by Status.
type Health string

const (
	// HealthOK means the last maintenance activity completed cleanly.
	HealthOK Health = "ok"
	// HealthDegraded means the last pass repaired inconsistencies or the
	// last rebuild failed; reads continue against the last good snapshot.
	HealthDegraded Health = "degraded"
)

// Status is the index health snapshot returned to callers.
type Status struct {
	EntryCount    int
	BuildEpoch    uint64
	LastBuildTime time.Time
	LastPassTime  time.Time
	ModelVersion  string
	Health        Health

	// OrphansRepaired and MissingRepaired count repairs over the manager's
	// lifetime.
	OrphansRepaired int64
	MissingRepaired int64
}

// Factory constructs an empty index for rebuilds.
type Factory func() (index.Index, error)

// Options contains configuration options for a Manager.
type Options struct {
	// StalenessBound is how long an active record may be absent from the
	// index before a maintenance pass treats it as missing and repairs it.
	// Default: 0 (repair immediately).
	StalenessBound time.Duration

	// Logger receives repair warnings. If nil, logging is disabled.
	Logger *slog.Logger
}

type holder struct {
	idx index.Index
}

// Manager owns the serving index and the cadence of incorporating vector
// store changes into it.
//
// The serving index is published under an atomic pointer: rebuilds construct
// a fresh index off to the side and swap it in only on full success, so
// readers always query the last good snapshot and never observe a partially
// constructed index.
type Manager struct {
	store        store.Store
	factory      Factory
	modelVersion string
	opts         Options

	current atomic.Pointer[holder]

	rebuildMu sync.Mutex // Serializes rebuilds; reads are never blocked.

	epochBase atomic.Uint64 // Monotonic across index swaps.

	lastBuild atomic.Int64 // unix nanos
	lastPass  atomic.Int64
	degraded  atomic.Bool

	orphansRepaired atomic.Int64
	missingRepaired atomic.Int64
}

// NewManager creates a Manager serving a fresh empty index from factory.
func NewManager(s store.Store, modelVersion string, factory Factory, optFns ...func(o *Options)) (*Manager, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	idx, err := factory()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:        s,
		factory:      factory,
		modelVersion: modelVersion,
		opts:         opts,
	}
	m.current.Store(&holder{idx: idx})
	m.lastBuild.Store(time.Now().UnixNano())

	return m, nil
}

// Snapshot returns the currently serving index snapshot.
func (m *Manager) Snapshot() index.Snapshot {
	return m.current.Load().idx.Snapshot()
}

// Insert incorporates a new or changed record incrementally (insert-on-write).
func (m *Manager) Insert(id record.ID, vector []float32) error {
	return m.current.Load().idx.Insert(id, vector)
}

// Remove drops id from the serving index. A missing entry is not an error
// here; the maintenance pass owns stragglers.
func (m *Manager) Remove(id record.ID) error {
	err := m.current.Load().idx.Remove(id)

	var notFound *index.ErrEntryNotFound
	if errors.As(err, &notFound) {
		return nil
	}

	return err
}

// Epoch returns the published build epoch: the swap-monotonic base plus the
// serving index's own epoch.
func (m *Manager) Epoch() uint64 {
	return m.epochBase.Load() + m.current.Load().idx.Snapshot().Epoch()
}

// Rebuild constructs a fresh index from every active record in the store and
// atomically publishes it. A rebuild that fails partway publishes nothing:
// reads continue against the previous snapshot.
//
// Cancellation is cooperative, checked per record.
func (m *Manager) Rebuild(ctx context.Context) (uint64, error) {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	next, err := m.factory()
	if err != nil {
		m.degraded.Store(true)
		return 0, err
	}

	for rec, err := range m.store.Scan(ctx, activeRecords) {
		if err != nil {
			m.degraded.Store(true)
			return 0, err
		}
		if err := ctx.Err(); err != nil {
			m.degraded.Store(true)
			return 0, err
		}

		if err := next.Insert(rec.ID, rec.Vector); err != nil {
			m.degraded.Store(true)
			return 0, err
		}
	}

	// Fold the outgoing index's epoch into the base so epochs stay
	// monotonic across the swap.
	prev := m.current.Load()
	m.epochBase.Add(prev.idx.Snapshot().Epoch() + 1)
	m.current.Store(&holder{idx: next})

	m.lastBuild.Store(time.Now().UnixNano())
	m.degraded.Store(false)

	epoch := m.Epoch()
	m.opts.Logger.InfoContext(ctx, "index rebuild completed",
		"entries", next.Len(),
		"epoch", epoch,
	)

	return epoch, nil
}

func activeRecords(rec record.ContentRecord) bool {
	return rec.State.Active()
}

// Pass runs one maintenance pass: orphaned index entries (pointing at deleted
// or superseded records) are removed and active records missing from the
// index past the staleness bound are inserted. Inconsistencies are repaired
// and logged as warnings; they degrade health rather than failing the pass.
func (m *Manager) Pass(ctx context.Context) error {
	idx := m.current.Load().idx
	snap := idx.Snapshot()

	repaired := false

	// Orphans: entries whose record is gone or no longer active.
	for entry := range snap.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := m.store.Get(ctx, entry.ID)
		active := err == nil && rec.State.Active()
		if active {
			continue
		}

		var notFound *store.NotFoundError
		if err != nil && !errors.As(err, &notFound) {
			return err
		}

		m.opts.Logger.WarnContext(ctx, "repairing orphaned index entry", "id", entry.ID)
		if err := idx.Remove(entry.ID); err != nil {
			var entryGone *index.ErrEntryNotFound
			if !errors.As(err, &entryGone) {
				return err
			}
		}
		m.orphansRepaired.Add(1)
		repaired = true
	}

	// Missing: active records absent from the index past the staleness bound.
	cutoff := time.Now().Add(-m.opts.StalenessBound)
	for rec, err := range m.store.Scan(ctx, activeRecords) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if snap.Contains(rec.ID) || rec.CreatedAt.After(cutoff) {
			continue
		}

		m.opts.Logger.WarnContext(ctx, "repairing missing index entry", "id", rec.ID)
		if err := idx.Insert(rec.ID, rec.Vector); err != nil {
			return err
		}
		m.missingRepaired.Add(1)
		repaired = true
	}

	m.lastPass.Store(time.Now().UnixNano())
	m.degraded.Store(repaired)

	return nil
}

// MarkDegraded flags the index health as degraded until the next clean pass
// or successful rebuild. Used when a consistency violation is detected on the
// write path.
func (m *Manager) MarkDegraded() {
	m.degraded.Store(true)
}

// Run executes maintenance passes every interval until ctx is done. Pass
// failures are logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Pass(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.opts.Logger.ErrorContext(ctx, "maintenance pass failed", "error", err)
			}
		}
	}
}

// Status returns the index health snapshot.
func (m *Manager) Status() Status {
	health := HealthOK
	if m.degraded.Load() {
		health = HealthDegraded
	}

	return Status{
		EntryCount:      m.current.Load().idx.Len(),
		BuildEpoch:      m.Epoch(),
		LastBuildTime:   time.Unix(0, m.lastBuild.Load()),
		LastPassTime:    time.Unix(0, m.lastPass.Load()),
		ModelVersion:    m.modelVersion,
		Health:          health,
		OrphansRepaired: m.orphansRepaired.Load(),
		MissingRepaired: m.missingRepaired.Load(),
	}
}
