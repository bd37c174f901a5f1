package semidx

import (
	"log/slog"
	"time"

	"github.com/semidx/semidx/persistence"
	"github.com/semidx/semidx/store"
)

type options struct {
	logger              *Logger
	metricsCollector    MetricsCollector
	store               store.Store
	maintenanceInterval time.Duration
	stalenessBound      time.Duration
	snapshotCodec       persistence.Codec
	batchConcurrency    int
}

// Option configures engine construction behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := semidx.NewJSONLogger(slog.LevelInfo)
//	eng, _ := semidx.Flat(128).Embedder(emb).Build(semidx.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &semidx.BasicMetricsCollector{}
//	eng, _ := semidx.Flat(128).Embedder(emb).Build(semidx.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithStore configures the vector store backend. Defaults to the in-memory
// store. The interface permits durable backends without changing the engine.
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithMaintenanceInterval enables the background maintenance loop with the
// given pass interval. Zero (the default) disables the loop; passes can still
// be driven explicitly through Rebuild.
func WithMaintenanceInterval(interval time.Duration) Option {
	return func(o *options) {
		o.maintenanceInterval = interval
	}
}

// WithStalenessBound configures how long an active record may stay absent
// from the index before a maintenance pass repairs it. Default: repair
// immediately.
func WithStalenessBound(bound time.Duration) Option {
	return func(o *options) {
		o.stalenessBound = bound
	}
}

// WithSnapshotCodec selects the compression codec used by SaveSnapshot.
// Default: zstd.
func WithSnapshotCodec(codec persistence.Codec) Option {
	return func(o *options) {
		o.snapshotCodec = codec
	}
}

// WithBatchConcurrency bounds how many items of a batch ingest run in
// parallel. Default: 4.
func WithBatchConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchConcurrency = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		store:            store.NewMemoryStore(),
		snapshotCodec:    persistence.CodecZstd,
		batchConcurrency: 4,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
