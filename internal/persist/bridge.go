// Package persist bridges the in-memory mirror to durable snapshot storage.
// On process start it decodes the stored snapshot and hydrates the store
// unless the snapshot is missing, corrupt, or stale; afterwards it mirrors
// every store mutation back to the backend. Persistence is a best-effort
// cache warmer: save failures are logged and swallowed, and a corrupt
// snapshot is indistinguishable from no snapshot.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"assetmirror/internal/metrics"
	"assetmirror/internal/store"
)

// ErrNoSnapshot is returned by backends when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Backend stores one encoded snapshot under a well-known key.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, payload []byte) error
}

// Config wires the bridge.
type Config struct {
	Backend Backend
	NowFn   func() time.Time
	Metrics metrics.Recorder
	Logger  *slog.Logger
	// SaveTimeout bounds each write-through call. Zero selects 5s.
	SaveTimeout time.Duration
}

// Bridge implements store.Persister on top of a Backend.
type Bridge struct {
	backend     Backend
	nowFn       func() time.Time
	metrics     metrics.Recorder
	logger      *slog.Logger
	saveTimeout time.Duration
}

// New constructs a bridge over the given backend.
func New(cfg Config) *Bridge {
	if cfg.NowFn == nil {
		cfg.NowFn = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 5 * time.Second
	}
	return &Bridge{
		backend:     cfg.Backend,
		nowFn:       cfg.NowFn,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		saveTimeout: cfg.SaveTimeout,
	}
}

// Hydrate restores st from the stored snapshot when one exists and is still
// within its freshness window, then installs the bridge as the store's
// write-through persister. A missing, corrupt or stale snapshot leaves the
// store empty; none of those conditions is an error.
func (b *Bridge) Hydrate(ctx context.Context, st *store.Store) error {
	defer st.SetPersister(b)

	payload, err := b.backend.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			b.logger.Debug("no snapshot to restore")
			return nil
		}
		// Backend trouble on load is not fatal either; start cold.
		b.logger.Warn("snapshot load failed, starting empty", "error", err)
		return nil
	}

	snap, err := store.Decode(payload)
	if err != nil {
		b.logger.Debug("discarding unusable snapshot", "error", err)
		return nil
	}
	if store.IsStale(snap.LastRefreshed, st.TTL(), b.nowFn()) {
		b.logger.Debug("discarding stale snapshot", "refreshed", snap.LastRefreshed)
		return nil
	}

	st.Restore(snap)
	b.metrics.SetResident(st.Len())
	b.logger.Info("mirror restored from snapshot", "records", st.Len(), "refreshed", snap.LastRefreshed)
	return nil
}

// Persist encodes and saves one committed state. The store logs and swallows
// any error returned here.
func (b *Bridge) Persist(snap store.Snapshot) error {
	payload, err := store.Encode(snap)
	if err != nil {
		b.metrics.SnapshotSave(false)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.saveTimeout)
	defer cancel()
	if err := b.backend.Save(ctx, payload); err != nil {
		b.metrics.SnapshotSave(false)
		return err
	}
	b.metrics.SnapshotSave(true)
	return nil
}
