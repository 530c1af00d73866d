// Package store holds the authoritative in-memory mirror of remote asset
// records: a primary map plus three derived indexes and a stable insertion
// order, kept mutually consistent through every mutation path. Mutations
// clone the current state, edit the clone, and swap it in as one step, so a
// reader can never observe a half-applied write and a failure mid-update can
// never leave the indexes disagreeing.
package store

import (
	"log/slog"
	"sync"
	"time"

	"assetmirror/pkg/domain"
)

// DefaultTTL is the freshness window applied when Config.TTL is zero.
// Callers wanting a tighter window (e.g. five minutes) set Config.TTL.
const DefaultTTL = time.Hour

// IsStale reports whether data refreshed at last has outlived ttl as of now.
// Data aged exactly ttl is still fresh; one instant past it is stale.
func IsStale(last time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(last) > ttl
}

// Persister mirrors each committed state somewhere durable. Persistence is a
// best-effort cache warmer: the store logs and swallows failures.
type Persister interface {
	Persist(Snapshot) error
}

// Config controls store construction. Zero values select production
// defaults; tests inject NowFn and a fake Persister.
type Config struct {
	TTL       time.Duration
	NowFn     func() time.Time
	Persister Persister
	Logger    *slog.Logger
}

type state struct {
	byID           map[int64]domain.Asset
	byIdentifier   map[string]int64
	byType         map[domain.AssetType]map[int64]struct{}
	activeIDs      map[int64]struct{}
	insertionOrder []int64
	lastRefreshed  time.Time
}

func newState() state {
	return state{
		byID:         make(map[int64]domain.Asset),
		byIdentifier: make(map[string]int64),
		byType:       make(map[domain.AssetType]map[int64]struct{}),
		activeIDs:    make(map[int64]struct{}),
	}
}

func (s state) clone() state {
	cloned := state{
		byID:           make(map[int64]domain.Asset, len(s.byID)),
		byIdentifier:   make(map[string]int64, len(s.byIdentifier)),
		byType:         make(map[domain.AssetType]map[int64]struct{}, len(s.byType)),
		activeIDs:      make(map[int64]struct{}, len(s.activeIDs)),
		insertionOrder: append([]int64(nil), s.insertionOrder...),
		lastRefreshed:  s.lastRefreshed,
	}
	for k, v := range s.byID {
		cloned.byID[k] = domain.CloneAsset(v)
	}
	for k, v := range s.byIdentifier {
		cloned.byIdentifier[k] = v
	}
	for t, bucket := range s.byType {
		cp := make(map[int64]struct{}, len(bucket))
		for id := range bucket {
			cp[id] = struct{}{}
		}
		cloned.byType[t] = cp
	}
	for id := range s.activeIDs {
		cloned.activeIDs[id] = struct{}{}
	}
	return cloned
}

// upsert inserts or overwrites one asset, keeping all four structures in
// agreement. Records without a primary ID are rejected and skipped. A live
// identifier belongs to exactly one record: an upsert claiming an identifier
// held by a different record evicts the stale holder.
func (s *state) upsert(a domain.Asset) {
	if a.ID == 0 {
		return
	}
	if existing, seen := s.byID[a.ID]; seen {
		if owner, ok := s.byIdentifier[existing.Identifier]; ok && owner == a.ID {
			delete(s.byIdentifier, existing.Identifier)
		}
		s.bucketRemove(existing.Type, a.ID)
		delete(s.activeIDs, a.ID)
	} else {
		s.insertionOrder = append(s.insertionOrder, a.ID)
	}
	if other, ok := s.byIdentifier[a.Identifier]; ok && other != a.ID {
		s.remove(other)
	}
	s.byID[a.ID] = domain.CloneAsset(a)
	s.byIdentifier[a.Identifier] = a.ID
	s.bucketAdd(a.Type, a.ID)
	if a.Active {
		s.activeIDs[a.ID] = struct{}{}
	}
}

func (s *state) remove(id int64) {
	existing, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if owner, ok := s.byIdentifier[existing.Identifier]; ok && owner == id {
		delete(s.byIdentifier, existing.Identifier)
	}
	s.bucketRemove(existing.Type, id)
	delete(s.activeIDs, id)
	for i, ord := range s.insertionOrder {
		if ord == id {
			s.insertionOrder = append(s.insertionOrder[:i], s.insertionOrder[i+1:]...)
			break
		}
	}
}

func (s *state) bucketAdd(t domain.AssetType, id int64) {
	bucket, ok := s.byType[t]
	if !ok {
		bucket = make(map[int64]struct{})
		s.byType[t] = bucket
	}
	bucket[id] = struct{}{}
}

func (s *state) bucketRemove(t domain.AssetType, id int64) {
	if bucket, ok := s.byType[t]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(s.byType, t)
		}
	}
}

// Store is the multi-index asset mirror. All mutations are atomic with
// respect to reads and to each other.
type Store struct {
	mu        sync.RWMutex
	persistMu sync.Mutex // serializes write-through in commit order
	state     state
	ttl       time.Duration
	nowFn     func() time.Time
	persister Persister
	logger    *slog.Logger
}

// New constructs an empty store.
func New(cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.NowFn == nil {
		cfg.NowFn = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		state:     newState(),
		ttl:       cfg.TTL,
		nowFn:     cfg.NowFn,
		persister: cfg.Persister,
		logger:    cfg.Logger,
	}
}

// SetPersister installs the write-through persister. The persistence bridge
// calls this after hydration so the initial restore does not echo back.
func (s *Store) SetPersister(p Persister) {
	s.mu.Lock()
	s.persister = p
	s.mu.Unlock()
}

// UpsertMany inserts or overwrites a batch of records and marks the mirror
// fresh. Used by the bulk read-through path.
func (s *Store) UpsertMany(assets []domain.Asset) {
	s.mutate(func(next *state) {
		for _, a := range assets {
			next.upsert(a)
		}
		next.lastRefreshed = s.nowFn()
	})
}

// UpsertOne inserts or overwrites a single record without advancing the
// freshness mark: one record landing does not make the whole list fresh.
func (s *Store) UpsertOne(a domain.Asset) {
	s.mutate(func(next *state) {
		next.upsert(a)
	})
}

// ApplyPatch merges patch onto the record with the given id, remapping the
// identifier, type bucket and active set as needed, all in one swap.
func (s *Store) ApplyPatch(id int64, patch domain.AssetPatch) (domain.Asset, error) {
	var updated domain.Asset
	err := s.mutateErr(func(next *state) error {
		existing, ok := next.byID[id]
		if !ok {
			return domain.NotFoundError{ID: id}
		}
		merged := patch.Apply(existing)
		merged.ID = id
		next.upsert(merged)
		updated = domain.CloneAsset(merged)
		return nil
	})
	return updated, err
}

// Remove deletes the record from every structure. Absent ids are a no-op.
func (s *Store) Remove(id int64) {
	s.mutate(func(next *state) {
		next.remove(id)
	})
}

// Clear drops every record and resets the freshness mark to the zero time.
// Used only by full invalidation.
func (s *Store) Clear() {
	s.mutate(func(next *state) {
		*next = newState()
	})
}

func (s *Store) mutate(fn func(*state)) {
	_ = s.mutateErr(func(next *state) error {
		fn(next)
		return nil
	})
}

func (s *Store) mutateErr(fn func(*state) error) error {
	s.mu.Lock()
	next := s.state.clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	p := s.persister
	if p == nil {
		s.mu.Unlock()
		return nil
	}
	snap := snapshotFromState(next, s.ttl)

	// Taking persistMu before releasing mu keeps write-through ordered: a
	// later commit cannot reach the backend ahead of an earlier one.
	s.persistMu.Lock()
	s.mu.Unlock()
	err := p.Persist(snap)
	s.persistMu.Unlock()
	if err != nil {
		s.logger.Warn("snapshot persist failed", "error", err)
	}
	return nil
}

// GetByID returns the record for a primary id.
func (s *Store) GetByID(id int64) (domain.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.byID[id]
	if !ok {
		return domain.Asset{}, false
	}
	return domain.CloneAsset(a), true
}

// GetByIdentifier returns the record for a business identifier.
func (s *Store) GetByIdentifier(identifier string) (domain.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.state.byIdentifier[identifier]
	if !ok {
		return domain.Asset{}, false
	}
	return domain.CloneAsset(s.state.byID[id]), true
}

// List returns every record in first-seen order.
func (s *Store) List() []domain.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Asset, 0, len(s.state.insertionOrder))
	for _, id := range s.state.insertionOrder {
		out = append(out, domain.CloneAsset(s.state.byID[id]))
	}
	return out
}

// ListByType returns the type bucket in first-seen order.
func (s *Store) ListByType(t domain.AssetType) []domain.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.state.byType[t]
	out := make([]domain.Asset, 0, len(bucket))
	for _, id := range s.state.insertionOrder {
		if _, ok := bucket[id]; ok {
			out = append(out, domain.CloneAsset(s.state.byID[id]))
		}
	}
	return out
}

// ListActive returns records whose active flag is set, in first-seen order.
func (s *Store) ListActive() []domain.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Asset, 0, len(s.state.activeIDs))
	for _, id := range s.state.insertionOrder {
		if _, ok := s.state.activeIDs[id]; ok {
			out = append(out, domain.CloneAsset(s.state.byID[id]))
		}
	}
	return out
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.byID)
}

// Empty reports whether the mirror holds no records.
func (s *Store) Empty() bool { return s.Len() == 0 }

// LastRefreshed returns the time of the last successful bulk refresh.
func (s *Store) LastRefreshed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.lastRefreshed
}

// TTL returns the configured freshness window.
func (s *Store) TTL() time.Duration { return s.ttl }

// Stale reports whether the mirror has outlived its freshness window.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IsStale(s.state.lastRefreshed, s.ttl, s.nowFn())
}

// Export captures the committed state as a snapshot.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(s.state, s.ttl)
}

// Restore replaces the committed state with a decoded snapshot. Indexes are
// re-derived from the record values, so entries that would violate index
// agreement (duplicate identifiers, unknown ids in the order list) are
// dropped rather than trusted. The persister is not notified.
func (s *Store) Restore(snap Snapshot) {
	next := stateFromSnapshot(snap)
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}
