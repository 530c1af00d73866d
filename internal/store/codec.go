package store

import (
	"encoding/json"
	"fmt"
	"time"

	"assetmirror/pkg/domain"
)

// Snapshot is the flat, JSON-safe form of the store state: maps and sets are
// flattened to arrays so the encoding round-trips exactly regardless of the
// storage backend. Records are listed in insertion order.
type Snapshot struct {
	Records        []domain.Asset `json:"records"`
	TypeIndex      []TypeBucket   `json:"type_index"`
	ActiveIDs      []int64        `json:"active_ids"`
	InsertionOrder []int64        `json:"insertion_order"`
	LastRefreshed  time.Time      `json:"last_refreshed"`
	TTL            time.Duration  `json:"ttl"`
}

// TypeBucket is one type-tag entry of the flattened type index.
type TypeBucket struct {
	Type domain.AssetType `json:"type"`
	IDs  []int64          `json:"ids"`
}

// Encode serializes a snapshot for the persistence backends.
func Encode(snap Snapshot) ([]byte, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// Decode parses an encoded snapshot. Malformed input yields an error
// wrapping domain.ErrCorruptSnapshot; callers treat that as "no usable
// snapshot", never as a fatal condition.
func Decode(b []byte) (Snapshot, error) {
	var snap Snapshot
	if len(b) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty payload", domain.ErrCorruptSnapshot)
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}
	return snap, nil
}

func snapshotFromState(st state, ttl time.Duration) Snapshot {
	snap := Snapshot{
		Records:        make([]domain.Asset, 0, len(st.byID)),
		TypeIndex:      make([]TypeBucket, 0, len(st.byType)),
		ActiveIDs:      make([]int64, 0, len(st.activeIDs)),
		InsertionOrder: append([]int64(nil), st.insertionOrder...),
		LastRefreshed:  st.lastRefreshed,
		TTL:            ttl,
	}
	for _, id := range st.insertionOrder {
		snap.Records = append(snap.Records, domain.CloneAsset(st.byID[id]))
	}
	for _, t := range domain.AssetTypes() {
		bucket, ok := st.byType[t]
		if !ok {
			continue
		}
		ids := make([]int64, 0, len(bucket))
		for _, id := range st.insertionOrder {
			if _, member := bucket[id]; member {
				ids = append(ids, id)
			}
		}
		snap.TypeIndex = append(snap.TypeIndex, TypeBucket{Type: t, IDs: ids})
	}
	for _, id := range st.insertionOrder {
		if _, active := st.activeIDs[id]; active {
			snap.ActiveIDs = append(snap.ActiveIDs, id)
		}
	}
	return snap
}

// stateFromSnapshot rebuilds the index structures from record values alone.
// The flattened indexes in the snapshot are not trusted: replaying each
// record through the normal upsert path drops duplicates and entries the
// indexes could not agree on.
func stateFromSnapshot(snap Snapshot) state {
	st := newState()
	for _, a := range snap.Records {
		st.upsert(a)
	}
	st.lastRefreshed = snap.LastRefreshed
	return st
}
