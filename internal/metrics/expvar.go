package metrics

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarRecorder publishes the same cache counters via expvar for
// deployments that prefer process-local metrics without a scrape target.
type ExpvarRecorder struct {
	name     string
	mu       sync.Mutex
	hits     map[string]int64
	misses   map[string]int64
	errors   map[string]int64
	refresh  int64
	saves    map[string]int64
	resident int
}

// ExpvarSnapshot is the read-only view exported under the expvar name.
type ExpvarSnapshot struct {
	Hits       map[string]int64 `json:"cache_hits_total"`
	Misses     map[string]int64 `json:"cache_misses_total"`
	Errors     map[string]int64 `json:"remote_errors_total"`
	Refreshes  int64            `json:"refreshes_total"`
	Saves      map[string]int64 `json:"snapshot_saves_total"`
	Resident   int              `json:"resident_records"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// NewExpvarRecorder constructs a recorder published under name. An empty
// name gets a generated unique identifier.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("assetmirror_cache_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	r := &ExpvarRecorder{
		name:   name,
		hits:   make(map[string]int64),
		misses: make(map[string]int64),
		errors: make(map[string]int64),
		saves:  make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return r.Snapshot()
	}))
	return r
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot returns an immutable copy of the counters.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ExpvarSnapshot{
		Hits:       copyCounts(r.hits),
		Misses:     copyCounts(r.misses),
		Errors:     copyCounts(r.errors),
		Refreshes:  r.refresh,
		Saves:      copyCounts(r.saves),
		Resident:   r.resident,
		RecordedAt: time.Now().UTC(),
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (r *ExpvarRecorder) CacheHit(op string) {
	r.mu.Lock()
	r.hits[op]++
	r.mu.Unlock()
}

func (r *ExpvarRecorder) CacheMiss(op string) {
	r.mu.Lock()
	r.misses[op]++
	r.mu.Unlock()
}

func (r *ExpvarRecorder) Refresh() {
	r.mu.Lock()
	r.refresh++
	r.mu.Unlock()
}

func (r *ExpvarRecorder) RemoteError(op string) {
	r.mu.Lock()
	r.errors[op]++
	r.mu.Unlock()
}

func (r *ExpvarRecorder) SnapshotSave(ok bool) {
	result := "error"
	if ok {
		result = "success"
	}
	r.mu.Lock()
	r.saves[result]++
	r.mu.Unlock()
}

func (r *ExpvarRecorder) SetResident(n int) {
	r.mu.Lock()
	r.resident = n
	r.mu.Unlock()
}
