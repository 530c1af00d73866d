// Package metrics records cache behavior: hits and misses per operation,
// full refreshes, remote failures, snapshot persistence outcomes and the
// resident record count. The façade and persistence bridge report through
// the Recorder interface so tests can inject a fake.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives cache observability events.
type Recorder interface {
	CacheHit(op string)
	CacheMiss(op string)
	Refresh()
	RemoteError(op string)
	SnapshotSave(ok bool)
	SetResident(n int)
}

// Nop discards every event.
type Nop struct{}

func (Nop) CacheHit(string)    {}
func (Nop) CacheMiss(string)   {}
func (Nop) Refresh()           {}
func (Nop) RemoteError(string) {}
func (Nop) SnapshotSave(bool)  {}
func (Nop) SetResident(int)    {}

// Tee fans every event out to each recorder in order.
func Tee(recorders ...Recorder) Recorder { return tee(recorders) }

type tee []Recorder

func (t tee) CacheHit(op string) {
	for _, r := range t {
		r.CacheHit(op)
	}
}

func (t tee) CacheMiss(op string) {
	for _, r := range t {
		r.CacheMiss(op)
	}
}

func (t tee) Refresh() {
	for _, r := range t {
		r.Refresh()
	}
}

func (t tee) RemoteError(op string) {
	for _, r := range t {
		r.RemoteError(op)
	}
}

func (t tee) SnapshotSave(ok bool) {
	for _, r := range t {
		r.SnapshotSave(ok)
	}
}

func (t tee) SetResident(n int) {
	for _, r := range t {
		r.SetResident(n)
	}
}

// PromRecorder exports cache metrics through a prometheus registry.
type PromRecorder struct {
	hits         *prometheus.CounterVec
	misses       *prometheus.CounterVec
	refreshes    prometheus.Counter
	remoteErrors *prometheus.CounterVec
	snapshots    *prometheus.CounterVec
	resident     prometheus.Gauge
}

// NewPromRecorder constructs and registers the cache collectors. A nil
// registerer falls back to the default registry.
func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PromRecorder{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assetmirror_cache_hits_total",
			Help: "Reads served from the in-memory mirror without a network call.",
		}, []string{"op"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assetmirror_cache_misses_total",
			Help: "Reads that required a remote fetch.",
		}, []string{"op"}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetmirror_refreshes_total",
			Help: "Full list refreshes applied to the mirror.",
		}),
		remoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assetmirror_remote_errors_total",
			Help: "Remote service calls that failed.",
		}, []string{"op"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assetmirror_snapshot_saves_total",
			Help: "Snapshot persistence attempts by result.",
		}, []string{"result"}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assetmirror_resident_records",
			Help: "Records currently held by the mirror.",
		}),
	}
	reg.MustRegister(r.hits, r.misses, r.refreshes, r.remoteErrors, r.snapshots, r.resident)
	return r
}

func (r *PromRecorder) CacheHit(op string)    { r.hits.WithLabelValues(op).Inc() }
func (r *PromRecorder) CacheMiss(op string)   { r.misses.WithLabelValues(op).Inc() }
func (r *PromRecorder) Refresh()              { r.refreshes.Inc() }
func (r *PromRecorder) RemoteError(op string) { r.remoteErrors.WithLabelValues(op).Inc() }

func (r *PromRecorder) SnapshotSave(ok bool) {
	result := "error"
	if ok {
		result = "success"
	}
	r.snapshots.WithLabelValues(result).Inc()
}

func (r *PromRecorder) SetResident(n int) { r.resident.Set(float64(n)) }
