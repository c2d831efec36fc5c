package monitor

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkloadStats counts store traffic. Counters are exported to prometheus
// when a registerer is given; atomic mirrors back the ratio helpers.
type WorkloadStats struct {
	ReadCount  uint64
	WriteCount uint64
	HitCount   uint64
	MissCount  uint64

	reads  prometheus.Counter
	writes prometheus.Counter
	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewWorkloadStats creates counters labelled with the store kind. A nil
// registerer keeps them unregistered.
func NewWorkloadStats(reg prometheus.Registerer, store string) *WorkloadStats {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"store": store}
	return &WorkloadStats{
		reads: factory.NewCounter(prometheus.CounterOpts{
			Name:        "cabinet_lookups_total",
			Help:        "Total field lookups served",
			ConstLabels: labels,
		}),
		writes: factory.NewCounter(prometheus.CounterOpts{
			Name:        "cabinet_writes_total",
			Help:        "Total mutating operations applied",
			ConstLabels: labels,
		}),
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name:        "cabinet_cache_hits_total",
			Help:        "Lookups answered from the lookup cache",
			ConstLabels: labels,
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name:        "cabinet_cache_misses_total",
			Help:        "Lookups computed from the index set",
			ConstLabels: labels,
		}),
	}
}

func (ws *WorkloadStats) RecordRead() {
	atomic.AddUint64(&ws.ReadCount, 1)
	ws.reads.Inc()
}

func (ws *WorkloadStats) RecordWrite() {
	atomic.AddUint64(&ws.WriteCount, 1)
	ws.writes.Inc()
}

func (ws *WorkloadStats) RecordHit() {
	atomic.AddUint64(&ws.HitCount, 1)
	ws.hits.Inc()
}

func (ws *WorkloadStats) RecordMiss() {
	atomic.AddUint64(&ws.MissCount, 1)
	ws.misses.Inc()
}

func (ws *WorkloadStats) GetReadWriteRatio() float64 {
	reads := atomic.LoadUint64(&ws.ReadCount)
	writes := atomic.LoadUint64(&ws.WriteCount)

	if writes == 0 {
		if reads > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(reads) / float64(writes)
}

// GetHitRatio is the share of lookups answered by the cache.
func (ws *WorkloadStats) GetHitRatio() float64 {
	hits := atomic.LoadUint64(&ws.HitCount)
	misses := atomic.LoadUint64(&ws.MissCount)
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
