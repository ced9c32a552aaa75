package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	LockResourceAvailablePackages = "available_packages"
	LockResourceAssignedPackage   = "assigned_package"
	LockResourceStaleAllocations  = "stale_allocations"
)

const (
	ClaimOutcomeClaimed   = "claimed"
	ClaimOutcomeSkipped   = "skipped_duplicate_source"
	ClaimOutcomeExhausted = "pool_exhausted"
)

// PoolMetrics captures allocation engine health signals.
type PoolMetrics struct {
	claimRequests   prometheus.Counter
	claimedPackages *prometheus.CounterVec
	statusReports   *prometheus.CounterVec
	reclaimedTotal  prometheus.Counter
	reclaimRuns     prometheus.Counter
	dbLockWait      *prometheus.HistogramVec

	mu               sync.Mutex
	lockWaitObserver map[string]prometheus.Observer
}

var (
	poolMetricsOnce sync.Once
	poolMetrics     *PoolMetrics
)

// Pool returns the singleton pool metrics registry.
func Pool() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		poolMetrics = newPoolMetrics(prometheus.DefaultRegisterer)
	})
	return poolMetrics
}

func newPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	m := &PoolMetrics{
		claimRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packetpool_claim_requests_total",
			Help: "Pull calls received by the claim engine.",
		}),
		claimedPackages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packetpool_claim_packages_total",
			Help: "Packages evaluated by the claim engine, by outcome.",
		}, []string{"outcome"}),
		statusReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packetpool_status_reports_total",
			Help: "Buyer status reports, by target status.",
		}, []string{"status"}),
		reclaimedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packetpool_reclaimed_packages_total",
			Help: "Stale allocated packages returned to the pool.",
		}),
		reclaimRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packetpool_reclaim_runs_total",
			Help: "Reclaimer sweep executions.",
		}),
		dbLockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "packetpool_db_lock_wait_seconds",
			Help:    "DB lock wait time for SELECT FOR UPDATE contention.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"resource"}),
		lockWaitObserver: make(map[string]prometheus.Observer),
	}

	for _, c := range []prometheus.Collector{
		m.claimRequests, m.claimedPackages, m.statusReports,
		m.reclaimedTotal, m.reclaimRuns, m.dbLockWait,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return m
}

func (m *PoolMetrics) IncClaimRequest() {
	if m == nil {
		return
	}
	m.claimRequests.Inc()
}

func (m *PoolMetrics) AddClaimOutcome(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.claimedPackages.WithLabelValues(outcome).Add(float64(n))
}

func (m *PoolMetrics) IncStatusReport(status string) {
	if m == nil {
		return
	}
	m.statusReports.WithLabelValues(status).Inc()
}

func (m *PoolMetrics) AddReclaimed(n int) {
	if m == nil {
		return
	}
	m.reclaimRuns.Inc()
	if n > 0 {
		m.reclaimedTotal.Add(float64(n))
	}
}

// ObserveDBLockWait records lock wait time for SELECT FOR UPDATE work.
func (m *PoolMetrics) ObserveDBLockWait(resource string, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	obs, ok := m.lockWaitObserver[resource]
	if !ok {
		obs = m.dbLockWait.WithLabelValues(resource)
		m.lockWaitObserver[resource] = obs
	}
	m.mu.Unlock()
	obs.Observe(d.Seconds())
}
