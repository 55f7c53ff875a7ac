package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics instruments the engine's operation surface.
type MarketplaceMetrics struct {
	operations   *prometheus.CounterVec
	openJobs     prometheus.Gauge
	lockedEscrow prometheus.Gauge
}

var (
	marketplaceOnce     sync.Once
	marketplaceRegistry *MarketplaceMetrics
)

// Marketplace returns the process-wide marketplace metrics registry.
func Marketplace() *MarketplaceMetrics {
	marketplaceOnce.Do(func() {
		marketplaceRegistry = &MarketplaceMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "marketplace_operations_total",
				Help: "Count of ledger operations by method and result.",
			}, []string{"method", "result"}),
			openJobs: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "marketplace_open_jobs",
				Help: "Number of jobs currently awaiting assignment.",
			}),
			lockedEscrow: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "marketplace_escrow_locked_units",
				Help: "Total escrowed units currently held by the vault.",
			}),
		}
		prometheus.MustRegister(
			marketplaceRegistry.operations,
			marketplaceRegistry.openJobs,
			marketplaceRegistry.lockedEscrow,
		)
	})
	return marketplaceRegistry
}

// RecordOperation counts one ledger operation outcome. Result is "ok" or
// "error".
func (m *MarketplaceMetrics) RecordOperation(method, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(method, result).Inc()
}

// AddOpenJobs moves the open-jobs gauge by delta.
func (m *MarketplaceMetrics) AddOpenJobs(delta float64) {
	if m == nil {
		return
	}
	m.openJobs.Add(delta)
}

// AddLockedEscrow moves the locked-escrow gauge by delta units.
func (m *MarketplaceMetrics) AddLockedEscrow(delta float64) {
	if m == nil {
		return
	}
	m.lockedEscrow.Add(delta)
}
