package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		codesGeneratedTotal,
		codesRedeemedTotal,
		codesDeactivatedTotal,
		codesReservedTotal,
		codesReleasedTotal,
		codePoolSize,
		distributionResultsTotal,
	)
}

var (
	codesGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sponsorship_codes_generated_total",
			Help: "Codes generated across all purchases.",
		},
	)

	codesRedeemedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sponsorship_codes_redeemed_total",
			Help: "Codes successfully redeemed into subscriptions.",
		},
	)

	codesDeactivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sponsorship_codes_deactivated_total",
			Help: "Codes deactivated by admins or refund cascades.",
		},
	)

	codesReservedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sponsorship_codes_reserved_total",
			Help: "Codes reserved for invitations.",
		},
	)

	codesReleasedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sponsorship_codes_released_total",
			Help: "Reserved codes released back to the pool.",
		},
	)

	codePoolSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sponsorship_code_pool_size",
			Help: "Current pool composition per sponsor.",
		},
		[]string{"sponsor_id", "state"}, // 'available', 'reserved', 'used', 'deactivated', 'expired'
	)

	distributionResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sponsorship_distribution_results_total",
			Help: "Bulk distribution outcomes per recipient.",
		},
		[]string{"result"}, // 'success', 'failed'
	)
)

func AddCodesGenerated(count int)   { codesGeneratedTotal.Add(float64(count)) }
func IncCodesRedeemed()             { codesRedeemedTotal.Inc() }
func AddCodesDeactivated(count int) { codesDeactivatedTotal.Add(float64(count)) }
func AddCodesReserved(count int)    { codesReservedTotal.Add(float64(count)) }
func AddCodesReleased(count int)    { codesReleasedTotal.Add(float64(count)) }

func ObserveDistribution(success, failed int) {
	distributionResultsTotal.WithLabelValues("success").Add(float64(success))
	distributionResultsTotal.WithLabelValues("failed").Add(float64(failed))
}

// SetCodePoolSize publishes the pool composition reported by the sweeper.
func SetCodePoolSize(sponsorID string, counts map[string]int) {
	for state, n := range counts {
		codePoolSize.WithLabelValues(sponsorID, norm(state)).Set(float64(n))
	}
}
