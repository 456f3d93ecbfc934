package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns) }

var dbPoolConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "sponsorship_db_pool_connections",
		Help: "Connection pool occupancy of the sponsorship database.",
	},
	[]string{"state"}, // 'total', 'idle', 'acquired'
)

// SetDBPoolConns publishes the pool snapshot reported by the stats loop.
func SetDBPoolConns(total, idle, acquired int32) {
	dbPoolConns.WithLabelValues("total").Set(float64(total))
	dbPoolConns.WithLabelValues("idle").Set(float64(idle))
	dbPoolConns.WithLabelValues("acquired").Set(float64(acquired))
}
