package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		purchasesCreatedTotal,
		purchasesApprovedTotal,
		purchasesRefundedTotal,
	)
}

var (
	purchasesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sponsorship_purchases_created_total",
			Help: "Purchases created, by tier and auto-approval.",
		},
		[]string{"tier", "auto_approve"},
	)

	purchasesApprovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sponsorship_purchases_approved_total",
			Help: "Purchases moved to active by admin approval.",
		},
	)

	purchasesRefundedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sponsorship_purchases_refunded_total",
			Help: "Purchases refunded and cancelled.",
		},
	)
)

func IncPurchasesCreated(tier string, autoApprove bool) {
	purchasesCreatedTotal.WithLabelValues(norm(tier), strconv.FormatBool(autoApprove)).Inc()
}

func IncPurchasesApproved() { purchasesApprovedTotal.Inc() }

func IncPurchasesRefunded() { purchasesRefundedTotal.Inc() }
