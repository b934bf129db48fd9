package orders

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bakehouse_orders_created_total",
			Help: "Total number of orders stored, by initial status",
		},
		[]string{"status"},
	)

	ordersRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bakehouse_orders_rejected_total",
			Help: "Total number of orders rejected by validation",
		},
	)

	paymentsConfirmedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bakehouse_payments_confirmed_total",
			Help: "Total number of payment confirmations, by outcome",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ordersCreatedTotal)
	prometheus.MustRegister(ordersRejectedTotal)
	prometheus.MustRegister(paymentsConfirmedTotal)
}
