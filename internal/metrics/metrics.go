package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderly_orders_placed_total",
		Help: "Orders accepted by checkout and published to the log.",
	})

	OrdersConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderly_orders_confirmed_total",
		Help: "Orders whose reservations all succeeded.",
	})

	OrdersFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderly_orders_failed_total",
		Help: "Orders that failed reservation and were compensated.",
	})

	ReservationConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderly_reservation_conflicts_total",
		Help: "Optimistic-concurrency conflicts observed on product writes.",
	})

	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderly_event_publish_failures_total",
		Help: "Event publishes that failed after the originating request returned.",
	})
)
