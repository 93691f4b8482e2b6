// Пакет metrics — Prometheus-счётчики ядра политик.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingEvaluations — вердикты гейта: allowed / denied / overridden.
	BookingEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nb_booking_evaluations_total",
			Help: "Booking gate verdicts by outcome",
		},
		[]string{"verdict"},
	)

	// StrikesIssued — выданные страйки: automatic / admin.
	StrikesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nb_strikes_issued_total",
			Help: "Strikes issued by trigger",
		},
		[]string{"trigger"},
	)

	// FineEvents — события по штрафам: created / paid / waived.
	FineEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nb_fine_events_total",
			Help: "Fine ledger events",
		},
		[]string{"event"},
	)
)
