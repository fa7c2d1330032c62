package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servicehub",
		Subsystem: "marketplace",
		Name:      "requests_created_total",
		Help:      "Service requests created, by initial status",
	}, []string{"status"})

	responsesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "servicehub",
		Subsystem: "marketplace",
		Name:      "responses_submitted_total",
		Help:      "Business offers stored",
	})

	requestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servicehub",
		Subsystem: "marketplace",
		Name:      "request_transitions_total",
		Help:      "Service request status transitions, by target status",
	}, []string{"status"})

	rejectedTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servicehub",
		Subsystem: "marketplace",
		Name:      "transition_conflicts_total",
		Help:      "Transitions refused because the persisted state no longer allowed them",
	}, []string{"operation"})

	rightsCredited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "servicehub",
		Subsystem: "raffle",
		Name:      "rights_credited_total",
		Help:      "Raffle rights earned from completed appointments",
	})

	rightsSpent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "servicehub",
		Subsystem: "raffle",
		Name:      "rights_spent_total",
		Help:      "Raffle rights spent entering draws",
	})

	drawsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "servicehub",
		Subsystem: "raffle",
		Name:      "draws_closed_total",
		Help:      "Monthly draws closed",
	})
)
