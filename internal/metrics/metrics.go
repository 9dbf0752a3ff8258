// Package metrics declares the process's Prometheus collectors: one file,
// promauto-registered package vars, namespace/subsystem/name grouping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "switchboard",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "switchboard",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room"})

	ChatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchboard",
		Subsystem: "chat",
		Name:      "messages_total",
		Help:      "Total chat messages sent",
	}, []string{"room"})

	DocInstancesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "switchboard",
		Subsystem: "doc",
		Name:      "instances_active",
		Help:      "Current number of live Document Instances",
	})

	DocStepsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchboard",
		Subsystem: "doc",
		Name:      "steps_applied_total",
		Help:      "Total OT steps applied across all Document Instances",
	}, []string{"document_id"})

	DocInstanceEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "switchboard",
		Subsystem: "doc",
		Name:      "instance_evictions_total",
		Help:      "Total Document Instances evicted from the Instance Registry",
	})

	SchedulerEventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchboard",
		Subsystem: "scheduler",
		Name:      "events_processed_total",
		Help:      "Total scheduled events processed, by type and outcome",
	}, []string{"event_type", "status"})

	SchedulerTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "switchboard",
		Subsystem: "scheduler",
		Name:      "tick_duration_seconds",
		Help:      "Time spent processing one scheduler tick",
		Buckets:   prometheus.DefBuckets,
	})

	MailCircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "switchboard",
		Subsystem: "mail",
		Name:      "circuit_breaker_state",
		Help:      "Current state of the mail circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	})
)
