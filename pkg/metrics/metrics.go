// Package metrics provides Prometheus metrics for the credit lines service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CreditLineMutationsTotal tracks credit line writes by operation and outcome
	CreditLineMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credit_lines",
			Subsystem: "service",
			Name:      "mutations_total",
			Help:      "Total number of credit line mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// RequestTransitionsTotal tracks request lifecycle transitions
	RequestTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credit_lines",
			Subsystem: "requests",
			Name:      "transitions_total",
			Help:      "Total number of request status transitions",
		},
		[]string{"request_type", "status"},
	)

	// MessagesPublishedTotal tracks outbound envelopes by type
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credit_lines",
			Subsystem: "messaging",
			Name:      "published_total",
			Help:      "Total number of published envelopes by message type",
		},
		[]string{"message_type"},
	)

	// MessagesConsumedTotal tracks inbound envelopes by type and outcome
	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credit_lines",
			Subsystem: "messaging",
			Name:      "consumed_total",
			Help:      "Total number of consumed envelopes by message type and outcome",
		},
		[]string{"message_type", "outcome"},
	)

	// MessageProcessingDuration tracks inbound processing latency
	MessageProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "credit_lines",
			Subsystem: "messaging",
			Name:      "processing_duration_seconds",
			Help:      "Duration of inbound message processing in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"message_type"},
	)

	// CollaboratorCallsTotal tracks calls to platform services
	CollaboratorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credit_lines",
			Subsystem: "collaborators",
			Name:      "calls_total",
			Help:      "Total number of collaborator service calls by service and outcome",
		},
		[]string{"service", "outcome"},
	)
)
