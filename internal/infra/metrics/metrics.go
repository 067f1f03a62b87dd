// Package metrics holds the Prometheus collectors for the billing flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutSessions counts checkout-session attempts per provider.
	CheckoutSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_checkout_sessions_total",
			Help: "Checkout session attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// WebhookEvents counts webhook deliveries per provider and normalized status.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Webhook deliveries by provider and normalized status.",
		},
		[]string{"provider", "status"},
	)

	// Reconciliations counts reconciler runs by outcome.
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reconciliations_total",
			Help: "Subscription reconciliation runs by outcome.",
		},
		[]string{"outcome"},
	)
)
