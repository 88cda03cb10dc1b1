// Package metrics instruments the payment and fulfillment paths. Metrics
// are exposed at GET /metrics alongside the standard Go runtime and
// process collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookEvents counts inbound payment notifications by backend and what
// happened to them (accepted, rejected, ignored, malformed, error).
var WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shopbot_webhook_events_total",
	Help: "Inbound payment webhook events by backend and outcome.",
}, []string{"backend", "outcome"})

// Fulfillments counts completed fulfillment attempts by action and outcome.
var Fulfillments = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shopbot_fulfillments_total",
	Help: "Fulfillment attempts by action and outcome.",
}, []string{"action", "outcome"})

// KeysIssued counts VPN keys created or extended.
var KeysIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shopbot_keys_issued_total",
	Help: "VPN keys issued or extended.",
}, []string{"action"})

// ExpiryWarnings counts expiry notifications by hour mark.
var ExpiryWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shopbot_expiry_warnings_total",
	Help: "Expiry warnings sent by hour threshold.",
}, []string{"hours"})

const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeIgnored   = "ignored"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
)
