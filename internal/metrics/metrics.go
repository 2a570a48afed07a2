// Package metrics holds Prometheus instruments used across the service.  All
// collectors are registered with the global registry, so mounting promhttp in
// main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Submissions counts submit attempts by form and outcome
	// (invalid, delivered, failed, busy).
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Form submit attempts by outcome.",
		}, []string{"form", "outcome"})

	FieldErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_field_errors_total",
			Help: "Field validation failures observed on submit.",
		}, []string{"form", "field"})

	HookFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_hook_failures_total",
			Help: "Best-effort post-delivery hooks (confirmation, archive) that failed.",
		})

	NotificationsShown = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_shown_total",
			Help: "Transient notifications shown, by kind.",
		}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		Submissions,
		FieldErrors,
		HookFailures,
		NotificationsShown,
	)
}
