// Package metrics exposes the process-wide Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	ActivitiesCreated = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "enviroplan_activities_created_total",
		Help: "Activities created through the planning flow.",
	})
	StatusChanges = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "enviroplan_activity_status_changes_total",
		Help: "Execution status changes by target status.",
	}, []string{"status"})
	EvidenceUploads = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "enviroplan_evidence_uploads_total",
		Help: "Evidence payloads recorded against activities.",
	})
	AuditDecisions = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "enviroplan_audit_decisions_total",
		Help: "Audit decisions by outcome.",
	}, []string{"status"})
	SyncAttempts = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "enviroplan_cloud_sync_attempts_total",
		Help: "Cloud outbox push attempts by result.",
	}, []string{"result"})
	ReportRequests = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "enviroplan_report_requests_total",
		Help: "AI report generations by result.",
	}, []string{"result"})
)

// Handler serves the registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
