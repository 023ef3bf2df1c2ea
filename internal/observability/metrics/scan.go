package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

// ScanMetrics counts pipeline progress. It is a ports.ProgressReporter so the
// scan use case feeds it directly.
type ScanMetrics struct {
	service string

	itemsTotal     *prometheus.CounterVec
	writtenTotal   *prometheus.CounterVec
	remoteCalls    *prometheus.CounterVec
	omissionsTotal *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
}

func NewScanMetrics(service string, registry prometheus.Registerer) *ScanMetrics {
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "items_total",
			Help:      "Classified items by final state and subject.",
		},
		[]string{"service", "state", "subject"},
	)
	writtenTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "entries_written_total",
			Help:      "Entries written to organized archives.",
		},
		[]string{"service"},
	)
	remoteCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "remote_calls_total",
			Help:      "Remote classification calls by outcome.",
		},
		[]string{"service", "outcome"},
	)
	omissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "omissions_total",
			Help:      "Entries skipped without aborting a scan, by stage.",
		},
		[]string{"service", "stage"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "breaker_open",
			Help:      "1 while the breaker of a remote provider is not closed.",
		},
		[]string{"service", "provider"},
	)

	registry.MustRegister(itemsTotal, writtenTotal, remoteCalls, omissionsTotal, breakerState)

	return &ScanMetrics{
		service:        service,
		itemsTotal:     itemsTotal,
		writtenTotal:   writtenTotal,
		remoteCalls:    remoteCalls,
		omissionsTotal: omissionsTotal,
		breakerState:   breakerState,
	}
}

func (m *ScanMetrics) Report(_ context.Context, event domain.ProgressEvent) {
	switch event.Stage {
	case domain.ProgressClassified:
		if event.Result == nil {
			return
		}
		m.itemsTotal.WithLabelValues(m.service, string(event.Result.State), string(event.Result.Subject)).Inc()
		switch event.Result.State {
		case domain.StateTier2Succeeded:
			m.remoteCalls.WithLabelValues(m.service, "succeeded").Inc()
		case domain.StateTier2Fallback:
			m.remoteCalls.WithLabelValues(m.service, "fallback").Inc()
		}
	case domain.ProgressWritten:
		m.writtenTotal.WithLabelValues(m.service).Inc()
	}
}

// ObserveReport records what only the final report knows.
func (m *ScanMetrics) ObserveReport(report *domain.ScanReport) {
	if report == nil {
		return
	}
	for _, o := range report.Omissions {
		m.omissionsTotal.WithLabelValues(m.service, string(o.Stage)).Inc()
	}
}

// ObserveBreaker matches resilience.Config.OnStateChange.
func (m *ScanMetrics) ObserveBreaker(provider, state string) {
	value := 0.0
	if state != "closed" {
		value = 1
	}
	m.breakerState.WithLabelValues(m.service, provider).Set(value)
}
