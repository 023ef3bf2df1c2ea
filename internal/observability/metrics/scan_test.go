package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

func TestScanMetricsCountsProgress(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewScanMetrics("worker", registry)
	ctx := context.Background()

	m.Report(ctx, domain.ProgressEvent{Stage: domain.ProgressClassified, Result: &domain.ClassificationResult{State: domain.StateTier1Only, Subject: domain.SubjectMath}})
	m.Report(ctx, domain.ProgressEvent{Stage: domain.ProgressClassified, Result: &domain.ClassificationResult{State: domain.StateTier2Fallback, Subject: domain.SubjectGeneral}})
	m.Report(ctx, domain.ProgressEvent{Stage: domain.ProgressPending})
	m.Report(ctx, domain.ProgressEvent{Stage: domain.ProgressWritten})
	m.Report(ctx, domain.ProgressEvent{Stage: domain.ProgressWritten})
	m.ObserveReport(&domain.ScanReport{Omissions: []domain.Omission{{Stage: domain.OmissionRebuild}}})
	m.ObserveBreaker("gemini", "open")

	if got := testutil.ToFloat64(m.writtenTotal.WithLabelValues("worker")); got != 2 {
		t.Fatalf("expected 2 written, got %v", got)
	}
	if got := testutil.ToFloat64(m.remoteCalls.WithLabelValues("worker", "fallback")); got != 1 {
		t.Fatalf("expected 1 fallback call, got %v", got)
	}
	if got := testutil.ToFloat64(m.omissionsTotal.WithLabelValues("worker", "rebuild")); got != 1 {
		t.Fatalf("expected 1 omission, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("worker", "gemini")); got != 1 {
		t.Fatalf("expected open breaker gauge, got %v", got)
	}

	expected := `
# HELP semscan_scan_items_total Classified items by final state and subject.
# TYPE semscan_scan_items_total counter
semscan_scan_items_total{service="worker",state="tier1_only",subject="Math"} 1
semscan_scan_items_total{service="worker",state="tier2_fallback",subject="General"} 1
`
	if err := testutil.CollectAndCompare(m.itemsTotal, strings.NewReader(expected)); err != nil {
		t.Fatalf("CollectAndCompare() error = %v", err)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/scans/abc":         "/v1/scans/{scan_id}",
		"/v1/scans/abc/archive": "/v1/scans/{scan_id}/archive",
		"/v1/scans":             "/v1/scans",
		"/healthz":              "/healthz",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
