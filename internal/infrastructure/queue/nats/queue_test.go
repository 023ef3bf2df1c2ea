package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

func TestScanRequestedRoundTrip(t *testing.T) {
	payload, err := encodeScanRequested("scan-42", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("encodeScanRequested() error = %v", err)
	}
	if string(payload) != `{"scan_id":"scan-42","requested_at":"2026-03-01T09:00:00Z"}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
	req, err := decodeScanRequested(payload)
	if err != nil || req.ScanID != "scan-42" {
		t.Fatalf("decodeScanRequested() = %+v, %v", req, err)
	}
	if !req.RequestedAt.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected requested_at %v", req.RequestedAt)
	}
}

func TestDecodeScanRequestedAcceptsBareID(t *testing.T) {
	req, err := decodeScanRequested([]byte(" scan-7\n"))
	if err != nil || req.ScanID != "scan-7" || !req.RequestedAt.IsZero() {
		t.Fatalf("decodeScanRequested() = %+v, %v", req, err)
	}
	for _, bad := range []string{"", "{}", "{oops"} {
		if _, err := decodeScanRequested([]byte(bad)); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "canceled", err: context.Canceled},
		{name: "no servers", err: fmt.Errorf("nats publish: %w", nats.ErrNoServers), retryable: true, record: true},
		{name: "closed", err: nats.ErrConnectionClosed, retryable: true, record: true},
		{name: "open breaker", err: gobreaker.ErrOpenState, retryable: true, record: true},
		{name: "bad subject", err: nats.ErrBadSubject, record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyNATSError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("classifyNATSError() = %+v", got)
			}
		})
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrTimeout); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	errBad := errors.New("bad payload")
	if err := wrapTemporaryIfNeeded(errBad); err != errBad {
		t.Fatalf("expected error unchanged, got %v", err)
	}
}
