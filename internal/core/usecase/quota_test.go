package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

func TestQuotaGateCountsPerDay(t *testing.T) {
	store := newQuotaStoreFake()
	clock := &clockFake{now: time.Date(2026, 4, 2, 23, 59, 0, 0, time.UTC)}
	gate := NewQuotaGate(store, clock, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := gate.TryAcquire(ctx)
		if err != nil || !ok {
			t.Fatalf("TryAcquire() #%d = %v, %v", i+1, ok, err)
		}
	}
	if ok, _ := gate.TryAcquire(ctx); ok {
		t.Fatalf("expected third request to be denied")
	}
	if ok, _ := gate.Available(ctx); ok {
		t.Fatalf("expected no quota left")
	}

	clock.now = clock.now.Add(2 * time.Minute)
	if ok, _ := gate.Available(ctx); !ok {
		t.Fatalf("expected quota to reset on a new day")
	}

	usage, err := gate.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if usage != (domain.QuotaUsage{Day: "2026-04-03", Used: 0, Limit: 2}) {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestQuotaGateUnlimited(t *testing.T) {
	ctx := context.Background()
	for name, gate := range map[string]*QuotaGate{
		"nil gate":   nil,
		"nil store":  NewQuotaGate(nil, nil, 10),
		"zero limit": NewQuotaGate(newQuotaStoreFake(), nil, 0),
	} {
		if ok, err := gate.TryAcquire(ctx); err != nil || !ok {
			t.Fatalf("%s: TryAcquire() = %v, %v", name, ok, err)
		}
		if ok, err := gate.Available(ctx); err != nil || !ok {
			t.Fatalf("%s: Available() = %v, %v", name, ok, err)
		}
	}
}

func TestQuotaGatePropagatesStoreError(t *testing.T) {
	store := newQuotaStoreFake()
	store.err = errors.New("read-only file system")
	gate := NewQuotaGate(store, nil, 3)

	if _, err := gate.Available(context.Background()); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := gate.Usage(context.Background()); err == nil {
		t.Fatalf("expected store error")
	}
}
