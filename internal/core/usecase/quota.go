package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
)

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// QuotaGate meters Tier 2 requests per local calendar day. A nil gate or a
// non-positive limit means unlimited.
type QuotaGate struct {
	store ports.QuotaStore
	clock ports.Clock
	limit int
}

func NewQuotaGate(store ports.QuotaStore, clock ports.Clock, limit int) *QuotaGate {
	if clock == nil {
		clock = SystemClock{}
	}
	return &QuotaGate{store: store, clock: clock, limit: limit}
}

func (g *QuotaGate) unlimited() bool {
	return g == nil || g.store == nil || g.limit <= 0
}

func (g *QuotaGate) day() string {
	return g.clock.Now().Format(time.DateOnly)
}

// Available reports whether at least one request is left today.
func (g *QuotaGate) Available(ctx context.Context) (bool, error) {
	if g.unlimited() {
		return true, nil
	}
	used, err := g.store.Used(ctx, g.day())
	if err != nil {
		return false, err
	}
	return used < g.limit, nil
}

// TryAcquire consumes one request if any is left.
func (g *QuotaGate) TryAcquire(ctx context.Context) (bool, error) {
	_, ok, err := g.reserve(ctx)
	return ok, err
}

// quotaClaim remembers the day a request was charged to so a refund lands on
// the same counter across midnight. The zero claim is a no-op.
type quotaClaim struct {
	day string
}

func (g *QuotaGate) reserve(ctx context.Context) (quotaClaim, bool, error) {
	if g.unlimited() {
		return quotaClaim{}, true, nil
	}
	day := g.day()
	ok, err := g.store.Acquire(ctx, day, g.limit)
	if err != nil || !ok {
		return quotaClaim{}, false, err
	}
	return quotaClaim{day: day}, true, nil
}

// release refunds a request that never reached the remote service.
func (g *QuotaGate) release(ctx context.Context, claim quotaClaim) error {
	if claim.day == "" || g.unlimited() {
		return nil
	}
	return g.store.Release(ctx, claim.day)
}

func (g *QuotaGate) Usage(ctx context.Context) (domain.QuotaUsage, error) {
	if g == nil {
		return domain.QuotaUsage{Day: time.Now().Format(time.DateOnly)}, nil
	}
	usage := domain.QuotaUsage{Day: g.day(), Limit: max(g.limit, 0)}
	if g.store == nil {
		return usage, nil
	}
	used, err := g.store.Used(ctx, usage.Day)
	if err != nil {
		return domain.QuotaUsage{}, err
	}
	usage.Used = used
	return usage, nil
}
