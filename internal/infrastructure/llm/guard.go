package llm

import (
	"context"
	"log/slog"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
	"github.com/kirillkom/semester-scan/internal/infrastructure/resilience"
)

// Guard runs a provider behind a circuit breaker. While the breaker is open
// requests are not sent and fail with domain.ErrNotDispatched.
type Guard struct {
	inner     ports.ContentClassifier
	exec      *resilience.Executor
	operation string
}

func NewGuard(inner ports.ContentClassifier, exec *resilience.Executor, operation string) *Guard {
	return &Guard{inner: inner, exec: exec, operation: operation}
}

func (g *Guard) ClassifyContent(ctx context.Context, req domain.RemoteRequest) (string, error) {
	var raw string
	err := g.exec.Execute(ctx, g.operation, func(ctx context.Context) error {
		var callErr error
		raw, callErr = g.inner.ClassifyContent(ctx, req)
		return callErr
	}, ClassifyError)
	if err == nil {
		return raw, nil
	}
	if resilience.IsCircuitOpen(err) {
		slog.WarnContext(ctx, "remote_call_not_dispatched", "operation", g.operation, "breaker", g.exec.State(g.operation), "file", req.FileName)
		return "", domain.WrapError(domain.ErrNotDispatched, g.operation, err)
	}
	return "", err
}
