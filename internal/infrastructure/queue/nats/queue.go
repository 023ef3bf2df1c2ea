package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/semester-scan/internal/infrastructure/resilience"
)

const workerGroup = "scan-workers"

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	onLag    func(time.Duration)
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// ObserveLag receives the time a request spent queued.
	ObserveLag func(time.Duration)
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("semester-scan"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		onLag:    options.ObserveLag,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// scanRequested is the message body. Older producers sent the bare scan ID,
// which decodeScanRequested still accepts.
type scanRequested struct {
	ScanID      string    `json:"scan_id"`
	RequestedAt time.Time `json:"requested_at"`
}

func encodeScanRequested(scanID string, at time.Time) ([]byte, error) {
	return json.Marshal(scanRequested{ScanID: scanID, RequestedAt: at.UTC()})
}

func decodeScanRequested(data []byte) (scanRequested, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return scanRequested{}, errors.New("empty scan request")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return scanRequested{ScanID: trimmed}, nil
	}
	var msg scanRequested
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return scanRequested{}, fmt.Errorf("decode scan request: %w", err)
	}
	if strings.TrimSpace(msg.ScanID) == "" {
		return scanRequested{}, errors.New("scan request without scan_id")
	}
	return msg, nil
}

func (q *Queue) PublishScanRequested(ctx context.Context, scanID string) error {
	payload, err := encodeScanRequested(scanID, time.Now())
	if err != nil {
		return fmt.Errorf("encode scan request: %w", err)
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeScanRequested blocks until ctx is done, then drains the
// subscription so in-flight scans can finish.
func (q *Queue) SubscribeScanRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		req, err := decodeScanRequested(msg.Data)
		if err != nil {
			slog.WarnContext(ctx, "scan_request_rejected", "error", err)
			return
		}
		scanID := req.ScanID
		if q.onLag != nil && !req.RequestedAt.IsZero() {
			q.onLag(time.Since(req.RequestedAt))
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, scanID); err != nil {
			slog.ErrorContext(ctx, "scan_handler_failed", "scan_id", scanID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
