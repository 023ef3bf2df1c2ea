package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/semester-scan/internal/config"
	"github.com/kirillkom/semester-scan/internal/core/ports"
	"github.com/kirillkom/semester-scan/internal/core/usecase"
	"github.com/kirillkom/semester-scan/internal/infrastructure/queue/nats"
	"github.com/kirillkom/semester-scan/internal/infrastructure/quota/jsonfile"
	"github.com/kirillkom/semester-scan/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/semester-scan/internal/infrastructure/resilience"
	"github.com/kirillkom/semester-scan/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/semester-scan/internal/infrastructure/storage/minio"
	"github.com/kirillkom/semester-scan/internal/observability/metrics"
)

// App wires the API and worker processes.
type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.ScanRepository
	IngestUC  ports.ScanIngestor
	ProcessUC *usecase.ProcessScanUseCase
	Quota     ports.QuotaReporter

	closeFn func()
}

type Options struct {
	Service string
	// Scan metrics are registered on Registry when it is set.
	Registry        prometheus.Registerer
	ObserveQueueLag func(time.Duration)
}

// New builds the service graph.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	heuristics, err := config.LoadHeuristics(cfg.HeuristicsPath)
	if err != nil {
		return nil, fmt.Errorf("load heuristics: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewScanRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		ObserveLag:         opts.ObserveQueueLag,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var (
		progress      ports.ProgressReporter
		onStateChange func(operation, state string)
	)
	if opts.Registry != nil {
		scanMetrics := metrics.NewScanMetrics(opts.Service, opts.Registry)
		progress = scanMetrics
		onStateChange = scanMetrics.ObserveBreaker
	}

	remote, err := NewRemoteClassifier(remoteSettings(cfg), onStateChange)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	quota := usecase.NewQuotaGate(newQuotaStore(cfg, db), nil, cfg.QuotaDailyLimit)
	store := newArchiveStore(cfg, heuristics)
	scanner, err := newScanner(cfg, heuristics, store, remote, quota)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("build scanner: %w", err)
	}

	var uploader ports.ArchiveUploader
	if cfg.UploadEnabled() {
		u, err := newUploader(ctx, cfg)
		if err != nil {
			queue.Close()
			_ = db.Close()
			return nil, err
		}
		uploader = u
	}

	ingestUC := usecase.NewIngestScanUseCase(repo, storage, queue)
	processUC := usecase.NewProcessScanUseCase(repo, storage, store, scanner, uploader, progress, cfg.UploadToken)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		Quota:     quota,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// newQuotaStore picks the daily counter backend. A nil store disables the
// limit.
func newQuotaStore(cfg config.Config, db *sql.DB) ports.QuotaStore {
	switch cfg.QuotaStore {
	case "none":
		return nil
	case "file":
		return jsonfileStore(cfg)
	default:
		if db == nil {
			return jsonfileStore(cfg)
		}
		return postgres.NewQuotaRepository(db)
	}
}

func jsonfileStore(cfg config.Config) *jsonfile.Store {
	if cfg.QuotaPath != "" {
		return jsonfile.New(cfg.QuotaPath)
	}
	return jsonfile.New(jsonfile.DefaultPath())
}

func newUploader(ctx context.Context, cfg config.Config) (*minio.Uploader, error) {
	u, err := minio.New(ctx, minio.Config{
		Endpoint:  cfg.MinIOEndpoint,
		Region:    cfg.MinIORegion,
		Bucket:    cfg.MinIOBucket,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Prefix:    cfg.MinIOPrefix,
		URLExpiry: cfg.UploadURLExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("init uploader: %w", err)
	}
	return u, nil
}
