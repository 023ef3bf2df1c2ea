package bootstrap

import (
	"context"
	"io"

	"github.com/kirillkom/semester-scan/internal/adapters/cli"
	"github.com/kirillkom/semester-scan/internal/config"
	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
	"github.com/kirillkom/semester-scan/internal/core/usecase"
	"github.com/kirillkom/semester-scan/internal/infrastructure/archive/ziparchive"
	"github.com/kirillkom/semester-scan/internal/infrastructure/storage/localfs"
)

// CLIFactory wires the command-line tool. It needs no database or queue; the
// daily quota lives in a JSON file unless QUOTA_STORE=none.
type CLIFactory struct {
	cfg        config.Config
	heuristics domain.Heuristics
	store      *ziparchive.Store
}

var _ cli.Factory = (*CLIFactory)(nil)

func NewCLIFactory(cfg config.Config) (*CLIFactory, error) {
	heuristics, err := config.LoadHeuristics(cfg.HeuristicsPath)
	if err != nil {
		return nil, err
	}
	return &CLIFactory{
		cfg:        cfg,
		heuristics: heuristics,
		store:      newArchiveStore(cfg, heuristics),
	}, nil
}

func (f *CLIFactory) OpenInput(path string) (ports.ArchiveFile, error) {
	file, err := localfs.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *CLIFactory) Scanner(settings cli.ScannerSettings) (ports.ScanRunner, error) {
	remote := remoteSettings(f.cfg)
	remote.Provider = settings.Provider
	remote.APIKey = settings.APIKey
	if settings.Model != "" {
		remote.Model = settings.Model
	}

	classifier, err := NewRemoteClassifier(remote, nil)
	if err != nil {
		return nil, err
	}

	var quota ports.QuotaStore
	if f.cfg.QuotaStore != "none" {
		quota = jsonfileStore(f.cfg)
	}
	gate := usecase.NewQuotaGate(quota, nil, f.cfg.QuotaDailyLimit)
	return newScanner(f.cfg, f.heuristics, f.store, classifier, gate)
}

func (f *CLIFactory) NewZipSink(w io.Writer) ports.ArchiveSink {
	return f.store.NewWriter(w)
}

func (f *CLIFactory) NewDirectorySink(root string) (ports.ArchiveSink, error) {
	sink, err := localfs.NewDirectorySink(root)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// Uploader returns nil when object storage is not configured.
func (f *CLIFactory) Uploader(ctx context.Context) (ports.ArchiveUploader, error) {
	if !f.cfg.UploadEnabled() {
		return nil, nil
	}
	u, err := newUploader(ctx, f.cfg)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (f *CLIFactory) KeylessProvider(provider string) bool {
	return KeylessProvider(provider)
}
