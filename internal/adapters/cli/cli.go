// Package cli is the batch front end: organize one chat export from the
// command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
	"github.com/kirillkom/semester-scan/internal/core/usecase"
	"github.com/kirillkom/semester-scan/internal/observability/logging"
)

const (
	exitOK      = 0
	exitFailure = 1

	outputArchiveName = "Organized_Archive.zip"
	outputDirName     = "Organized_Archive"
	reportFileName    = "scan_report.json"
)

// ScannerSettings are the per-invocation overrides of the configured remote
// provider.
type ScannerSettings struct {
	Provider string
	APIKey   string
	Model    string
}

// Factory builds the pipeline pieces the CLI needs.
type Factory interface {
	OpenInput(path string) (ports.ArchiveFile, error)
	Scanner(settings ScannerSettings) (ports.ScanRunner, error)
	NewZipSink(w io.Writer) ports.ArchiveSink
	NewDirectorySink(root string) (ports.ArchiveSink, error)
	Uploader(ctx context.Context) (ports.ArchiveUploader, error)
	// KeylessProvider reports whether provider works without an API key.
	KeylessProvider(provider string) bool
}

type App struct {
	factory Factory
	stdout  io.Writer
	stderr  io.Writer
	getenv  func(string) string
	now     func() time.Time
}

func New(factory Factory, stdout, stderr io.Writer) *App {
	return &App{
		factory: factory,
		stdout:  stdout,
		stderr:  stderr,
		getenv:  os.Getenv,
		now:     time.Now,
	}
}

type options struct {
	archive      string
	key          string
	out          string
	mode         domain.ScanMode
	images       bool
	fileContext  bool
	provider     string
	model        string
	format       string
	allowMissing bool
	upload       bool
	logLevel     string
}

// parseArgs accepts flags before and after the positional archive path.
func (a *App) parseArgs(args []string) (options, error) {
	var (
		opts options
		mode string
	)
	fs := flag.NewFlagSet("semscan", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&opts.key, "key", "", "remote classifier API key (default $REMOTE_API_KEY)")
	fs.StringVar(&opts.out, "out", ".", "output directory")
	fs.StringVar(&mode, "mode", string(domain.ScanModePro), "fast (local only) or pro (remote escalation allowed)")
	fs.BoolVar(&opts.images, "images", false, "send images to the remote classifier")
	fs.BoolVar(&opts.fileContext, "file-context", false, "send a short text excerpt of documents to the remote classifier")
	fs.StringVar(&opts.provider, "provider", "", "remote provider: gemini, openai or ollama (default $REMOTE_PROVIDER)")
	fs.StringVar(&opts.model, "model", "", "remote model name")
	fs.StringVar(&opts.format, "format", "zip", "output format: zip or dir")
	fs.BoolVar(&opts.allowMissing, "allow-missing-transcript", false, "organize by file name when the export has no transcript")
	fs.BoolVar(&opts.upload, "upload", false, "upload the organized archive to object storage")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "usage: semscan <input.zip> [--key KEY] [--out DIR] [flags]")
		fs.PrintDefaults()
	}

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return opts, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}

	if len(positional) != 1 {
		fs.Usage()
		return opts, fmt.Errorf("expected exactly one input archive, got %d", len(positional))
	}
	opts.archive = positional[0]

	parsed, ok := domain.ParseScanMode(strings.ToLower(mode))
	if !ok {
		return opts, fmt.Errorf("unknown mode %q", mode)
	}
	opts.mode = parsed

	opts.format = strings.ToLower(opts.format)
	if opts.format != "zip" && opts.format != "dir" {
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.upload && opts.format != "zip" {
		return opts, errors.New("--upload requires --format zip")
	}

	if opts.key == "" {
		opts.key = a.getenv("REMOTE_API_KEY")
	}
	if opts.provider == "" {
		opts.provider = a.getenv("REMOTE_PROVIDER")
	}
	opts.provider = strings.ToLower(opts.provider)
	if opts.provider == "" {
		opts.provider = "gemini"
	}
	return opts, nil
}

func (a *App) Run(ctx context.Context, args []string) int {
	opts, err := a.parseArgs(args)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "semscan: %v\n", err)
		return exitFailure
	}
	slog.SetDefault(logging.NewTextLogger(a.stderr, opts.logLevel))

	if opts.mode == domain.ScanModePro && opts.key == "" && !a.factory.KeylessProvider(opts.provider) {
		fmt.Fprintf(a.stderr, "semscan: pro mode needs an API key for %s: pass --key, set REMOTE_API_KEY or use --mode fast\n", opts.provider)
		return exitFailure
	}

	src, err := a.factory.OpenInput(opts.archive)
	if err != nil {
		fmt.Fprintf(a.stderr, "semscan: %v\n", err)
		return exitFailure
	}
	defer src.Close()

	scanner, err := a.factory.Scanner(ScannerSettings{Provider: opts.provider, APIKey: opts.key, Model: opts.model})
	if err != nil {
		fmt.Fprintf(a.stderr, "semscan: %v\n", err)
		return exitFailure
	}

	report, outputPath, err := a.organize(ctx, opts, src, scanner)
	if err != nil {
		fmt.Fprintf(a.stderr, "semscan: %s\n", describe(err))
		return exitFailure
	}

	reportPath := filepath.Join(opts.out, reportFileName)
	if err := writeReport(reportPath, report); err != nil {
		fmt.Fprintf(a.stderr, "semscan: %v\n", err)
		return exitFailure
	}
	a.printSummary(report, outputPath, reportPath)

	if opts.upload {
		if err := a.upload(ctx, outputPath); err != nil {
			fmt.Fprintf(a.stderr, "semscan: %v\n", err)
			return exitFailure
		}
	}
	return exitOK
}

func (a *App) organize(ctx context.Context, opts options, src ports.ArchiveFile, scanner ports.ScanRunner) (*domain.ScanReport, string, error) {
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return nil, "", fmt.Errorf("create output dir: %w", err)
	}

	input := ports.ScanInput{
		Name:   filepath.Base(opts.archive),
		Source: src,
		Size:   src.Size(),
		Options: domain.ScanOptions{
			Mode:                   opts.mode,
			IncludeImages:          opts.images,
			IncludeFileContext:     opts.fileContext,
			AllowMissingTranscript: opts.allowMissing,
		},
		Progress: newProgressPrinter(a.stdout),
	}

	if opts.format == "dir" {
		outputPath := filepath.Join(opts.out, outputDirName)
		sink, err := a.factory.NewDirectorySink(outputPath)
		if err != nil {
			return nil, "", err
		}
		input.Sink = sink
		report, err := scanner.Run(ctx, input)
		if closeErr := sink.Close(); err == nil {
			err = closeErr
		}
		return report, outputPath, err
	}

	outputPath := filepath.Join(opts.out, outputArchiveName)
	tmp, err := os.CreateTemp(opts.out, "."+outputArchiveName+".*")
	if err != nil {
		return nil, "", fmt.Errorf("create output archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	sink := a.factory.NewZipSink(tmp)
	input.Sink = sink
	report, err := scanner.Run(ctx, input)
	closeErr := errors.Join(sink.Close(), tmp.Close())
	if err != nil {
		return nil, "", err
	}
	if closeErr != nil {
		return nil, "", fmt.Errorf("finalize output archive: %w", closeErr)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return nil, "", fmt.Errorf("commit output archive: %w", err)
	}
	return report, outputPath, nil
}

func (a *App) upload(ctx context.Context, archivePath string) error {
	uploader, err := a.factory.Uploader(ctx)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if uploader == nil {
		return errors.New("upload: object storage is not configured (set MINIO_ENDPOINT)")
	}
	f, err := a.factory.OpenInput(archivePath)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer f.Close()

	body := io.NewSectionReader(f, 0, f.Size())
	receipt, err := uploader.Upload(ctx, usecase.UploadName(a.now()), body, f.Size(), a.getenv("UPLOAD_TOKEN"))
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	fmt.Fprintf(a.stdout, "uploaded %s\n  %s\n", receipt.Key, receipt.URL)
	return nil
}

func (a *App) printSummary(report *domain.ScanReport, outputPath, reportPath string) {
	fmt.Fprintf(a.stdout, "\norganized %d of %d entries into %s\n", report.Written, len(report.Mappings), outputPath)
	fmt.Fprintf(a.stdout, "attachments: %d referenced, %d unresolved; remote calls: %d\n",
		report.References, report.UnresolvedReferences, report.RemoteCalls)
	if report.Degraded {
		fmt.Fprintln(a.stdout, "no transcript found: files were organized by name only")
	}
	if report.QuotaExhausted {
		fmt.Fprintln(a.stdout, "daily remote quota reached: remaining items used local results")
	}
	for _, o := range report.Omissions {
		fmt.Fprintf(a.stdout, "skipped %s (%s): %s\n", o.Path, o.Stage, o.Reason)
	}
	fmt.Fprintf(a.stdout, "report: %s\n", reportPath)
}

func writeReport(path string, report *domain.ScanReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func describe(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrNoTranscriptFound):
		return "no chat transcript (.txt) found in the archive; rerun with --allow-missing-transcript to organize by file name"
	case domain.IsKind(err, domain.ErrCorruptArchive):
		return "the input is not a readable zip archive: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return err.Error()
	}
}
