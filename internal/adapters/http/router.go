package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kirillkom/semester-scan/internal/config"
	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
	"github.com/kirillkom/semester-scan/internal/observability/metrics"
)

const (
	serviceName        = "api"
	outputDownloadName = "Organized_Archive.zip"
)

type Router struct {
	cfg     config.Config
	ingest  ports.ScanIngestor
	scans   ports.ScanReader
	quota   ports.QuotaReporter
	metrics *metrics.HTTPServerMetrics
}

// NewRouter accepts a nil quota reporter; /v1/quota then reports no limit.
func NewRouter(
	cfg config.Config,
	ingest ports.ScanIngestor,
	scans ports.ScanReader,
	quota ports.QuotaReporter,
) *Router {
	return &Router{
		cfg:    cfg,
		ingest: ingest,
		scans:  scans,
		quota:  quota,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(requestIDMiddleware, accessLogMiddleware, recoverMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition", "Retry-After"},
		MaxAge:         300,
	}))

	mux.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	mux.Route("/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			limited := rateLimitMiddleware(next, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, rt.onReject)
			return backpressureWithHook(limited, rt.cfg.MaxInFlight, rt.cfg.MaxInFlightWait, rt.onReject)
		})
		r.Post("/scans", rt.createScan)
		r.Get("/scans/{scanID}", rt.getScan)
		r.Get("/scans/{scanID}/archive", rt.downloadArchive)
		r.Get("/quota", rt.getQuota)
	})

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return handler
}

func (rt *Router) onReject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createScan(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart/form-data body is required")
		return
	}

	// Option fields must precede the file part so the archive can be
	// streamed straight to storage.
	opts := domain.ScanOptions{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "multipart field 'archive' is required")
			return
		}
		if err != nil {
			writeUploadError(w, err)
			return
		}

		if name := part.FormName(); name == "archive" || name == "file" {
			counted := &countingReader{r: part}
			job, err := rt.ingest.Upload(r.Context(), part.FileName(), opts, counted)
			_ = part.Close()
			if err != nil {
				writeUploadError(w, err)
				return
			}
			if rt.metrics != nil {
				rt.metrics.RecordUpload(serviceName, counted.n)
			}
			slog.InfoContext(r.Context(), "scan_queued", "scan_id", job.ID, "archive", job.ArchiveName, "bytes", counted.n)
			writeJSON(w, http.StatusAccepted, job)
			return
		}

		value, err := io.ReadAll(io.LimitReader(part, 256))
		_ = part.Close()
		if err != nil {
			writeUploadError(w, err)
			return
		}
		if err := applyOption(&opts, part.FormName(), strings.TrimSpace(string(value))); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
}

func applyOption(opts *domain.ScanOptions, name, value string) error {
	parseBool := func() (bool, error) {
		if value == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("field %q must be a boolean", name)
		}
		return b, nil
	}

	var err error
	switch name {
	case "mode":
		opts.Mode = domain.ScanMode(strings.ToLower(value))
	case "include_images":
		opts.IncludeImages, err = parseBool()
	case "include_file_context":
		opts.IncludeFileContext, err = parseBool()
	case "allow_missing_transcript":
		opts.AllowMissingTranscript, err = parseBool()
	}
	return err
}

func writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("archive exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, mapErrorToHTTPStatus(err), err.Error())
}

func (rt *Router) getScan(w http.ResponseWriter, r *http.Request) {
	job, err := rt.scans.GetByID(r.Context(), chi.URLParam(r, "scanID"))
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) downloadArchive(w http.ResponseWriter, r *http.Request) {
	rc, job, err := rt.scans.OpenOutput(r.Context(), chi.URLParam(r, "scanID"))
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status == http.StatusConflict && job != nil {
			writeJSON(w, status, map[string]string{"error": err.Error(), "status": string(job.Status)})
			return
		}
		writeError(w, status, err.Error())
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputDownloadName))
	w.Header().Set("Last-Modified", job.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.WarnContext(r.Context(), "archive_download_interrupted", "scan_id", job.ID, "error", err)
	}
}

func (rt *Router) getQuota(w http.ResponseWriter, r *http.Request) {
	if rt.quota == nil {
		writeJSON(w, http.StatusOK, domain.QuotaUsage{Day: time.Now().Format(time.DateOnly)})
		return
	}
	usage, err := rt.quota.Usage(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
