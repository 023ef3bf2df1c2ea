package domain

import "time"

type ScanMode string

const (
	// ScanModeFast keeps every item on Tier 1.
	ScanModeFast ScanMode = "fast"
	// ScanModePro allows Tier 2 escalation.
	ScanModePro ScanMode = "pro"
)

func ParseScanMode(raw string) (ScanMode, bool) {
	switch ScanMode(raw) {
	case ScanModeFast:
		return ScanModeFast, true
	case ScanModePro, "":
		return ScanModePro, true
	default:
		return "", false
	}
}

type ScanOptions struct {
	Mode                   ScanMode `json:"mode"`
	IncludeImages          bool     `json:"include_images"`
	IncludeFileContext     bool     `json:"include_file_context"`
	AllowMissingTranscript bool     `json:"allow_missing_transcript"`
}

type ScanReport struct {
	ArchiveName          string                 `json:"archive_name"`
	Mode                 ScanMode               `json:"mode"`
	Transcript           string                 `json:"transcript,omitempty"`
	Degraded             bool                   `json:"degraded,omitempty"`
	EntryCount           int                    `json:"entry_count"`
	References           int                    `json:"references"`
	UnresolvedReferences int                    `json:"unresolved_references"`
	Items                []ClassificationResult `json:"items"`
	Mappings             []PathMapping          `json:"mappings"`
	Omissions            []Omission             `json:"omissions,omitempty"`
	Written              int                    `json:"written"`
	RemoteCalls          int                    `json:"remote_calls"`
	QuotaExhausted       bool                   `json:"quota_exhausted,omitempty"`
	StartedAt            time.Time              `json:"started_at"`
	FinishedAt           time.Time              `json:"finished_at"`
}

type ScanStatus string

const (
	ScanStatusQueued     ScanStatus = "queued"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusReady      ScanStatus = "ready"
	ScanStatusFailed     ScanStatus = "failed"
)

type ScanJob struct {
	ID          string      `json:"id"`
	ArchiveName string      `json:"archive_name"`
	Status      ScanStatus  `json:"status"`
	Options     ScanOptions `json:"options"`
	InputKey    string      `json:"-"`
	OutputKey   string      `json:"-"`
	Report      *ScanReport `json:"report,omitempty"`
	UploadURL   string      `json:"upload_url,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ScanOutcome is what a finished job persists.
type ScanOutcome struct {
	Report    *ScanReport
	OutputKey string
	UploadURL string
}

type ProgressStage string

const (
	ProgressClassified ProgressStage = "classified"
	ProgressPending    ProgressStage = "tier2_pending"
	ProgressWritten    ProgressStage = "written"
	ProgressDone       ProgressStage = "done"
)

type ProgressEvent struct {
	Stage  ProgressStage
	Index  int
	Total  int
	Path   string
	Result *ClassificationResult
}

type QuotaUsage struct {
	Day   string `json:"day"`
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
}
