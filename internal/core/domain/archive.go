package domain

import (
	"strings"
	"time"
)

// ArchiveEntry is one central-directory record. Identity is Path.
type ArchiveEntry struct {
	Path             string    `json:"path"`
	IsDirectory      bool      `json:"is_directory"`
	UncompressedSize uint64    `json:"uncompressed_size"`
	IsMetadata       bool      `json:"is_metadata,omitempty"`
	Modified         time.Time `json:"modified"`
}

// Retained reports whether the entry takes part in classification and rebuild.
func (e ArchiveEntry) Retained() bool {
	return !e.IsDirectory && !e.IsMetadata
}

// EntryBase returns the last path segment. Archives written on Windows may use
// backslashes as separators, so both are honored.
func EntryBase(path string) string {
	path = strings.TrimRight(path, `/\`)
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

type PathMapping struct {
	OriginalPath    string `json:"original_path"`
	DestinationPath string `json:"destination_path"`
}

type OmissionStage string

const (
	OmissionExtract OmissionStage = "extract"
	OmissionRebuild OmissionStage = "rebuild"
)

// Omission records an entry or item skipped without aborting the run.
type Omission struct {
	Path   string        `json:"path"`
	Stage  OmissionStage `json:"stage"`
	Reason string        `json:"reason"`
}

type RebuildResult struct {
	Written   int        `json:"written"`
	Omissions []Omission `json:"omissions,omitempty"`
}

// SinkEntry describes one file handed to an archive sink during rebuild.
type SinkEntry struct {
	Path     string
	Modified time.Time
	Method   uint16
	Size     uint64
}

type UploadReceipt struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
