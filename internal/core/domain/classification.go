package domain

type Subject string

const (
	SubjectMath                Subject = "Math"
	SubjectPhysics             Subject = "Physics"
	SubjectBME                 Subject = "BME"
	SubjectEngineeringGraphics Subject = "Engineering_Graphics"
	SubjectGeneral             Subject = "General"
)

type Category string

const (
	CategoryNotes         Category = "Notes"
	CategoryAssignment    Category = "Assignment"
	CategoryAdmin         Category = "Admin"
	CategoryJunk          Category = "Junk"
	CategoryLab           Category = "Lab"
	CategoryUncategorized Category = "Uncategorized"
)

// KnownCategories is the category enumeration offered to the remote tier.
var KnownCategories = []Category{
	CategoryNotes,
	CategoryAssignment,
	CategoryAdmin,
	CategoryJunk,
	CategoryLab,
	CategoryUncategorized,
}

// MatchSource tells which pass of the subject heuristic produced a label.
type MatchSource string

const (
	MatchFilename MatchSource = "filename"
	MatchContext  MatchSource = "context"
	MatchNone     MatchSource = "none"
)

type ClassificationState string

const (
	StateTier1Only      ClassificationState = "tier1_only"
	StateTier2Pending   ClassificationState = "tier2_pending"
	StateTier2Succeeded ClassificationState = "tier2_succeeded"
	StateTier2Fallback  ClassificationState = "tier2_fallback"
)

const (
	ConfidenceFilenameMatch = "High (Tier 1)"
	ConfidenceContextMatch  = "Medium (Context)"
	ConfidenceLocalDefault  = "Low (Local)"
	ConfidenceRemoteDefault = "Medium"
	ConfidenceFallback      = "Low"
)

// AttachmentReference is one attachment announcement found in a transcript.
// SourceLine is 1-based; 0 marks a reference synthesized without a transcript.
type AttachmentReference struct {
	SourceLine    uint32 `json:"source_line"`
	FileName      string `json:"file_name"`
	ContextWindow string `json:"context_window"`
}

type ClassificationResult struct {
	FileName      string              `json:"file_name"`
	EntryPath     string              `json:"entry_path"`
	SourceLine    uint32              `json:"source_line"`
	Subject       Subject             `json:"subject"`
	SubjectSource MatchSource         `json:"subject_source"`
	Category      Category            `json:"category"`
	ConfidenceTag string              `json:"confidence"`
	SuggestedName string              `json:"suggested_name,omitempty"`
	ExtractedText string              `json:"extracted_text,omitempty"`
	State         ClassificationState `json:"state"`
	FailureReason string              `json:"failure_reason,omitempty"`
}

// InlineImage is raw image content attached to a remote request.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// RemoteRequest is everything the remote tier may learn about one file.
type RemoteRequest struct {
	FileName     string
	SubjectGuess Subject
	Categories   []Category
	Image        *InlineImage
	Excerpt      string
}
