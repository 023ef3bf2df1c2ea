package domain

type SubjectRule struct {
	Subject  Subject
	Keywords []string
}

type CategoryRule struct {
	Category Category
	Keywords []string
}

// Heuristics holds every tunable table used by Tier 1 and the organizer.
type Heuristics struct {
	Subjects        []SubjectRule
	FallbackSubject Subject

	// Evaluated in order; the first matching rule wins.
	Categories      []CategoryRule
	DefaultCategory Category

	AttachmentExtensions []string
	AttachmentMarkers    []string
	ImageExtensions      []string
	TranscriptExtension  string
	MetadataPrefixes     []string

	ContextLinesBefore int
	ContextLinesAfter  int

	OrganizedRoot  string
	QuarantineRoot string
	CatchAllRoot   string
}

func DefaultHeuristics() Heuristics {
	return Heuristics{
		Subjects: []SubjectRule{
			{Subject: SubjectMath, Keywords: []string{"math", "maths", "calculus", "integration", "algebra", "matrix", "derivative", "statistics"}},
			{Subject: SubjectPhysics, Keywords: []string{"physics", "phy", "optics", "quantum", "mechanics", "light", "wave", "thermo", "lab", "modern physics", "electromagnetic"}},
			{Subject: SubjectBME, Keywords: []string{"bme", "biology", "biomedical", "anatomy", "cell", "physiology"}},
			{Subject: SubjectEngineeringGraphics, Keywords: []string{"eg", "graphics", "drawing", "projection", "autocad", "isometric", "scale"}},
		},
		FallbackSubject: SubjectGeneral,
		Categories: []CategoryRule{
			{Category: CategoryAdmin, Keywords: []string{"syllabus", "table"}},
			{Category: CategoryAssignment, Keywords: []string{"assign", "h.w"}},
			{Category: CategoryLab, Keywords: []string{"lab", "practical"}},
		},
		DefaultCategory:      CategoryNotes,
		AttachmentExtensions: []string{"pdf", "jpg", "png", "docx", "pptx", "doc", "mp4", "opus"},
		AttachmentMarkers:    []string{"attached", "<attached:"},
		ImageExtensions:      []string{"jpg", "jpeg", "png"},
		TranscriptExtension:  ".txt",
		MetadataPrefixes:     []string{"__MACOSX/"},
		ContextLinesBefore:   5,
		ContextLinesAfter:    3,
		OrganizedRoot:        "College_Docs",
		QuarantineRoot:       "Junk",
		CatchAllRoot:         "Unsorted",
	}
}
