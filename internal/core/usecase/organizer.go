package usecase

import (
	"fmt"
	"path"
	"strings"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

type Layout struct {
	OrganizedRoot  string
	QuarantineRoot string
	CatchAllRoot   string
}

// ArchiveOrganizer computes where every retained entry lands in the output.
type ArchiveOrganizer struct {
	layout Layout
}

func NewArchiveOrganizer(layout Layout) *ArchiveOrganizer {
	if layout.OrganizedRoot == "" {
		layout.OrganizedRoot = "College_Docs"
	}
	if layout.QuarantineRoot == "" {
		layout.QuarantineRoot = "Junk"
	}
	if layout.CatchAllRoot == "" {
		layout.CatchAllRoot = "Unsorted"
	}
	return &ArchiveOrganizer{layout: layout}
}

// BuildMapping walks entries in archive order, so equal inputs give equal
// output. Destinations are unique: a taken name falls back to the original
// file name, then to "name (2).ext", "name (3).ext" and so on.
func (o *ArchiveOrganizer) BuildMapping(
	entries []domain.ArchiveEntry,
	results []domain.ClassificationResult,
	transcriptPath string,
) []domain.PathMapping {
	byPath := make(map[string]domain.ClassificationResult, len(results))
	for _, r := range results {
		if _, ok := byPath[r.EntryPath]; !ok {
			byPath[r.EntryPath] = r
		}
	}

	taken := make(map[string]struct{}, len(entries))
	mappings := make([]domain.PathMapping, 0, len(entries))
	for _, entry := range entries {
		if !entry.Retained() {
			continue
		}

		base := pathSegment(domain.EntryBase(entry.Path))
		var dest string
		switch result, ok := byPath[entry.Path]; {
		case transcriptPath != "" && entry.Path == transcriptPath:
			dest = claim(taken, "", base, base)
		case ok:
			preferred := base
			if result.SuggestedName != "" {
				preferred = pathSegment(result.SuggestedName)
			}
			dest = claim(taken, o.directoryFor(result), preferred, base)
		default:
			dest = claim(taken, o.layout.CatchAllRoot, base, base)
		}
		mappings = append(mappings, domain.PathMapping{OriginalPath: entry.Path, DestinationPath: dest})
	}
	return mappings
}

func (o *ArchiveOrganizer) directoryFor(result domain.ClassificationResult) string {
	root := o.layout.OrganizedRoot
	if result.Category == domain.CategoryJunk {
		root = o.layout.QuarantineRoot
	}
	return path.Join(root, pathSegment(string(result.Subject)), pathSegment(string(result.Category)))
}

func claim(taken map[string]struct{}, dir, preferred, original string) string {
	try := func(name string) (string, bool) {
		candidate := path.Join(dir, name)
		if _, exists := taken[candidate]; exists {
			return "", false
		}
		taken[candidate] = struct{}{}
		return candidate, true
	}

	if dest, ok := try(preferred); ok {
		return dest
	}
	if preferred != original {
		if dest, ok := try(original); ok {
			return dest
		}
	}
	ext := path.Ext(original)
	stem := strings.TrimSuffix(original, ext)
	for n := 2; ; n++ {
		if dest, ok := try(fmt.Sprintf("%s (%d)%s", stem, n, ext)); ok {
			return dest
		}
	}
}
