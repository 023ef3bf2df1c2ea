// Package llm holds what every remote classification provider shares: the
// prompt, HTTP error mapping and the circuit breaker guard.
package llm

import (
	"fmt"
	"strings"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

const SystemPrompt = "You classify files shared in a university course chat. Answer with a single JSON object and nothing else."

// BuildPrompt renders the request for one file. Only the file name, the local
// subject guess and the opted-in excerpt are included.
func BuildPrompt(req domain.RemoteRequest) string {
	categories := make([]string, 0, len(req.Categories))
	for _, c := range req.Categories {
		categories = append(categories, string(c))
	}
	if len(categories) == 0 {
		categories = []string{"Notes", "Assignment", "Admin", "Junk"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this academic file: %q.\n", req.FileName)
	fmt.Fprintf(&b, "The suggested subject from local processing is %q.\n", req.SubjectGuess)
	fmt.Fprintf(&b, "Categories: %s.\n\n", strings.Join(categories, ", "))
	b.WriteString("Generate a clean, descriptive file name based on the content.\n")
	b.WriteString("- Use the format Subject_Type_Topic (e.g. Physics_Lab_Thermodynamics)\n")
	b.WriteString("- At most 40 characters, underscores instead of spaces\n")
	b.WriteString("- Do not include the file extension\n")
	b.WriteString("- If the content is unclear, use null\n")
	if req.Excerpt != "" {
		fmt.Fprintf(&b, "\nFile context (first characters):\n%q\n", req.Excerpt)
	}
	if req.Image != nil {
		b.WriteString("\nThe file itself is attached as an image. Put any legible text from it in \"ocr\".\n")
	}
	b.WriteString("\nOutput JSON only:\n")
	b.WriteString(`{"category": "string", "ocr": "string", "confidence": "High|Medium|Low", "suggested_filename": "string without extension or null"}`)
	return b.String()
}
