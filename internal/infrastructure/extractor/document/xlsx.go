package document

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

// extractXLSX reads the rows of the first sheet, cells separated by tabs.
func extractXLSX(data []byte, maxChars int) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", domain.WrapError(domain.ErrCorruptEntry, "extract xlsx", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", domain.WrapError(domain.ErrCorruptEntry, "extract xlsx", err)
	}

	out := &capped{limit: maxChars}
	for _, row := range rows {
		if out.full() {
			break
		}
		line := strings.TrimSpace(strings.Join(row, "\t"))
		if line == "" {
			continue
		}
		out.write(line)
		out.write("\n")
	}
	return out.String(), nil
}
