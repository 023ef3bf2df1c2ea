package document

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"

	"github.com/klauspost/compress/zip"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractDOCX(data []byte, maxChars int) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrCorruptEntry, "extract docx", err)
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			out := &capped{limit: maxChars}
			if err := readRuns(f, out); err != nil {
				return "", domain.WrapError(domain.ErrCorruptEntry, "extract docx", err)
			}
			return out.String(), nil
		}
	}
	return "", domain.WrapError(domain.ErrCorruptEntry, "extract docx", errors.New("word/document.xml missing"))
}

func extractPPTX(ctx context.Context, data []byte, maxChars int) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrCorruptEntry, "extract pptx", err)
	}

	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slidePart.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, f: f})
		}
	}
	slices.SortFunc(slides, func(a, b slide) int { return a.n - b.n })

	out := &capped{limit: maxChars}
	for _, s := range slides {
		if out.full() {
			break
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := readRuns(s.f, out); err != nil {
			return "", domain.WrapError(domain.ErrCorruptEntry, "extract pptx", fmt.Errorf("%s: %w", s.f.Name, err))
		}
	}
	return out.String(), nil
}

// readRuns copies the character data of <w:t>/<a:t> runs and ends a line at
// every paragraph.
func readRuns(f *zip.File, out *capped) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	inText := false
	for !out.full() {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inText = t.Name.Local == "t"
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.write("\n")
			}
		case xml.CharData:
			if inText {
				out.write(string(t))
			}
		}
	}
	return nil
}
