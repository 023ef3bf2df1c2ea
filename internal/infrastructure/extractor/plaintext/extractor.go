package plaintext

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"
)

const defaultMaxBytes = 5 << 10

// Extractor reads UTF-8 text files. Binary input yields no text.
type Extractor struct {
	maxBytes int
}

func NewExtractor(maxBytes int) *Extractor {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Extractor{maxBytes: maxBytes}
}

func (e *Extractor) Extract(_ context.Context, _ string, data []byte) (string, error) {
	if len(data) > e.maxBytes {
		data = trimPartialRune(data[:e.maxBytes])
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !utf8.Valid(data) {
		return "", nil
	}
	return strings.TrimSpace(string(data)), nil
}

// trimPartialRune drops a rune cut in half by truncation.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax-1 && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			break
		}
		b = b[:len(b)-1]
	}
	return b
}
