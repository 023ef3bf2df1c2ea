package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

// RemoteVerdict is the decoded remote classification payload.
type RemoteVerdict struct {
	Category          string
	Confidence        string
	SuggestedFilename string
	OCR               string
}

type remotePayload struct {
	Category          json.RawMessage `json:"category"`
	Confidence        json.RawMessage `json:"confidence"`
	SuggestedFilename json.RawMessage `json:"suggested_filename"`
	OCR               json.RawMessage `json:"ocr"`
}

// ParseRemoteResponse tolerates markdown fences, leading or trailing prose,
// and non-string scalar fields. Any other deviation is an error.
func ParseRemoteResponse(raw string) (RemoteVerdict, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return RemoteVerdict{}, domain.WrapError(domain.ErrRemoteClassification, "parse remote response", errors.New("empty response"))
	}

	payload, err := decodePayload(text)
	if err != nil {
		payload, err = decodePayload(extractJSONObject(text))
	}
	if err != nil {
		return RemoteVerdict{}, domain.WrapError(domain.ErrRemoteClassification, "parse remote response", err)
	}

	verdict := RemoteVerdict{
		Category:          rawString(payload.Category),
		Confidence:        rawString(payload.Confidence),
		SuggestedFilename: rawString(payload.SuggestedFilename),
		OCR:               rawString(payload.OCR),
	}
	if verdict.Category == "" {
		return RemoteVerdict{}, domain.WrapError(domain.ErrRemoteClassification, "parse remote response", errors.New("category missing"))
	}
	return verdict, nil
}

func decodePayload(text string) (remotePayload, error) {
	var payload remotePayload
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&payload); err != nil {
		return remotePayload{}, err
	}
	return payload, nil
}

func stripCodeFences(input string) string {
	trimmed := strings.TrimSpace(input)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	body := trimmed[start+3:]
	// Drop the info string ("json", "JSON", ...) up to the first newline.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(strings.TrimPrefix(body, "json"), "JSON")
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func rawString(msg json.RawMessage) string {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(msg))
}
