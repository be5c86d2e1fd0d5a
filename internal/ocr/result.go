// internal/ocr/result.go
package ocr

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	KeyRawText      = "rawText"
	KeySchemaType   = "schemaType"
	KeyParsedFields = "parsedFields"
	KeyOcrMeta      = "ocrMeta"
)

// AnalyzeResult is the worker's answer to /analyze. A key missing from the
// response is different from a key sent as null: Has reports the former.
type AnalyzeResult struct {
	RawText      *string
	SchemaType   *string
	ParsedFields json.RawMessage
	OcrMeta      json.RawMessage

	present map[string]bool
}

func (r *AnalyzeResult) Has(key string) bool {
	return r.present[key]
}

func (r *AnalyzeResult) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("analyze response is not an object")
	}

	*r = AnalyzeResult{present: make(map[string]bool)}
	for _, key := range []string{KeyRawText, KeySchemaType} {
		raw, ok := m[key]
		if !ok {
			continue
		}
		r.present[key] = true
		if isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == KeyRawText {
			r.RawText = &s
		} else {
			r.SchemaType = &s
		}
	}
	if raw, ok := m[KeyParsedFields]; ok {
		r.present[KeyParsedFields] = true
		if !isNull(raw) {
			r.ParsedFields = raw
		}
	}
	if raw, ok := m[KeyOcrMeta]; ok {
		r.present[KeyOcrMeta] = true
		if !isNull(raw) {
			r.OcrMeta = raw
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
