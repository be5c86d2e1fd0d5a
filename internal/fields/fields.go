// internal/fields/fields.go

// Package fields holds the recognized surgical-record fields and the rules for
// validating user corrections, merging them into a document's verified set,
// and resolving what a reviewer should see.
package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"casebook/internal/apperrors"

	"gorm.io/datatypes"
)

type Key string

const (
	SurgeryDate   Key = "surgeryDate"
	PatientAge    Key = "patientAge"
	PatientSex    Key = "patientSex"
	Diagnosis     Key = "diagnosis"
	Procedure     Key = "procedure"
	Surgeon       Key = "surgeon"
	EmergencyFlag Key = "emergencyFlag"
)

// Keys lists the recognized fields in validation order.
var Keys = []Key{SurgeryDate, PatientAge, PatientSex, Diagnosis, Procedure, Surgeon, EmergencyFlag}

// DateLayout is the canonical form of a verified surgery date.
const DateLayout = "2006-01-02"

var dateLayouts = []string{DateLayout, time.RFC3339Nano, time.RFC3339}

// Set is a partial assignment of recognized fields. A nil member means the
// field is absent.
type Set struct {
	SurgeryDate   *string `json:"surgeryDate,omitempty"`
	PatientAge    *int    `json:"patientAge,omitempty"`
	PatientSex    *string `json:"patientSex,omitempty"`
	Diagnosis     *string `json:"diagnosis,omitempty"`
	Procedure     *string `json:"procedure,omitempty"`
	Surgeon       *string `json:"surgeon,omitempty"`
	EmergencyFlag *bool   `json:"emergencyFlag,omitempty"`
}

type ValidationError struct {
	Field  Key
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Parse validates a verification payload. Unrecognized keys are ignored. The
// first invalid field aborts parsing; a payload without any recognized field
// yields apperrors.ErrNoFields.
func Parse(payload map[string]json.RawMessage) (Set, error) {
	var s Set
	for _, k := range Keys {
		raw, ok := payload[string(k)]
		if !ok {
			continue
		}
		v, err := decode(raw)
		if err != nil {
			return Set{}, &ValidationError{Field: k, Reason: "is not valid JSON"}
		}
		if err := s.assign(k, v); err != nil {
			return Set{}, err
		}
	}
	if s.Empty() {
		return Set{}, apperrors.ErrNoFields
	}
	return s, nil
}

func (s *Set) assign(k Key, v any) error {
	switch k {
	case SurgeryDate:
		str, ok := v.(string)
		if !ok {
			return &ValidationError{Field: k, Reason: "must be a date string"}
		}
		d, ok := parseDate(str)
		if !ok {
			return &ValidationError{Field: k, Reason: "must be a valid calendar date"}
		}
		s.SurgeryDate = &d
	case PatientAge:
		age, ok := parseAge(v)
		if !ok {
			return &ValidationError{Field: k, Reason: "must be a non-negative integer"}
		}
		s.PatientAge = &age
	case EmergencyFlag:
		b, ok := v.(bool)
		if !ok {
			return &ValidationError{Field: k, Reason: "must be a boolean"}
		}
		s.EmergencyFlag = &b
	default:
		str, ok := v.(string)
		if !ok {
			return &ValidationError{Field: k, Reason: "must be a string"}
		}
		*s.stringField(k) = &str
	}
	return nil
}

func (s *Set) stringField(k Key) **string {
	switch k {
	case PatientSex:
		return &s.PatientSex
	case Diagnosis:
		return &s.Diagnosis
	case Procedure:
		return &s.Procedure
	case Surgeon:
		return &s.Surgeon
	}
	panic("fields: not a string field: " + string(k))
}

func (s Set) Empty() bool {
	return len(s.Present()) == 0
}

// Present returns the keys that carry a value, in validation order.
func (s Set) Present() []Key {
	var keys []Key
	for _, k := range Keys {
		if _, ok := s.Get(k); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s Set) Get(k Key) (any, bool) {
	switch k {
	case SurgeryDate:
		if s.SurgeryDate != nil {
			return *s.SurgeryDate, true
		}
	case PatientAge:
		if s.PatientAge != nil {
			return *s.PatientAge, true
		}
	case PatientSex:
		if s.PatientSex != nil {
			return *s.PatientSex, true
		}
	case Diagnosis:
		if s.Diagnosis != nil {
			return *s.Diagnosis, true
		}
	case Procedure:
		if s.Procedure != nil {
			return *s.Procedure, true
		}
	case Surgeon:
		if s.Surgeon != nil {
			return *s.Surgeon, true
		}
	case EmergencyFlag:
		if s.EmergencyFlag != nil {
			return *s.EmergencyFlag, true
		}
	}
	return nil, false
}

// Merge overlays next onto prior, one level deep. Fields absent from next keep
// their prior value.
func Merge(prior, next Set) Set {
	out := prior
	if next.SurgeryDate != nil {
		out.SurgeryDate = next.SurgeryDate
	}
	if next.PatientAge != nil {
		out.PatientAge = next.PatientAge
	}
	if next.PatientSex != nil {
		out.PatientSex = next.PatientSex
	}
	if next.Diagnosis != nil {
		out.Diagnosis = next.Diagnosis
	}
	if next.Procedure != nil {
		out.Procedure = next.Procedure
	}
	if next.Surgeon != nil {
		out.Surgeon = next.Surgeon
	}
	if next.EmergencyFlag != nil {
		out.EmergencyFlag = next.EmergencyFlag
	}
	return out
}

// CaseColumns maps the present fields onto case column updates.
func (s Set) CaseColumns() map[string]any {
	cols := make(map[string]any)
	if s.SurgeryDate != nil {
		if t, err := time.Parse(DateLayout, *s.SurgeryDate); err == nil {
			cols["surgery_date"] = datatypes.Date(t)
		}
	}
	if s.PatientAge != nil {
		cols["patient_age"] = *s.PatientAge
	}
	if s.PatientSex != nil {
		cols["patient_sex"] = *s.PatientSex
	}
	if s.Diagnosis != nil {
		cols["diagnosis"] = *s.Diagnosis
	}
	if s.Procedure != nil {
		cols["procedure"] = *s.Procedure
	}
	if s.Surgeon != nil {
		cols["surgeon"] = *s.Surgeon
	}
	if s.EmergencyFlag != nil {
		cols["emergency_flag"] = *s.EmergencyFlag
	}
	return cols
}

// Resolved is the reviewer's view: one entry per recognized field, nil when
// neither a verified nor a parsed value exists.
type Resolved map[Key]any

// Resolve prefers verified values, then parsed OCR values (unwrapping the
// {"value": X} envelope the worker emits).
func Resolve(verified Set, parsed []byte) Resolved {
	var raw map[string]json.RawMessage
	if len(parsed) > 0 {
		// parsedFields that are not an object contribute nothing.
		_ = json.Unmarshal(parsed, &raw)
	}

	out := make(Resolved, len(Keys))
	for _, k := range Keys {
		if v, ok := verified.Get(k); ok {
			out[k] = v
			continue
		}
		out[k] = unwrap(raw[string(k)])
	}
	return out
}

func unwrap(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	v, err := decode(raw)
	if err != nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		if inner, ok := m["value"]; ok {
			return inner
		}
	}
	return v
}

func decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// parseAge accepts a JSON number with an integral value, or a string holding
// a base-10 integer.
func parseAge(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(n.String(), 10, 32); err == nil {
			return int(i), i >= 0
		}
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 32)
		if err != nil {
			return 0, false
		}
		return int(i), i >= 0
	}
	return 0, false
}
