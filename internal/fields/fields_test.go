package fields

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"casebook/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func payload(t *testing.T, s string) map[string]json.RawMessage {
	t.Helper()
	var p map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(s), &p))
	return p
}

func TestParse_AllFields(t *testing.T) {
	s, err := Parse(payload(t, `{
		"surgeryDate": "2025-11-08",
		"patientAge": 45,
		"patientSex": "F",
		"diagnosis": "Perforation peritonitis",
		"procedure": "Emergency laparotomy",
		"surgeon": "Dr Example",
		"emergencyFlag": true
	}`))
	require.NoError(t, err)

	assert.Equal(t, "2025-11-08", *s.SurgeryDate)
	assert.Equal(t, 45, *s.PatientAge)
	assert.Equal(t, "F", *s.PatientSex)
	assert.Equal(t, "Perforation peritonitis", *s.Diagnosis)
	assert.Equal(t, "Emergency laparotomy", *s.Procedure)
	assert.Equal(t, "Dr Example", *s.Surgeon)
	assert.True(t, *s.EmergencyFlag)
	assert.Len(t, s.Present(), len(Keys))
}

func TestParse_PatientAge(t *testing.T) {
	accepted := map[string]int{
		`0`:     0,
		`"42"`:  42,
		`42`:    42,
		`42.0`:  42,
		`4e1`:   40,
		`" 7 "`: 7,
		`120`:   120,
		`"0"`:   0,
	}
	for in, want := range accepted {
		s, err := Parse(payload(t, `{"patientAge": `+in+`}`))
		require.NoError(t, err, in)
		assert.Equal(t, want, *s.PatientAge, in)
	}

	rejected := []string{`-1`, `"abc"`, `3.5`, `"3.5"`, `"-4"`, `true`, `null`, `""`, `[1]`, `"4e1"`, `"42.0"`, `"0x2A"`, `"1_000"`}
	for _, in := range rejected {
		_, err := Parse(payload(t, `{"patientAge": `+in+`}`))
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), in)
		assert.Equal(t, PatientAge, verr.Field)
	}
}

func TestParse_SurgeryDate(t *testing.T) {
	s, err := Parse(payload(t, `{"surgeryDate": "2024-02-29T10:30:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", *s.SurgeryDate)

	for _, in := range []string{`"2023-02-29"`, `"yesterday"`, `"08/11/2025"`, `20251108`, `null`} {
		_, err := Parse(payload(t, `{"surgeryDate": `+in+`}`))
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), in)
		assert.Equal(t, SurgeryDate, verr.Field)
	}
}

func TestParse_TypeChecks(t *testing.T) {
	cases := map[string]Key{
		`{"diagnosis": 12}`:         Diagnosis,
		`{"surgeon": null}`:         Surgeon,
		`{"procedure": ["a"]}`:      Procedure,
		`{"patientSex": false}`:     PatientSex,
		`{"emergencyFlag": "true"}`: EmergencyFlag,
		`{"emergencyFlag": 1}`:      EmergencyFlag,
	}
	for in, field := range cases {
		_, err := Parse(payload(t, in))
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), in)
		assert.Equal(t, field, verr.Field, in)
	}
}

func TestParse_FirstFailureWins(t *testing.T) {
	_, err := Parse(payload(t, `{"diagnosis": "ok", "patientAge": -3, "emergencyFlag": "no"}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, PatientAge, verr.Field)
	assert.Equal(t, "patientAge must be a non-negative integer", verr.Error())
}

func TestParse_EmptyOrUnrecognized(t *testing.T) {
	for _, in := range []string{`{}`, `{"notes": "x"}`, `{"summary": {"value": "y"}}`} {
		_, err := Parse(payload(t, in))
		assert.ErrorIs(t, err, apperrors.ErrNoFields, in)
	}
}

func TestParse_IgnoresUnrecognizedAlongsideKnown(t *testing.T) {
	s, err := Parse(payload(t, `{"diagnosis": "A", "ward": "3B"}`))
	require.NoError(t, err)
	assert.Equal(t, []Key{Diagnosis}, s.Present())
}

func TestMerge_Accumulates(t *testing.T) {
	first, err := Parse(payload(t, `{"diagnosis": "A"}`))
	require.NoError(t, err)
	second, err := Parse(payload(t, `{"surgeon": "B"}`))
	require.NoError(t, err)

	merged := Merge(Merge(Set{}, first), second)
	assert.Equal(t, "A", *merged.Diagnosis)
	assert.Equal(t, "B", *merged.Surgeon)
	assert.Equal(t, []Key{Diagnosis, Surgeon}, merged.Present())
}

func TestMerge_Idempotent(t *testing.T) {
	s, err := Parse(payload(t, `{"diagnosis": "A"}`))
	require.NoError(t, err)

	once := Merge(Set{}, s)
	twice := Merge(once, s)
	assert.Equal(t, once, twice)

	raw, err := json.Marshal(twice)
	require.NoError(t, err)
	assert.JSONEq(t, `{"diagnosis": "A"}`, string(raw))
}

func TestMerge_Overwrites(t *testing.T) {
	prior, _ := Parse(payload(t, `{"diagnosis": "A", "patientAge": 30}`))
	next, _ := Parse(payload(t, `{"diagnosis": "B"}`))

	merged := Merge(prior, next)
	assert.Equal(t, "B", *merged.Diagnosis)
	assert.Equal(t, 30, *merged.PatientAge)
}

func TestCaseColumns(t *testing.T) {
	s, err := Parse(payload(t, `{"surgeryDate": "2025-11-08", "patientAge": "42", "emergencyFlag": false}`))
	require.NoError(t, err)

	cols := s.CaseColumns()
	require.Len(t, cols, 3)
	assert.Equal(t, 42, cols["patient_age"])
	assert.Equal(t, false, cols["emergency_flag"])

	date, ok := cols["surgery_date"].(datatypes.Date)
	require.True(t, ok)
	assert.Equal(t, "2025-11-08", time.Time(date).Format(DateLayout))

	assert.Empty(t, Set{}.CaseColumns())
}

func TestResolve_PrefersVerified(t *testing.T) {
	verified, err := Parse(payload(t, `{"diagnosis": "confirmed appendicitis"}`))
	require.NoError(t, err)

	got := Resolve(verified, []byte(`{"diagnosis": {"value": "appendicitis", "confidence": 0.9}}`))
	assert.Equal(t, "confirmed appendicitis", got[Diagnosis])
}

func TestResolve_UnwrapsParsed(t *testing.T) {
	got := Resolve(Set{}, []byte(`{"surgeon": {"value": "Dr. Lee"}, "patientSex": "M", "patientAge": {"value": 45, "confidence": 0.8}}`))

	assert.Equal(t, "Dr. Lee", got[Surgeon])
	assert.Equal(t, "M", got[PatientSex])
	assert.Equal(t, json.Number("45"), got[PatientAge])
	assert.Nil(t, got[Diagnosis])
	assert.Len(t, got, len(Keys))
}

func TestResolve_NoParsedFields(t *testing.T) {
	for _, parsed := range [][]byte{nil, []byte(`null`), []byte(`[1,2]`)} {
		got := Resolve(Set{}, parsed)
		for _, k := range Keys {
			assert.Nil(t, got[k])
		}
	}
}

func TestSet_JSONRoundTripOmitsAbsent(t *testing.T) {
	s, err := Parse(payload(t, `{"emergencyFlag": false}`))
	require.NoError(t, err)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"emergencyFlag": false}`, string(raw))
}
