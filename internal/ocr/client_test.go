package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorker(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, 2*time.Second)
}

func TestAnalyze_PathMode(t *testing.T) {
	var got map[string]string
	client := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"rawText": "Diagnosis: appendicitis",
			"schemaType": "surgery_note_v1",
			"parsedFields": {"diagnosis": {"value": "appendicitis", "confidence": 0.9}},
			"ocrMeta": {"enginesUsed": ["surya"]}
		}`)
	})

	res, err := client.Analyze(context.Background(), AnalyzeRequest{DocumentID: 12, FilePath: "/data/uploads/a.png"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"file_path": "/data/uploads/a.png", "documentId": "12"}, got)
	require.NotNil(t, res.RawText)
	assert.Equal(t, "Diagnosis: appendicitis", *res.RawText)
	assert.Equal(t, "surgery_note_v1", *res.SchemaType)
	assert.JSONEq(t, `{"diagnosis": {"value": "appendicitis", "confidence": 0.9}}`, string(res.ParsedFields))
	assert.JSONEq(t, `{"enginesUsed": ["surya"]}`, string(res.OcrMeta))
	for _, k := range []string{KeyRawText, KeySchemaType, KeyParsedFields, KeyOcrMeta} {
		assert.True(t, res.Has(k), k)
	}
}

func TestAnalyze_UploadMode(t *testing.T) {
	client := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "5", r.FormValue("documentId"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "scan.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(body))

		io.WriteString(w, `{"rawText": "ok"}`)
	})

	res, err := client.Analyze(context.Background(), AnalyzeRequest{
		DocumentID: 5,
		File:       strings.NewReader("%PDF-1.4"),
		FileName:   "users/1/cases/2/scan.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", *res.RawText)
}

func TestAnalyze_AbsentVersusNull(t *testing.T) {
	client := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"rawText": null, "parsedFields": null}`)
	})

	res, err := client.Analyze(context.Background(), AnalyzeRequest{DocumentID: 1, FilePath: "/x"})
	require.NoError(t, err)

	assert.True(t, res.Has(KeyRawText))
	assert.Nil(t, res.RawText)
	assert.True(t, res.Has(KeyParsedFields))
	assert.Nil(t, res.ParsedFields)

	assert.False(t, res.Has(KeySchemaType))
	assert.False(t, res.Has(KeyOcrMeta))
}

func TestAnalyze_WorkerErrorCarriesDetail(t *testing.T) {
	client := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail": "file_path does not exist or is not a file"}`)
	})

	_, err := client.Analyze(context.Background(), AnalyzeRequest{DocumentID: 1, FilePath: "/missing"})
	var uerr *UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, http.StatusBadRequest, uerr.StatusCode)
	assert.Equal(t, "file_path does not exist or is not a file", uerr.Detail)
}

func TestAnalyze_MalformedBody(t *testing.T) {
	client := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"rawText": 42}`)
	})

	_, err := client.Analyze(context.Background(), AnalyzeRequest{DocumentID: 1, FilePath: "/x"})
	var uerr *UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Contains(t, uerr.Detail, "malformed")
}

func TestAnalyze_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	client := NewClient(srv.URL, 50*time.Millisecond, time.Second)

	_, err := client.Analyze(context.Background(), AnalyzeRequest{DocumentID: 1, FilePath: "/x"})
	var uerr *UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, 0, uerr.StatusCode)
	assert.Contains(t, uerr.Detail, "timed out")
}

func TestAnalyze_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second, time.Second).Analyze(context.Background(), AnalyzeRequest{DocumentID: 1, FilePath: "/x"})
	var uerr *UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, 0, uerr.StatusCode)
}

func TestListEngines(t *testing.T) {
	client := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/engines", r.URL.Path)
		io.WriteString(w, `{"engines": [
			{"id": "surya", "name": "Surya", "enabled": true, "available": false, "reason": "Import error"},
			{"id": "stub", "name": "Stub", "enabled": true, "available": true, "reason": null}
		]}`)
	})

	engines, err := client.ListEngines(context.Background())
	require.NoError(t, err)
	require.Len(t, engines, 2)
	assert.Equal(t, "surya", engines[0].ID)
	assert.Equal(t, "Import error", *engines[0].Reason)
	assert.Nil(t, engines[1].Reason)
	assert.True(t, engines[1].Available)
}

func TestSetEngineEnabled(t *testing.T) {
	client := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/engines/gcv", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"enabled": true}, body)

		io.WriteString(w, `[{"id": "gcv", "name": "Google Cloud Vision", "enabled": true, "available": false}]`)
	})

	engines, err := client.SetEngineEnabled(context.Background(), "gcv", true)
	require.NoError(t, err)
	require.Len(t, engines, 1)
	assert.True(t, engines[0].Enabled)
}

func TestSetEngineEnabled_NotFound(t *testing.T) {
	client := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail": "Engine not found"}`)
	})

	_, err := client.SetEngineEnabled(context.Background(), "nope", false)
	var uerr *UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, http.StatusNotFound, uerr.StatusCode)
	assert.Equal(t, "Engine not found", uerr.Detail)
}

func TestNormalizeEngines_Shapes(t *testing.T) {
	want := []EngineState{
		{ID: "chandra", Name: "Chandra", Enabled: true},
		{ID: "stub", Name: "Stub", Enabled: true, Available: true},
	}

	shapes := []string{
		`[{"id":"chandra","name":"Chandra","enabled":true,"available":false},{"id":"stub","name":"Stub","enabled":true,"available":true}]`,
		`{"engines":[{"id":"chandra","name":"Chandra","enabled":true,"available":false},{"id":"stub","name":"Stub","enabled":true,"available":true}]}`,
		`{"stub":{"name":"Stub","enabled":true,"available":true},"chandra":{"id":"chandra","name":"Chandra","enabled":true}}`,
		`{"engines":{"stub":{"name":"Stub","enabled":true,"available":true},"chandra":{"name":"Chandra","enabled":true}}}`,
	}
	for _, shape := range shapes {
		got, err := NormalizeEngines([]byte(shape))
		require.NoError(t, err, shape)
		assert.Equal(t, want, got, shape)
	}
}

func TestNormalizeEngines_Invalid(t *testing.T) {
	for _, body := range []string{``, `"engines"`, `42`, `[{"name":"no id"}]`, `{"a": 1}`, `[1,2]`} {
		_, err := NormalizeEngines([]byte(body))
		assert.Error(t, err, body)
	}

	got, err := NormalizeEngines([]byte(`{"engines": []}`))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}
