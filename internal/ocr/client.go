// internal/ocr/client.go

// Package ocr talks to the external OCR worker: document analysis and the
// engine on/off settings it exposes.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxResponseBytes = 16 << 20

// UpstreamError is any failed exchange with the worker. StatusCode is zero
// when no response was received.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return "ocr worker unreachable: " + e.Detail
	}
	return fmt.Sprintf("ocr worker returned %d: %s", e.StatusCode, e.Detail)
}

type Client struct {
	baseURL         string
	http            *http.Client
	analyzeTimeout  time.Duration
	settingsTimeout time.Duration
}

func NewClient(baseURL string, analyzeTimeout, settingsTimeout time.Duration) *Client {
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{},
		analyzeTimeout:  analyzeTimeout,
		settingsTimeout: settingsTimeout,
	}
}

// AnalyzeRequest names the document either by a path the worker can read
// (FilePath) or by its contents (File).
type AnalyzeRequest struct {
	DocumentID uint
	FilePath   string
	File       io.Reader
	FileName   string
}

// Analyze performs a single POST /analyze. It never retries.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	docID := strconv.FormatUint(uint64(req.DocumentID), 10)

	var (
		body        io.Reader
		contentType string
	)
	if req.File != nil {
		buf := &bytes.Buffer{}
		writer := multipart.NewWriter(buf)
		if err := writer.WriteField("documentId", docID); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
		name := req.FileName
		if name == "" {
			name = "document"
		}
		part, err := writer.CreateFormFile("file", filepath.Base(name))
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, req.File); err != nil {
			return nil, fmt.Errorf("failed to copy file: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close form: %w", err)
		}
		body, contentType = buf, writer.FormDataContentType()
	} else {
		payload, err := json.Marshal(map[string]string{
			"file_path":  req.FilePath,
			"documentId": docID,
		})
		if err != nil {
			return nil, err
		}
		body, contentType = bytes.NewReader(payload), "application/json"
	}

	raw, err := c.do(ctx, c.analyzeTimeout, http.MethodPost, "/analyze", body, contentType)
	if err != nil {
		return nil, err
	}

	var result AnalyzeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &UpstreamError{StatusCode: http.StatusOK, Detail: "malformed analyze response: " + err.Error()}
	}
	return &result, nil
}

// ListEngines fetches the worker's engine states.
func (c *Client) ListEngines(ctx context.Context) ([]EngineState, error) {
	raw, err := c.do(ctx, c.settingsTimeout, http.MethodGet, "/engines", nil, "")
	if err != nil {
		return nil, err
	}
	return decodeEngines(raw)
}

// SetEngineEnabled toggles one engine and returns the updated list.
func (c *Client) SetEngineEnabled(ctx context.Context, engineID string, enabled bool) ([]EngineState, error) {
	payload, err := json.Marshal(map[string]bool{"enabled": enabled})
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, c.settingsTimeout, http.MethodPost, "/engines/"+url.PathEscape(engineID), bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	return decodeEngines(raw)
}

func decodeEngines(raw []byte) ([]EngineState, error) {
	engines, err := NormalizeEngines(raw)
	if err != nil {
		return nil, &UpstreamError{StatusCode: http.StatusOK, Detail: err.Error()}
	}
	return engines, nil
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			detail = fmt.Sprintf("request timed out after %s", timeout)
		}
		return nil, &UpstreamError{Detail: detail}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Detail: "failed to read response: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Detail: errorDetail(resp.StatusCode, raw)}
	}
	return raw, nil
}

// errorDetail extracts the worker's message, preferring FastAPI's "detail".
func errorDetail(status int, body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s
		}
		return string(envelope.Detail)
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		text = text[:512] + "..."
	}
	if text == "" {
		return http.StatusText(status)
	}
	return text
}
