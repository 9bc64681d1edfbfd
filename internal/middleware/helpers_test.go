package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func newDevFilter() *ExceptionFilter {
	return NewExceptionFilter("development", "info", newDiscardLogger())
}

func newProdFilter() *ExceptionFilter {
	return NewExceptionFilter("production", "info", newDiscardLogger())
}

// decodeError はレスポンスボディをErrorEnvelopeとして読み込む。
func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var body ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

// decodeRaw はレスポンスボディを汎用のmapとして読み込む。
func decodeRaw(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

// recordingRecorder はテスト用にメトリクス記録内容を保持するRecorder。
type recordingRecorder struct {
	mu       sync.Mutex
	auth     []string
	requests []recordedRequest
}

type recordedRequest struct {
	method string
	route  string
	status int
}

func (r *recordingRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recordedRequest{method: method, route: route, status: status})
}

func (r *recordingRecorder) RecordAuthAttempt(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auth = append(r.auth, result)
}

func (r *recordingRecorder) RecordDBPing(time.Duration, bool) {}
func (r *recordingRecorder) RecordKeepAlive(bool)             {}

func (r *recordingRecorder) authResults() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.auth...)
}
