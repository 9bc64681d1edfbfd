package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateRequestID_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if !requestIDPattern.MatchString(id) {
			t.Fatalf("id %q does not match pattern", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestRequestIDMiddleware_SetsHeaderAndContext(t *testing.T) {
	var ctxID string
	h := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if ctxID == "" || w.Header().Get(RequestIDHeader) != ctxID {
		t.Errorf("header = %q, context = %q", w.Header().Get(RequestIDHeader), ctxID)
	}
}

func TestRequestIDMiddleware_ErrorEnvelopeUsesSameID(t *testing.T) {
	filter := newDevFilter()
	h := NewRequestIDMiddleware()(http.HandlerFunc(filter.NotFound))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := decodeError(t, w).RequestID; got != w.Header().Get(RequestIDHeader) {
		t.Errorf("requestId = %q, header = %q", got, w.Header().Get(RequestIDHeader))
	}
}
