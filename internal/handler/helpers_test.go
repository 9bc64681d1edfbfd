package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cvision/cvision-api/internal/config"
	"github.com/cvision/cvision-api/internal/middleware"
	"github.com/cvision/cvision-api/internal/model"
)

func strPtr(s string) *string { return &s }

func newTestConfig(env string) *config.Config {
	return &config.Config{
		Env:                  env,
		Port:                 "3000",
		APIPrefix:            "api",
		APIVersion:           "v1",
		LogLevel:             "info",
		AIModelAPIURL:        "http://localhost:8000",
		RateLimitWindow:      15 * time.Minute,
		RateLimitMaxRequests: 100,
		UploadMaxFileSize:    10485760,
		UploadAllowedTypes:   []string{"application/pdf"},
		EnableTestRoutes:     env != config.EnvProduction,
	}
}

func newTestFilter(env string) *middleware.ExceptionFilter {
	return middleware.NewExceptionFilter(env, "info", slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
}

// withUser は認証ガードを通過した状態のリクエストを作る。
func withUser(req *http.Request, user *model.User) *http.Request {
	return req.WithContext(middleware.ContextWithUser(req.Context(), user, nil))
}

// envelope は成功・エラー両方のレスポンスを読み込むための汎用構造体。
type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Path       string          `json:"path"`
	Timestamp  string          `json:"timestamp"`
	RequestID  string          `json:"requestId"`
	Details    map[string]any  `json:"details"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return env
}

// decodeData はエンベロープのdataをvに読み込む。
func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v\nraw: %s", err, string(env.Data))
	}
}
