package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// timestampLayout はレスポンスのtimestampの形式（ミリ秒精度のUTC ISO 8601）。
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// SuccessEnvelope は成功レスポンスの統一フォーマット。
type SuccessEnvelope struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
}

// ErrorEnvelope はエラーレスポンスの統一フォーマット。
// stack・details・environmentは開発環境でのみ付与される（detailsは本番でも要約を付与することがある）。
type ErrorEnvelope struct {
	Status      string `json:"status"`
	StatusCode  int    `json:"statusCode"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	Path        string `json:"path"`
	RequestID   string `json:"requestId"`
	Stack       string `json:"stack,omitempty"`
	Details     any    `json:"details,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// WriteSuccess はdataを成功エンベロープに包んで書き込む。
func WriteSuccess(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	writeJSON(w, statusCode, SuccessEnvelope{
		Status:     "success",
		StatusCode: statusCode,
		Message:    "Success",
		Data:       data,
		Timestamp:  Timestamp(time.Now()),
		Path:       r.URL.RequestURI(),
	})
}

// Timestamp はレスポンスに埋め込む時刻文字列を返す。
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", slog.String("error", err.Error()))
	}
}
