package handler

import (
	"context"
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/cvision/cvision-api/internal/config"
	"github.com/cvision/cvision-api/internal/database"
	"github.com/cvision/cvision-api/internal/metrics"
	"github.com/cvision/cvision-api/internal/middleware"
)

const (
	serviceName    = "CVision API"
	serviceVersion = "1.0.0"

	// データベース応答時間の評価しきい値
	latencyGood = 100 * time.Millisecond
	latencySlow = 500 * time.Millisecond
)

// DatabaseHealth はヘルスチェックが必要とするデータベース操作。
type DatabaseHealth interface {
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) database.PingResult
}

// HealthHandler はプロセスとデータベースの状態を返すハンドラー。
type HealthHandler struct {
	db        DatabaseHealth
	cfg       *config.Config
	recorder  metrics.Recorder
	startedAt time.Time
	now       func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。startedAtはuptimeの起点。
func NewHealthHandler(db DatabaseHealth, cfg *config.Config, recorder metrics.Recorder, startedAt time.Time) *HealthHandler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &HealthHandler{
		db:        db,
		cfg:       cfg,
		recorder:  recorder,
		startedAt: startedAt,
		now:       time.Now,
	}
}

type healthResponse struct {
	Status      string  `json:"status"`
	Service     string  `json:"service"`
	Timestamp   string  `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	Environment string  `json:"environment"`
	Version     string  `json:"version"`
	Database    string  `json:"database"`
}

type detailedHealthResponse struct {
	healthResponse
	Services             servicesStatus        `json:"services"`
	Configuration        configurationSummary  `json:"configuration"`
	System               *systemInfo           `json:"system,omitempty"`
	EnvironmentVariables *environmentVariables `json:"environment_variables,omitempty"`
}

type servicesStatus struct {
	API       string `json:"api"`
	Database  string `json:"database"`
	AIService string `json:"aiService"`
}

type configurationSummary struct {
	Port       string `json:"port"`
	APIPrefix  string `json:"apiPrefix"`
	APIVersion string `json:"apiVersion"`
	LogLevel   string `json:"logLevel"`
	RateLimit  struct {
		WindowMs    int64 `json:"windowMs"`
		MaxRequests int   `json:"maxRequests"`
	} `json:"rateLimit"`
	Upload struct {
		MaxFileSize  int64    `json:"maxFileSize"`
		AllowedTypes []string `json:"allowedTypes"`
	} `json:"upload"`
}

type systemInfo struct {
	GoVersion    string     `json:"goVersion"`
	Platform     string     `json:"platform"`
	Architecture string     `json:"architecture"`
	Goroutines   int        `json:"goroutines"`
	NumCPU       int        `json:"numCPU"`
	Memory       memoryInfo `json:"memory"`
}

// memoryInfo の各値はMB単位。
type memoryInfo struct {
	Used   float64 `json:"used"`
	Total  float64 `json:"total"`
	System float64 `json:"system"`
}

type environmentVariables struct {
	AIModelAPIURL        string `json:"aiModelApiUrl"`
	EnableRequestLogging bool   `json:"enableRequestLogging"`
}

type performanceResponse struct {
	Database struct {
		Connected    bool   `json:"connected"`
		ResponseTime int64  `json:"responseTime"`
		Status       string `json:"status"`
	} `json:"database"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// Health はプロセスの稼働状況とデータベース接続状態を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) error {
	middleware.WriteSuccess(w, r, http.StatusOK, h.basic(r.Context()))
	return nil
}

// Detailed は構成情報を含む詳細なヘルス情報を返す。
// 開発環境ではランタイム情報も含める。
// GET /health/detailed
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) error {
	base := h.basic(r.Context())

	resp := detailedHealthResponse{
		healthResponse: base,
		Services: servicesStatus{
			API:       "operational",
			Database:  base.Database,
			AIService: "not_configured",
		},
		Configuration: configurationSummary{
			Port:       h.cfg.Port,
			APIPrefix:  h.cfg.APIPrefix,
			APIVersion: h.cfg.APIVersion,
			LogLevel:   h.cfg.LogLevel,
		},
	}
	if h.cfg.AIModelAPIKey != "" {
		resp.Services.AIService = "configured"
	}
	resp.Configuration.RateLimit.WindowMs = h.cfg.RateLimitWindow.Milliseconds()
	resp.Configuration.RateLimit.MaxRequests = h.cfg.RateLimitMaxRequests
	resp.Configuration.Upload.MaxFileSize = h.cfg.UploadMaxFileSize
	resp.Configuration.Upload.AllowedTypes = h.cfg.UploadAllowedTypes

	if h.cfg.IsDevelopment() {
		resp.System = collectSystemInfo()
		resp.EnvironmentVariables = &environmentVariables{
			AIModelAPIURL:        h.cfg.AIModelAPIURL,
			EnableRequestLogging: h.cfg.EnableRequestLogging,
		}
	}

	middleware.WriteSuccess(w, r, http.StatusOK, resp)
	return nil
}

// Performance はデータベースの往復時間とその評価を返す。
// GET /health/performance
func (h *HealthHandler) Performance(w http.ResponseWriter, r *http.Request) error {
	ping := h.db.Ping(r.Context())
	h.recorder.RecordDBPing(ping.ResponseTime, ping.Success)

	var resp performanceResponse
	resp.Database.Connected = ping.Success
	resp.Database.ResponseTime = ping.ResponseTime.Milliseconds()
	resp.Database.Status = latencyStatus(ping)
	resp.Timestamp = middleware.Timestamp(h.now())
	resp.Uptime = h.uptime()

	middleware.WriteSuccess(w, r, http.StatusOK, resp)
	return nil
}

func (h *HealthHandler) basic(ctx context.Context) healthResponse {
	dbStatus := "disconnected"
	if h.db.IsHealthy(ctx) {
		dbStatus = "connected"
	}
	return healthResponse{
		Status:      "ok",
		Service:     serviceName,
		Timestamp:   middleware.Timestamp(h.now()),
		Uptime:      h.uptime(),
		Environment: h.cfg.Env,
		Version:     serviceVersion,
		Database:    dbStatus,
	}
}

// uptime は起動からの経過秒数を返す。
func (h *HealthHandler) uptime() float64 {
	return h.now().Sub(h.startedAt).Seconds()
}

// latencyStatus は応答時間をgood/slow/criticalに分類する。接続失敗はcritical。
func latencyStatus(ping database.PingResult) string {
	switch {
	case !ping.Success:
		return "critical"
	case ping.ResponseTime < latencyGood:
		return "good"
	case ping.ResponseTime < latencySlow:
		return "slow"
	default:
		return "critical"
	}
}

func collectSystemInfo() *systemInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &systemInfo{
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
		Goroutines:   runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		Memory: memoryInfo{
			Used:   toMB(ms.HeapAlloc),
			Total:  toMB(ms.HeapSys),
			System: toMB(ms.Sys),
		},
	}
}

// toMB はバイト数を小数点以下2桁のMBに変換する。
func toMB(b uint64) float64 {
	return math.Round(float64(b)/1024/1024*100) / 100
}
