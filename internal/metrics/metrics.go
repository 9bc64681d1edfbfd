// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証試行の結果ラベル
const (
	AuthResultSuccess      = "success"
	AuthResultCreated      = "created"
	AuthResultMissingToken = "missing_token"
	AuthResultInvalidToken = "invalid_token"
	AuthResultError        = "error"
)

// Recorder はメトリクス記録のインターフェース。
// ミドルウェア、ヘルスチェック、キープアライブから利用する。
type Recorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	RecordAuthAttempt(result string)
	RecordDBPing(duration time.Duration, success bool)
	RecordKeepAlive(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	authAttempts  *prometheus.CounterVec
	dbPing        prometheus.Histogram
	keepAliveRuns *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cvision_http_requests_total",
			Help: "HTTPリクエスト数（メソッド・ルート・ステータス別）",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cvision_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cvision_auth_attempts_total",
			Help: "認証試行数（結果別）",
		}, []string{"result"}),
		dbPing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cvision_db_ping_duration_seconds",
			Help:    "データベースへのSELECT 1の往復時間（秒）",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		keepAliveRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cvision_db_keepalive_total",
			Help: "キープアライブクエリの実行数（結果別）",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.authAttempts,
		c.dbPing,
		c.keepAliveRuns,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはパスではなくルートパターンを渡す（ラベルの濃度を抑えるため）。
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthAttempt は認証試行の結果を記録する。
func (c *Collector) RecordAuthAttempt(result string) {
	c.authAttempts.WithLabelValues(result).Inc()
}

// RecordDBPing は成功したデータベースpingの往復時間を記録する。
func (c *Collector) RecordDBPing(duration time.Duration, success bool) {
	if success {
		c.dbPing.Observe(duration.Seconds())
	}
}

// RecordKeepAlive はキープアライブの結果を記録する。
func (c *Collector) RecordKeepAlive(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.keepAliveRuns.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないRecorder。メトリクスを使わないテストや構成で使用する。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordAuthAttempt(string)                             {}
func (Nop) RecordDBPing(time.Duration, bool)                     {}
func (Nop) RecordKeepAlive(bool)                                 {}
