// Package keepalive はデータベース接続のキープアライブジョブを提供する。
// 一定間隔でSELECT 1を発行し、アイドル時の接続切断とコールドスタートを防ぐ。
// 失敗はログとメトリクスに記録するのみで、呼び出し元には伝播しない。
package keepalive

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cvision/cvision-api/internal/database"
	"github.com/cvision/cvision-api/internal/metrics"
)

// DefaultInterval はキープアライブの既定の実行間隔。
const DefaultInterval = 4 * time.Minute

// ErrPingFailed はキープアライブクエリが失敗した場合に返す。
var ErrPingFailed = errors.New("keep-alive ping failed")

// Pinger はデータベースへの往復時間を計測するインターフェース。
// *database.DB が実装する。
type Pinger interface {
	Ping(ctx context.Context) database.PingResult
}

// Job はデータベースのキープアライブジョブ。
type Job struct {
	db       Pinger
	logger   *slog.Logger
	recorder metrics.Recorder
	Interval time.Duration
}

// NewJob は新しいJobを生成する。intervalが0以下の場合はDefaultIntervalを使用する。
func NewJob(db Pinger, logger *slog.Logger, recorder metrics.Recorder, interval time.Duration) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Job{
		db:       db,
		logger:   logger,
		recorder: recorder,
		Interval: interval,
	}
}

// Ping はSELECT 1を1回発行し、その結果を返す。
func (j *Job) Ping(ctx context.Context) database.PingResult {
	return j.db.Ping(ctx)
}

// Run はキープアライブクエリを1回実行する。
// 成功はdebug、失敗はwarnで記録し、失敗時はErrPingFailedを返す。
func (j *Job) Run(ctx context.Context) error {
	result := j.Ping(ctx)
	j.recorder.RecordKeepAlive(result.Success)

	if !result.Success {
		j.logger.Warn("database keep-alive ping failed",
			slog.Float64("duration_ms", float64(result.ResponseTime.Microseconds())/1000.0),
		)
		return ErrPingFailed
	}

	j.logger.Debug("database keep-alive ping successful",
		slog.Float64("duration_ms", float64(result.ResponseTime.Microseconds())/1000.0),
	)
	return nil
}

// Start はInterval間隔のティッカーでキープアライブを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	j.logger.Info("database keep-alive started", slog.Duration("interval", j.Interval))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("database keep-alive stopped")
			return
		case <-ticker.C:
			// 失敗はRun内で記録済み
			_ = j.Run(ctx)
		}
	}
}
