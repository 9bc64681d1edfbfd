package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold を超えたクエリは警告ログに記録する。
const slowQueryThreshold = 200 * time.Millisecond

// GormLogger はGORMのログをslogに転送する。
type GormLogger struct {
	logger     *slog.Logger
	level      gormlogger.LogLevel
	logQueries bool
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger はslogに出力するGORMロガーを生成する。
// logQueriesがtrueの場合は全クエリをdebugレベルで記録し、
// falseの場合はエラーのみを記録する。
func NewGormLogger(logger *slog.Logger, logQueries bool) *GormLogger {
	level := gormlogger.Error
	if logQueries {
		level = gormlogger.Info
	}
	return &GormLogger{logger: logger, level: level, logQueries: logQueries}
}

// LogMode はログレベルを変更したコピーを返す。
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info は情報ログを出力する。
func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Warn は警告ログを出力する。
func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Error はエラーログを出力する。
func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Trace はクエリ実行結果を記録する。
// レコード未検出はエラーとして扱わない。
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.logger.ErrorContext(ctx, "database query failed",
			slog.String("error", err.Error()),
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Float64("duration_ms", float64(elapsed.Microseconds())/1000.0),
		)
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger.WarnContext(ctx, "slow database query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Float64("duration_ms", float64(elapsed.Microseconds())/1000.0),
		)
	case l.logQueries && l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.DebugContext(ctx, "database query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Float64("duration_ms", float64(elapsed.Microseconds())/1000.0),
		)
	}
}
