package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultHealthTimeout = 3 * time.Second
	defaultWarmUpQueries = 3
)

// Options はConnectの動作を調整する。
type Options struct {
	Logger        *slog.Logger
	HealthTimeout time.Duration // ヘルスチェッククエリの上限時間
	WarmUpQueries int           // 起動時に並列実行する軽量クエリの数。0以下で既定値、負数でスキップ
	LogQueries    bool          // 実行SQLをdebugレベルで記録する（開発環境向け）
}

// PingResult はデータベースへの往復時間の計測結果。
type PingResult struct {
	Success      bool
	ResponseTime time.Duration
}

// DB はGORMクライアントのライフサイクルを管理する。
// 接続確認、ウォームアップ、ヘルスチェック、トランザクション、切断を提供する。
type DB struct {
	gorm          *gorm.DB
	logger        *slog.Logger
	healthTimeout time.Duration
}

// NewPostgresDialector はlib/pqで開いた*sql.DBをGORMのPostgreSQLダイアレクタに渡す。
func NewPostgresDialector(sqlDB *sql.DB) gorm.Dialector {
	return postgres.New(postgres.Config{Conn: sqlDB})
}

// Connect はGORMクライアントを生成し、SELECT 1で接続を確認する。
// 接続確認に失敗した場合はエラーを返す（起動失敗として扱う）。
// 確認後にコネクションプールのウォームアップを行うが、その失敗は警告ログのみとする。
func Connect(ctx context.Context, dialector gorm.Dialector, opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	healthTimeout := opts.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = defaultHealthTimeout
	}

	// 接続確認はctxを尊重するselectOneで行う
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:               NewGormLogger(logger, opts.LogQueries),
		NowFunc:              func() time.Time { return time.Now().UTC() },
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize orm")
	}

	d := &DB{gorm: gdb, logger: logger, healthTimeout: healthTimeout}

	logger.Info("initializing database connection")
	start := time.Now()
	if err := d.selectOne(ctx); err != nil {
		logger.Error("database connection failed", slog.String("error", err.Error()))
		return nil, errors.Wrap(err, "database connection failed")
	}
	logger.Info("database connected",
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	n := opts.WarmUpQueries
	if n == 0 {
		n = defaultWarmUpQueries
	}
	if n > 0 {
		d.warmUp(ctx, n)
	}

	return d, nil
}

// New は既存のGORMクライアントをラップする。接続確認は行わない。
func New(gdb *gorm.DB, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{gorm: gdb, logger: logger, healthTimeout: defaultHealthTimeout}
}

// Gorm は内部のGORMクライアントを返す。
func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}

// warmUp は軽量クエリを並列実行してコネクションプールを温める。
func (d *DB) warmUp(ctx context.Context, n int) {
	d.logger.Info("warming up database connections", slog.Int("queries", n))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return d.selectOne(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		d.logger.Warn("connection warmup failed", slog.String("error", err.Error()))
		return
	}

	d.logger.Info("connection pool warmed up")
}

// IsHealthy はHealthTimeout以内にSELECT 1が成功するかを返す。
// 失敗はログに記録し、エラーとしては返さない。
func (d *DB) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, d.healthTimeout)
	defer cancel()

	if err := d.selectOne(ctx); err != nil {
		d.logger.Error("database health check failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Ping はSELECT 1の往復時間を計測する。
// IsHealthyと同じくHealthTimeoutを超えた場合は失敗として扱う。
func (d *DB) Ping(ctx context.Context) PingResult {
	ctx, cancel := context.WithTimeout(ctx, d.healthTimeout)
	defer cancel()

	start := time.Now()
	err := d.selectOne(ctx)
	elapsed := time.Since(start)
	if err != nil {
		d.logger.Error("database ping failed", slog.String("error", err.Error()))
		return PingResult{Success: false, ResponseTime: elapsed}
	}
	return PingResult{Success: true, ResponseTime: elapsed}
}

// Transaction はfnをトランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、そのエラーを返す。
func (d *DB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.gorm.WithContext(ctx).Transaction(fn)
}

// Close はコネクションプールを閉じる。
func (d *DB) Close() error {
	d.logger.Info("closing database connections")
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return errors.Wrap(err, "failed to access connection pool")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrap(err, "failed to close database")
	}
	d.logger.Info("database disconnected")
	return nil
}

func (d *DB) selectOne(ctx context.Context) error {
	var one int
	return d.gorm.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}
