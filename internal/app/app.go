// Package app はアプリケーションの初期化、依存関係のワイヤリング、サブコマンドの実行を提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cvision/cvision-api/internal/auth"
	"github.com/cvision/cvision-api/internal/config"
	"github.com/cvision/cvision-api/internal/database"
	"github.com/cvision/cvision-api/internal/firebase"
	"github.com/cvision/cvision-api/internal/handler"
	"github.com/cvision/cvision-api/internal/logger"
	"github.com/cvision/cvision-api/internal/metrics"
	"github.com/cvision/cvision-api/internal/middleware"
	"github.com/cvision/cvision-api/internal/repository"
	"github.com/cvision/cvision-api/internal/security"
	"github.com/cvision/cvision-api/internal/user"
	"github.com/cvision/cvision-api/internal/worker/keepalive"
)

const (
	shutdownTimeout     = 30 * time.Second
	outboundHTTPTimeout = 10 * time.Second
)

// Init はアプリケーションの初期化を行う。
// .envを読み込み、JSON構造化ログをセットアップしてから環境変数のConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(healthcheckURL(os.Getenv))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.Env),
		slog.String("port", cfg.Port),
		slog.String("base_path", cfg.APIBasePath()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// connectDatabase はlib/pqで接続プールを開き、GORMクライアントとして接続を確認する。
// 接続確認に失敗した場合は起動失敗としてエラーを返す。
func connectDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	sqlDB, err := database.Open(cfg.DatabaseDSN(), database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, database.NewPostgresDialector(sqlDB), database.Options{
		Logger:        slog.Default(),
		HealthTimeout: cfg.DBHealthTimeout,
		LogQueries:    cfg.IsDevelopment(),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", maskDatabaseURL(cfg.DatabaseDSN()), err)
	}
	return db, nil
}

// newFirebaseClient はIDプロバイダクライアントを生成する。
// 本番環境ではプライベートアドレスへの接続を拒否するHTTPクライアントを使う。
// 資格情報がない場合は未初期化のクライアントを返し、認証は常に失敗する。
func newFirebaseClient(ctx context.Context, cfg *config.Config) *firebase.Client {
	httpClient := &http.Client{Timeout: outboundHTTPTimeout}
	if cfg.IsProduction() {
		httpClient = security.NewURLGuard().NewSafeClient(outboundHTTPTimeout)
	}
	return firebase.NewClient(ctx, firebase.Config{
		CredentialsFile: cfg.FirebaseCredentialsFile,
		ProjectID:       cfg.FirebaseProjectID,
		ClientEmail:     cfg.FirebaseClientEmail,
		PrivateKey:      cfg.FirebasePrivateKey,
		HTTPClient:      httpClient,
	}, slog.Default())
}

// newMetricsRegistry はGo/プロセスの標準コレクターを登録したレジストリとアプリケーションのCollectorを返す。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	startedAt := time.Now()

	// 1. DB接続
	db, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	reg, collector := newMetricsRegistry()

	// 3. リポジトリの初期化
	userRepo := repository.NewGormUserRepo(db.Gorm())
	profileRepo := repository.NewGormProfileRepo(db.Gorm())

	// 4. ドメインサービスの初期化
	fbClient := newFirebaseClient(ctx, cfg)
	authService := auth.NewService(fbClient, userRepo, slog.Default())
	userService := user.NewService(
		userRepo, profileRepo, repository.NewGormStore(db),
		security.NewProfileSanitizer(), security.NewURLGuard(),
		slog.Default(),
	)

	// 5. ミドルウェア依存の構築
	filter := middleware.NewExceptionFilter(cfg.Env, cfg.LogLevel, slog.Default())
	limiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigFromWindow(cfg.RateLimitWindow, cfg.RateLimitMaxRequests),
		filter,
	)
	defer limiter.Stop()

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Config:         cfg,
		Logger:         slog.Default(),
		Filter:         filter,
		Authenticator:  authService,
		RateLimiter:    limiter,
		Recorder:       collector,
		MetricsHandler: metrics.Handler(reg),
		Database:       db,
		StartedAt:      startedAt,
		UserService:    userService,
	})

	// 7. 開発環境ではキープアライブを起動してコールドスタートを防ぐ
	if cfg.IsDevelopment() {
		job := keepalive.NewJob(db, slog.Default(), collector, cfg.KeepAliveInterval)
		go job.Start(ctx)
	}

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("health", cfg.APIBasePath()+"/health"),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、キープアライブジョブをctxがキャンセルされるまで実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, collector := newMetricsRegistry()
	job := keepalive.NewJob(db, slog.Default(), collector, cfg.KeepAliveInterval)

	// 起動直後に1回実行
	if err := job.Run(ctx); err != nil {
		slog.Warn("initial keep-alive failed", slog.String("error", err.Error()))
	}

	// キープアライブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	dsn := cfg.DatabaseDSN()
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(dsn)),
	)

	status, err := database.RunMigrations(dsn)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("dirty", status.Dirty),
	)
	return nil
}

// healthcheckURL は環境変数からローカルのヘルスチェックURLを組み立てる。
func healthcheckURL(getenv func(string) string) string {
	valueOr := func(key, fallback string) string {
		if v := strings.Trim(getenv(key), "/"); v != "" {
			return v
		}
		return fallback
	}
	return fmt.Sprintf("http://localhost:%s/%s/%s/health",
		valueOr("PORT", "3000"), valueOr("API_PREFIX", "api"), valueOr("API_VERSION", "v1"))
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(target string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
