package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cvision/cvision-api/internal/config"
	"github.com/cvision/cvision-api/internal/metrics"
	"github.com/cvision/cvision-api/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Config *config.Config
	Logger *slog.Logger

	// ミドルウェア依存
	Filter        *middleware.ExceptionFilter
	Authenticator middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Recorder      metrics.Recorder

	// /metricsで公開するハンドラー。nilの場合は登録しない
	MetricsHandler http.Handler

	// ヘルスチェック
	Database  DatabaseHealth
	StartedAt time.Time

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// グローバルミドルウェアの実行順序:
//
//	RequestID → RealIP → Recovery → SecurityHeaders → CORS → Metrics → Logging
//
// /users/* は AuthGuard → RateLimit を通過したリクエストのみ処理する。
// それ以外のルートは公開ルート。
func NewRouter(deps *RouterDeps) http.Handler {
	cfg := deps.Config
	filter := deps.Filter
	recorder := deps.Recorder
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(filter))
	r.Use(middleware.NewSecurityHeadersMiddleware(cfg.IsProduction()))
	r.Use(middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middleware.NewMetricsMiddleware(recorder))
	if cfg.EnableRequestLogging || cfg.IsDevelopment() {
		r.Use(middleware.NewLoggingMiddleware(logger))
	}

	r.NotFound(filter.NotFound)
	r.MethodNotAllowed(filter.MethodNotAllowed)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	healthHandler := NewHealthHandler(deps.Database, cfg, recorder, deps.StartedAt)
	userHandler := NewUserHandler(deps.UserService)
	h := filter.HandlerFunc

	base := cfg.APIBasePath()
	if base == "" {
		base = "/"
	}

	r.Route(base, func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Route("/health", func(r chi.Router) {
			r.Get("/", h(healthHandler.Health))
			r.Get("/detailed", h(healthHandler.Detailed))
			r.Get("/performance", h(healthHandler.Performance))
		})

		if cfg.EnableTestRoutes {
			var te TestErrorHandler
			r.Route("/test/error", func(r chi.Router) {
				r.Get("/500", h(te.InternalError))
				r.Get("/400", h(te.BadRequest))
				r.Get("/404", h(te.NotFound))
				r.Get("/custom", h(te.Custom))
			})
		}

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthGuard(deps.Authenticator, filter, recorder))
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware())
			}

			r.Route("/users", func(r chi.Router) {
				r.Get("/profile", h(userHandler.GetProfile))
				r.Put("/profile", h(userHandler.UpdateProfile))
				r.Get("/onboarding-status", h(userHandler.GetOnboardingStatus))
				r.Put("/complete-onboarding", h(userHandler.CompleteOnboarding))
				r.Get("/stats", h(userHandler.GetStats))
			})
		})
	})

	return r
}
