package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/attendtrack/internal/metrics"
	"github.com/hitoshi/attendtrack/internal/middleware"
	"github.com/hitoshi/attendtrack/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier      middleware.TokenVerifier
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector
	TrustProxy         bool

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// コース
	CourseService CourseServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → (RealIP) → Logging → Metrics → Recovery → SecurityHeaders → CORS
//	  → OptionalAuth → RateLimit(General)
//
// 認証必須のルートはRequireAuthと所有者ガード（RequireOwnedResource / RequireSelf）を個別に適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r.Use(middleware.NewRequestIDMiddleware())
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	// レート制限をユーザー単位で行うため、トークンがあれば先に識別しておく
	r.Use(middleware.NewOptionalAuthMiddleware(deps.TokenVerifier))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteAPIError(w, model.NewRouteNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteAPIError(w, model.NewMethodNotAllowedError())
	})

	healthHandler := NewHealthHandler(deps.HealthChecker)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, collector)
	courseHandler := NewCourseHandler(deps.CourseService)
	requireAuth := middleware.NewRequireAuthMiddleware(deps.TokenVerifier)

	// --- 運用 ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証 ---
	r.Route("/auth", func(r chi.Router) {
		// POST /auth/google - ログイン（ログイン専用レート制限を追加）
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/google", authHandler.GoogleLogin)
		r.Get("/me", authHandler.Me)
		r.Post("/logout", authHandler.Logout)
	})

	// --- コース管理 ---
	r.Route("/attendance/{"+middleware.UserIDParam+"}", func(r chi.Router) {
		// 作成と一覧は認証不要
		r.Post("/", courseHandler.Create)
		r.Get("/", courseHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			// ユーザー単位の一括操作は本人のみ
			r.With(middleware.RequireSelf()).Delete("/", courseHandler.DeleteAll)
			r.With(middleware.RequireSelf()).Post("/reset", courseHandler.ResetAll)

			// コース単位の操作は所有者本人のみ
			r.Route("/{"+CourseIDParam+"}", func(r chi.Router) {
				r.Use(courseHandler.OwnershipGuard())

				r.Get("/", courseHandler.Get)
				r.Put("/", courseHandler.Update)
				r.Delete("/", courseHandler.Delete)
				r.Post("/reset", courseHandler.Reset)
			})
		})
	})

	return r
}
