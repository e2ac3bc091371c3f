package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
)

// HealthChecker はDB等の依存先の疎通確認を行う。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionManager    *scs.SessionManager
	UserDeserializer  middleware.UserDeserializer
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	TrustProxy        bool
	CSRF              middleware.CSRFConfig

	// 監視
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カート（CartMergerがnilの場合、ログイン時のゲストカート移行を行わない）
	CartService CartServiceInterface
	CartMerger  cart.Merger

	// ユーザー・カタログ
	UserService     UserServiceInterface
	CategoryService CategoryLister
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → (RealIP) → SecurityHeaders → CORS → Logging → scs.LoadAndSave → Principal → (CSRF)
//
// /health と /metrics はセッションを読み込まない。
// CSRF検証はJSON APIとログアウトに適用する。フォーム送信のローカルログインと
// IdPからリダイレクトされるOAuthルートは対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))

	// --- 監視用ルート ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.CartService, deps.CartMerger, deps.SessionManager, deps.Metrics, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.AuthService, deps.CartMerger, deps.SessionManager)
	cartHandler := NewCartHandler(deps.CartService, deps.SessionManager)
	categoryHandler := NewCategoryHandler(deps.CategoryService)

	// --- セッションを使うルート ---
	// ミドルウェアスタック: LoadAndSave → Principal
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionManager.LoadAndSave)
		r.Use(middleware.NewPrincipalMiddleware(deps.SessionManager, deps.UserDeserializer, deps.Metrics))

		loginLimit := func(next http.Handler) http.Handler { return next }
		if deps.RateLimiter != nil {
			loginLimit = deps.RateLimiter.LoginMiddleware()
		}

		csrf := middleware.NewCSRFMiddleware(deps.CSRF)

		r.Route("/api/auth", func(r chi.Router) {
			r.With(csrf).Get("/whoami", authHandler.WhoAmI)
			r.With(loginLimit).Post("/login/local", authHandler.LoginLocal)
			r.With(loginLimit).Get("/login/{strategy}", authHandler.LoginStrategy)
			r.With(csrf).Post("/logout", authHandler.Logout)
		})

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

		r.Group(func(r chi.Router) {
			r.Use(csrf)
			r.With(loginLimit).Post("/api/users", userHandler.Register)
			r.Post("/api/cart/items", cartHandler.AddItem)
			r.Get("/api/categories", categoryHandler.List)
		})
	})

	return r
}

// healthHandler はDBの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
