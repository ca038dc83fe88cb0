package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/greetbot/internal/metrics"
	"github.com/hitoshi/greetbot/internal/middleware"
)

// HealthChecker は依存サービスの疎通確認を行う。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionDecoder middleware.SessionDecoder
	Cookie         middleware.CookieConfig
	TrustProxy     bool
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector

	// レート制限（nilなら無効）
	AuthorizeLimiter *middleware.RateLimiter
	UpdateLimiter    *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface

	// コンソール
	ConsoleService ConsoleServiceInterface

	// 運用エンドポイント（nilなら登録しない）
	Health          HealthChecker
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → ClientIP → SecurityHeaders → MethodOverride → Session → Logging
//
// コンソール（/）はさらに RequireSession → CSRF を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewClientIPMiddleware(deps.TrustProxy))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMethodOverrideMiddleware())
	r.Use(middleware.NewSessionMiddleware(deps.SessionDecoder, deps.Cookie))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookie)
	consoleHandler := NewConsoleHandler(deps.ConsoleService)

	// --- 運用エンドポイント ---
	if deps.Health != nil {
		r.Get("/health", healthHandler(deps.Health))
	}
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認可フロー ---
	r.With(limit(deps.AuthorizeLimiter, middleware.ByClientIP)).Get("/authorize", authHandler.Authorize)
	r.Get("/try_authorize", authHandler.TryAuthorize)

	// --- 管理コンソール ---
	// ミドルウェアスタック: RequireSession → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession)
		r.Use(middleware.NewCSRFMiddleware(deps.Cookie))

		r.Get("/", consoleHandler.Index)
		r.With(limit(deps.UpdateLimiter, middleware.ByUserID)).Put("/", consoleHandler.Update)
	})

	return r
}

// limit はレートリミッターが未設定なら素通しのミドルウェアを返す。
func limit(rl *middleware.RateLimiter, key middleware.KeyFunc) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware(key)
}

// healthHandler はDBの疎通を確認して200または503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := checker.PingContext(ctx); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			status, code = "unavailable", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
