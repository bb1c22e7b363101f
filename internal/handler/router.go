package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/secondchance/internal/metrics"
	"github.com/hitoshi/secondchance/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier

	// サービス
	AuthService   AuthServiceInterface
	ItemService   ItemServiceInterface
	SearchService SearchServiceInterface
	ItemConfig    ItemHandlerConfig

	// 画像配信
	UploadDir string

	// メトリクス
	Metrics  middleware.HTTPMetricsRecorder
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Metrics
//
// 認証エンドポイント（/api/auth/*）はIPごとの専用レート制限、
// 品目・検索エンドポイントは一般レート制限を適用する。
// PUT /api/auth/update のみBearerトークン検証を必須とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	itemHandler := NewItemHandler(deps.ItemService, deps.ItemConfig)
	searchHandler := NewSearchHandler(deps.SearchService)

	// --- 運用エンドポイント ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証エンドポイント ---
	// パスワード総当たり対策として専用レート制限を適用する
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// 更新はBearerトークンから取り出したアイデンティティのみを信頼する
		r.With(middleware.NewAuthMiddleware(deps.TokenVerifier)).Put("/update", authHandler.Update)
	})

	// --- 品目・検索エンドポイント ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/secondchance/items", func(r chi.Router) {
			r.Get("/", itemHandler.ListItems)
			r.Post("/", itemHandler.CreateItem)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", itemHandler.GetItem)
				r.Put("/", itemHandler.UpdateItem)
				r.Delete("/", itemHandler.DeleteItem)
			})
		})

		r.Get("/api/secondchance/search", searchHandler.Search)
	})

	// アップロード済み画像の配信
	if deps.UploadDir != "" {
		fs := http.StripPrefix("/images/", http.FileServer(http.Dir(deps.UploadDir)))
		r.Method(http.MethodGet, "/images/*", fs)
	}

	return r
}

// newHealthHandler はストアへの疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
