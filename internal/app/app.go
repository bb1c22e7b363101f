// Package app はアプリケーションの初期化と起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/secondchance/internal/auth"
	"github.com/hitoshi/secondchance/internal/config"
	"github.com/hitoshi/secondchance/internal/database"
	"github.com/hitoshi/secondchance/internal/handler"
	"github.com/hitoshi/secondchance/internal/item"
	"github.com/hitoshi/secondchance/internal/logger"
	"github.com/hitoshi/secondchance/internal/metrics"
	"github.com/hitoshi/secondchance/internal/middleware"
	"github.com/hitoshi/secondchance/internal/repository"
	"github.com/hitoshi/secondchance/internal/security"
	"github.com/hitoshi/secondchance/internal/token"
	"github.com/hitoshi/secondchance/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envファイル（存在する場合）と環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envファイルの読み込み（存在しない場合は無視する）
	_ = godotenv.Load()

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

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
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3060"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("database", cfg.MongoDB),
	)

	switch cmd {
	case CommandEnsureIndexes:
		return runEnsureIndexes(cfg)
	case CommandServe:
		return runServe(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// MongoDB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. MongoDB接続（プロセスで1つのクライアントを生成して注入する）
	client, err := database.Connect(ctx, cfg.MongoURL)
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			slog.Error("failed to disconnect mongodb", slog.String("error", err.Error()))
		}
	}()

	slog.Info("database connection established")

	db := client.Database(cfg.MongoDB)

	// 2. インデックスの作成（emailユニーク制約が登録の一意性の最後の砦）
	if err := database.EnsureIndexes(ctx, db, cfg.MongoCollection); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	// 3. リポジトリの初期化
	userRepo := repository.NewMongoUserRepo(db)
	itemRepo := repository.NewMongoItemRepo(db, cfg.MongoCollection)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	issuer, err := token.New(token.Config{
		Secret: cfg.JWTSecret,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	hasher := auth.NewBcryptHasher()
	authService := auth.NewService(userRepo, hasher, issuer, collector)

	sanitizer := security.NewContentSanitizer()
	imageStore, err := item.NewDiskImageStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to create image store: %w", err)
	}
	itemService := item.NewService(itemRepo, sanitizer, imageStore, collector)

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		HealthChecker:     database.NewPinger(client),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter: middleware.NewRateLimiter(
			middleware.RateLimiterConfigFromLimits(cfg.RateLimitGeneral, cfg.RateLimitAuth),
		),
		TokenVerifier: issuer,

		AuthService:   authService,
		ItemService:   itemService,
		SearchService: itemService,
		ItemConfig: handler.ItemHandlerConfig{
			MaxUploadSize: cfg.MaxUploadSize,
		},

		UploadDir: cfg.UploadDir,

		Metrics:  collector,
		Gatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// 8. 孤児画像クリーンアップジョブをバックグラウンドで起動
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()

	cleanupJob := cleanup.NewCleanupJob(imageStore, itemRepo, slog.Default(), cfg.OrphanImageTTL)
	go runCleanupLoop(jobCtx, cleanupJob, cfg.CleanupInterval)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runCleanupLoop は孤児画像クリーンアップジョブを定期実行する。
// 起動直後に1回実行し、以降はintervalごとに実行する。
func runCleanupLoop(ctx context.Context, job *cleanup.CleanupJob, interval time.Duration) {
	if err := job.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job.Run(ctx); err != nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runEnsureIndexes はMongoDBのインデックス作成のみを実行して終了する。
func runEnsureIndexes(cfg *config.Config) error {
	ctx := context.Background()

	client, err := database.Connect(ctx, cfg.MongoURL)
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	if err := database.EnsureIndexes(ctx, client.Database(cfg.MongoDB), cfg.MongoCollection); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	slog.Info("indexes ensured successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
