package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/greetbot/internal/auth"
	"github.com/hitoshi/greetbot/internal/bot"
	"github.com/hitoshi/greetbot/internal/config"
	"github.com/hitoshi/greetbot/internal/database"
	"github.com/hitoshi/greetbot/internal/greeting"
	"github.com/hitoshi/greetbot/internal/guild"
	"github.com/hitoshi/greetbot/internal/handler"
	"github.com/hitoshi/greetbot/internal/logger"
	"github.com/hitoshi/greetbot/internal/metrics"
	"github.com/hitoshi/greetbot/internal/middleware"
	"github.com/hitoshi/greetbot/internal/repository"
	"github.com/hitoshi/greetbot/internal/worker/cleanup"
)

const (
	dbConnectTimeout = 5 * time.Second
	shutdownTimeout  = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	_ = godotenv.Load()

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// stateStore はOAuth stateトークンの保存先と、その後始末をまとめたもの。
type stateStore struct {
	repo    repository.StateRepository
	sweeper repository.ExpiredStateSweeper // 期限切れの掃除が必要な場合のみ非nil
	close   func()
}

// newStateStore は設定に応じてstateトークンの保存先を構築する。
func newStateStore(ctx context.Context, cfg *config.Config, db *sql.DB) (*stateStore, error) {
	switch cfg.StateStore {
	case config.StateStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")

		return &stateStore{
			repo:  repository.NewRedisStateRepo(client, cfg.StateTTL),
			close: func() { client.Close() },
		}, nil

	case config.StateStoreMemory:
		slog.Warn("using in-memory state store; states are lost on restart and not shared between replicas")
		return &stateStore{
			repo:  repository.NewMemoryStateRepo(cfg.StateTTL, cfg.StateSweepInterval),
			close: func() {},
		}, nil

	default:
		repo := repository.NewPostgresStateRepo(db, cfg.StateTTL)
		return &stateStore{repo: repo, sweeper: repo, close: func() {}}, nil
	}
}

// runServe はHTTPサーバー、Discordゲートウェイ、stateクリーンアップを起動する。
// いずれかが失敗するか、ctxがキャンセルされる（SIGINT/SIGTERM）とすべてを停止する。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.OpenAndPing(ctx, cfg.DatabaseURL, database.DefaultPoolConfig(), dbConnectTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. リポジトリの初期化
	states, err := newStateStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer states.close()
	greetingRepo := repository.NewPostgresGreetingRepo(db)

	// 4. Discordクライアントの初期化
	session, err := bot.NewSession(cfg.DiscordBotToken)
	if err != nil {
		return err
	}
	directory := guild.NewDiscordDirectory(session)

	// 5. ドメインサービスの初期化
	oauthProvider := auth.NewDiscordOAuthProvider(auth.DiscordOAuthConfig{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURL:  cfg.RedirectURL,
		AuthorizeURL: cfg.DiscordAuthorizeURL,
		APIBaseURL:   cfg.DiscordAPIBaseURL,
		Timeout:      cfg.OAuthTimeout,
	})
	codec := auth.NewSessionCodec([]byte(cfg.SessionSecret), time.Duration(cfg.SessionMaxAge)*time.Second)
	authService := auth.NewService(oauthProvider, states.repo, codec, collector)
	greetingService := greeting.NewService(greetingRepo, directory, collector)

	// 6. ルーターの構築
	authorizeLimiter := middleware.NewRateLimiter("authorize", middleware.PerMinute(cfg.RateLimitAuthorize))
	defer authorizeLimiter.Stop()
	updateLimiter := middleware.NewRateLimiter("update", middleware.PerMinute(cfg.RateLimitUpdate))
	defer updateLimiter.Stop()

	cookie := middleware.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}
	router := handler.NewRouter(&handler.RouterDeps{
		SessionDecoder:   codec,
		Cookie:           cookie,
		TrustProxy:       cfg.TrustProxy,
		Logger:           slog.Default(),
		Metrics:          collector,
		AuthorizeLimiter: authorizeLimiter,
		UpdateLimiter:    updateLimiter,
		AuthService:      authService,
		ConsoleService:   greetingService,
		Health:           db,
		MetricsGatherer:  reg,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 7. 各コンポーネントの起動
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if states.sweeper != nil {
		job := cleanup.NewCleanupJob(states.sweeper, cfg.StateTTL, slog.Default(), collector)
		eg.Go(func() error {
			job.Start(egCtx, cfg.StateSweepInterval)
			return nil
		})
	}

	if cfg.GatewayEnabled {
		greeter := bot.NewGreeter(greetingRepo, bot.NewSessionSender(session), collector)
		gateway := bot.NewGateway(session, greeter)
		eg.Go(func() error {
			return gateway.Run(egCtx)
		})
	} else {
		slog.Info("gateway disabled; member join greetings will not be sent")
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	slog.Info("greetbot stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
