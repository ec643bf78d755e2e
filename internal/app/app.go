package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/attendtrack/internal/auth"
	"github.com/hitoshi/attendtrack/internal/calendar"
	"github.com/hitoshi/attendtrack/internal/config"
	"github.com/hitoshi/attendtrack/internal/course"
	"github.com/hitoshi/attendtrack/internal/database"
	"github.com/hitoshi/attendtrack/internal/handler"
	"github.com/hitoshi/attendtrack/internal/logger"
	"github.com/hitoshi/attendtrack/internal/metrics"
	"github.com/hitoshi/attendtrack/internal/middleware"
	"github.com/hitoshi/attendtrack/internal/repository"
	"github.com/hitoshi/attendtrack/internal/security"
)

const (
	defaultHealthcheckPort = "4000"
	shutdownTimeout        = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = defaultHealthcheckPort
		}
		return runHealthcheck(port)
	}

	var migrateOpts MigrateOptions
	if cmd == CommandMigrate {
		opts, err := ParseMigrateArgs(args[1:])
		if err != nil {
			return err
		}
		migrateOpts = opts
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("dev_mode", cfg.DevMode),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, migrateOpts)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで組み立てた依存関係のうち、シャットダウン時に後処理が必要なものを保持する。
type server struct {
	handler     http.Handler
	notifier    *calendar.Notifier
	rateLimiter *middleware.RateLimiter
}

// newServer は全依存関係をワイヤリングし、HTTPハンドラーを構築する。
// ctxはGoogleの公開鍵取得に使用されるため、プロセスの生存期間と同じものを渡す。
func newServer(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*server, error) {
	// 1. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. 認証
	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.SessionTTL)
	provider := auth.NewGoogleOAuthProvider(ctx, auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
	})
	if !provider.Configured() {
		slog.Warn("GOOGLE_CLIENT_SECRET is not set; Google login and calendar notifications are disabled")
	}
	authService := auth.NewService(provider, userRepo, tokens)

	// 4. カレンダー通知とコース
	notifier, err := calendar.NewNotifier(userRepo, calendar.Config{
		OAuth2:   auth.NewOAuth2Config(cfg.GoogleClientID, cfg.GoogleClientSecret, ""),
		TimeZone: cfg.CalendarTimeZone,
		Timeout:  cfg.CalendarTimeout,
	}, collector)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar notifier: %w", err)
	}
	courseService := course.NewService(courseRepo, notifier, security.NewTextSanitizer(), collector)

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)

	deps := &handler.RouterDeps{
		TokenVerifier:      tokens,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		Logger:             slog.Default(),
		Metrics:            collector,
		TrustProxy:         cfg.TrustProxy,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			SessionMaxAge: int(cfg.SessionTTL.Seconds()),
		},

		CourseService: courseService,
	}

	return &server{
		handler:     handler.NewRouter(deps),
		notifier:    notifier,
		rateLimiter: rateLimiter,
	}, nil
}

// shutdown は実行中のカレンダー通知の完了を待ち、レートリミッターを停止する。
func (s *server) shutdown(ctx context.Context) error {
	defer s.rateLimiter.Stop()

	if err := s.notifier.Wait(ctx); err != nil {
		return fmt.Errorf("calendar notifications did not finish: %w", err)
	}
	return nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 依存関係のワイヤリング
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	srv, err := newServer(appCtx, cfg, db)
	if err != nil {
		return err
	}

	// 3. HTTPサーバーの起動
	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		srv.rateLimiter.Stop()
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := srv.shutdown(ctx); err != nil {
		slog.Warn("shutdown incomplete", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// opts.Downが指定された場合はopts.Steps分だけロールバックする。
func runMigrate(cfg *config.Config, opts MigrateOptions) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Bool("down", opts.Down),
		slog.Int("steps", opts.Steps),
	)

	if opts.Down {
		if err := database.RollbackMigrations(cfg.DatabaseURL, opts.Steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back successfully")
		return nil
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
