package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret はDEV_MODE時にJWT_SECRET未設定の場合に使用する開発用の署名鍵。
// 本番環境では使用しない。
const DevJWTSecret = "dev-secret"

// defaultAllowedOrigins はFRONTEND_URLに加えて常に許可するオリジン。
var defaultAllowedOrigins = []string{
	"http://localhost:5173",
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string // 未設定の場合は /auth/google が500を返す

	// Session
	JWTSecret  string
	SessionTTL time.Duration
	DevMode    bool

	// Calendar
	CalendarTimeZone string
	CalendarTimeout  time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string
	TrustProxy bool // X-Forwarded-For / X-Real-IP からクライアントIPを取得する

	// CORS
	CORSAllowedOrigins []string
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.DevMode = getEnvBool("DEV_MODE", false)
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if cfg.DevMode {
			slog.Warn("JWT_SECRET is not set; using the development signing secret")
			cfg.JWTSecret = DevJWTSecret
		} else {
			missing = append(missing, "JWT_SECRET")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 30*time.Minute)
	cfg.CalendarTimeZone = getEnvString("CALENDAR_TIME_ZONE", "Asia/Kolkata")
	cfg.CalendarTimeout = getEnvDuration("CALENDAR_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.ServerPort = getEnvString("PORT", "4000")
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", false)
	cfg.CORSAllowedOrigins = allowedOrigins(os.Getenv("FRONTEND_URL"), os.Getenv("CORS_ALLOWED_ORIGINS"))

	return cfg, nil
}

// allowedOrigins はFRONTEND_URL、CORS_ALLOWED_ORIGINS（カンマ区切り）、既定値を重複なく結合する。
func allowedOrigins(frontendURL, extra string) []string {
	var origins []string
	seen := make(map[string]bool)
	add := func(o string) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || seen[o] {
			return
		}
		seen[o] = true
		origins = append(origins, o)
	}

	add(frontendURL)
	for _, o := range strings.Split(extra, ",") {
		add(o)
	}
	for _, o := range defaultAllowedOrigins {
		add(o)
	}
	return origins
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
