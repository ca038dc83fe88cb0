package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DeployMode はリダイレクトURIの選択に使う配置モード。
type DeployMode string

const (
	// DeployModeLocal はローカル開発環境。
	DeployModeLocal DeployMode = "local"
	// DeployModeDeploy は本番環境。
	DeployModeDeploy DeployMode = "deploy"
)

// StateStore はOAuth stateトークンの保存先。
type StateStore string

const (
	StateStorePostgres StateStore = "postgres"
	StateStoreRedis    StateStore = "redis"
	StateStoreMemory   StateStore = "memory"
)

const (
	defaultDiscordAPIBaseURL   = "https://discord.com/api/v10"
	defaultDiscordAuthorizeURL = "https://discord.com/oauth2/authorize"

	// minSessionSecretLength はHS256の鍵として最低限必要なバイト数。
	minSessionSecretLength = 32
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Discord
	DiscordClientID     string
	DiscordClientSecret string
	DiscordBotToken     string
	DiscordAPIBaseURL   string
	DiscordAuthorizeURL string

	// DeployModeに応じて起動時に1回だけ解決したリダイレクトURI
	DeployMode  DeployMode
	RedirectURL string

	// OAuth state
	StateStore         StateStore
	RedisURL           string
	StateTTL           time.Duration
	StateSweepInterval time.Duration
	OAuthTimeout       time.Duration

	// Session
	SessionSecret string
	SessionMaxAge int

	// Rate Limit（req/min）
	RateLimitAuthorize int
	RateLimitUpdate    int

	// Gateway
	GatewayEnabled bool

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string
	TrustProxy bool

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.DiscordClientID = os.Getenv("DISCORD_CLIENT_ID")
	if cfg.DiscordClientID == "" {
		missing = append(missing, "DISCORD_CLIENT_ID")
	}

	cfg.DiscordClientSecret = os.Getenv("DISCORD_CLIENT_SECRET")
	if cfg.DiscordClientSecret == "" {
		missing = append(missing, "DISCORD_CLIENT_SECRET")
	}

	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	if cfg.DiscordBotToken == "" {
		missing = append(missing, "DISCORD_BOT_TOKEN")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	// リダイレクトURIは配置モードに対応する変数のみ必須
	cfg.DeployMode = DeployMode(getEnvString("DEPLOY_MODE", string(DeployModeLocal)))
	redirectKey, err := redirectURLKey(cfg.DeployMode)
	if err != nil {
		return nil, err
	}
	cfg.RedirectURL = os.Getenv(redirectKey)
	if cfg.RedirectURL == "" {
		missing = append(missing, redirectKey)
	}

	cfg.StateStore = StateStore(getEnvString("STATE_STORE", string(StateStorePostgres)))
	switch cfg.StateStore {
	case StateStorePostgres, StateStoreMemory:
	case StateStoreRedis:
		cfg.RedisURL = os.Getenv("REDIS_URL")
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported STATE_STORE: %q", cfg.StateStore)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.SessionSecret) < minSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
	}

	// Optional fields with defaults
	cfg.DiscordAPIBaseURL = getEnvString("DISCORD_API_BASE_URL", defaultDiscordAPIBaseURL)
	cfg.DiscordAuthorizeURL = getEnvString("DISCORD_AUTHORIZE_URL", defaultDiscordAuthorizeURL)
	cfg.StateTTL = getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute)
	cfg.StateSweepInterval = getEnvDuration("OAUTH_STATE_SWEEP_INTERVAL", 5*time.Minute)
	cfg.OAuthTimeout = getEnvDuration("OAUTH_TIMEOUT", 10*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 7*24*60*60)
	cfg.RateLimitAuthorize = getEnvInt("RATE_LIMIT_AUTHORIZE", 30)
	cfg.RateLimitUpdate = getEnvInt("RATE_LIMIT_UPDATE", 30)
	cfg.GatewayEnabled = getEnvBool("GATEWAY_ENABLED", true)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", false)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	if err := cfg.validatePositive(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validatePositive は0以下だと期限切れや常時拒否になる設定値を検証する。
func (c *Config) validatePositive() error {
	durations := []struct {
		key string
		val time.Duration
	}{
		{"OAUTH_STATE_TTL", c.StateTTL},
		{"OAUTH_STATE_SWEEP_INTERVAL", c.StateSweepInterval},
		{"OAUTH_TIMEOUT", c.OAuthTimeout},
	}
	for _, d := range durations {
		if d.val <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.key, d.val)
		}
	}

	ints := []struct {
		key string
		val int
	}{
		{"SESSION_MAX_AGE", c.SessionMaxAge},
		{"RATE_LIMIT_AUTHORIZE", c.RateLimitAuthorize},
		{"RATE_LIMIT_UPDATE", c.RateLimitUpdate},
	}
	for _, i := range ints {
		if i.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", i.key, i.val)
		}
	}
	return nil
}

// redirectURLKey は配置モードに対応するリダイレクトURIの環境変数名を返す。
func redirectURLKey(mode DeployMode) (string, error) {
	switch mode {
	case DeployModeLocal:
		return "DISCORD_REDIRECT_LOCAL", nil
	case DeployModeDeploy:
		return "DISCORD_REDIRECT_DEPLOY", nil
	default:
		return "", fmt.Errorf("unsupported DEPLOY_MODE: %q", mode)
	}
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
