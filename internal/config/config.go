// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 実行環境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// DefaultUploadAllowedTypes はCVアップロードで許可するMIMEタイプの既定値。
const DefaultUploadAllowedTypes = "application/pdf,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// App
	Env        string
	Port       string
	APIPrefix  string
	APIVersion string

	// Database
	DatabaseURL       string
	DBHost            string
	DBPort            int
	DBUsername        string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBHealthTimeout   time.Duration
	KeepAliveInterval time.Duration

	// Firebase
	FirebaseCredentialsFile string
	FirebaseProjectID       string
	FirebaseClientEmail     string
	FirebasePrivateKey      string

	// External services
	AIModelAPIURL string
	AIModelAPIKey string

	// Logging
	LogLevel             string
	EnableRequestLogging bool

	// Rate Limit
	RateLimitWindow      time.Duration
	RateLimitMaxRequests int

	// Upload
	UploadMaxFileSize  int64
	UploadAllowedTypes []string

	// CORS
	CORSAllowedOrigins []string

	// Test routes
	EnableTestRoutes bool
}

// LoadDotEnv はカレントディレクトリの.envファイルを環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既存の環境変数は上書きしない。
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	var present []string
	for _, f := range filenames {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 設定値に問題がある場合はすべてまとめてエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var problems []string

	cfg.Env = getEnvString("APP_ENV", getEnvString("NODE_ENV", EnvDevelopment))
	switch cfg.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		problems = append(problems, fmt.Sprintf("APP_ENV must be one of development, production, test (got %q)", cfg.Env))
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.Env == EnvProduction {
		problems = append(problems, "DATABASE_URL is required in production")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", problems)
	}

	// App
	cfg.Port = getEnvString("PORT", "3000")
	cfg.APIPrefix = strings.Trim(getEnvString("API_PREFIX", "api"), "/")
	cfg.APIVersion = strings.Trim(getEnvString("API_VERSION", "v1"), "/")

	// Database
	cfg.DBHost = getEnvString("DB_HOST", "localhost")
	cfg.DBPort = getEnvInt("DB_PORT", 5432)
	cfg.DBUsername = getEnvString("DB_USERNAME", "postgres")
	cfg.DBPassword = getEnvString("DB_PASSWORD", "password")
	cfg.DBName = getEnvString("DB_DATABASE", "cvision")
	cfg.DBSSLMode = getEnvString("DB_SSLMODE", "disable")
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.DBHealthTimeout = getEnvDuration("DB_HEALTH_TIMEOUT", 3*time.Second)
	cfg.KeepAliveInterval = getEnvDuration("DB_KEEPALIVE_INTERVAL", 4*time.Minute)

	// Firebase
	cfg.FirebaseCredentialsFile = getEnvString("FIREBASE_CREDENTIALS_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	cfg.FirebaseClientEmail = os.Getenv("FIREBASE_CLIENT_EMAIL")
	// .envやCIのシークレットでは改行が "\n" のリテラルで渡されることが多い
	cfg.FirebasePrivateKey = strings.ReplaceAll(os.Getenv("FIREBASE_PRIVATE_KEY"), `\n`, "\n")

	// External services
	cfg.AIModelAPIURL = getEnvString("AI_MODEL_API_URL", "http://localhost:8000")
	cfg.AIModelAPIKey = os.Getenv("AI_MODEL_API_KEY")

	// Logging
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.EnableRequestLogging = getEnvBool("ENABLE_REQUEST_LOGGING", false)

	// Rate limit
	cfg.RateLimitWindow = time.Duration(getEnvInt64("RATE_LIMIT_WINDOW_MS", 900000)) * time.Millisecond
	cfg.RateLimitMaxRequests = getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100)

	// Upload
	cfg.UploadMaxFileSize = getEnvInt64("UPLOAD_MAX_FILE_SIZE", 10485760)
	cfg.UploadAllowedTypes = getEnvList("UPLOAD_ALLOWED_TYPES", DefaultUploadAllowedTypes)

	// CORS
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", "")

	cfg.EnableTestRoutes = getEnvBool("ENABLE_TEST_ROUTES", cfg.Env != EnvProduction)

	return cfg, nil
}

// IsDevelopment は開発環境で動作しているかを返す。
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction は本番環境で動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// APIBasePath はバージョン付きAPIのベースパスを返す（例: "/api/v1"）。
func (c *Config) APIBasePath() string {
	path := ""
	if c.APIPrefix != "" {
		path += "/" + c.APIPrefix
	}
	if c.APIVersion != "" {
		path += "/" + c.APIVersion
	}
	return path
}

// DatabaseDSN は接続に使うPostgreSQLのURLを返す。
// DATABASE_URLが未設定の場合はDB_*の個別設定から組み立てる。
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUsername, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
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

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key, defaultVal string) []string {
	raw := getEnvString(key, defaultVal)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
