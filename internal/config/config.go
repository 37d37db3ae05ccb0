package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DBDriver    string // postgres/mysql/sqlite
	DatabaseURL string // postgresのURL（あれば最優先）

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	MySQLDSN   string
	SQLitePath string

	JWTSecret string        // JWT署名シークレット
	JWTTTL    time.Duration // アクセストークンの有効期限

	GoEnv string // dev/prod

	TaxRate  decimal.Decimal // 税率（0.21）
	Location *time.Location  // 「今日」の判定に使うタイムゾーン

	RedisAddr      string        // 空ならレポートキャッシュなし
	ReportCacheTTL time.Duration

	ShutdownTimeout time.Duration
	LogLevel        slog.Level

	// 起動時に作る最初の管理者（ユーザーがいないときだけ）
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

func (c Config) IsDev() bool {
	return c.GoEnv == "dev"
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port:             getenv("PORT", "8080"),
		DBDriver:         getenv("DB_DRIVER", DriverPostgres),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       getenv("POSTGRES_DB", "pos"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		MySQLDSN:         os.Getenv("MYSQL_DSN"),
		SQLitePath:       getenv("SQLITE_PATH", "pos.db"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		GoEnv:            getenv("GO_ENV", "dev"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		AdminUsername:    os.Getenv("ADMIN_USERNAME"),
		AdminEmail:       getenv("ADMIN_EMAIL", "admin@localhost"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.PostgresPort, err = atoiDefault("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.JWTTTL, err = durationDefault("JWT_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReportCacheTTL, err = durationDefault("REPORT_CACHE_TTL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = durationDefault("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}

	//税率は0以上1未満
	cfg.TaxRate, err = decimal.NewFromString(getenv("TAX_RATE", "0.21"))
	if err != nil {
		return Config{}, fmt.Errorf("TAX_RATE must be decimal: %w", err)
	}
	if cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("TAX_RATE must be in [0, 1)")
	}

	cfg.Location, err = time.LoadLocation(getenv("TIMEZONE", "Local"))
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "INFO"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	//必須チェック
	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" && cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
	case DriverMySQL:
		if cfg.MySQLDSN == "" {
			return Config{}, fmt.Errorf("MYSQL_DSN is required")
		}
	case DriverSQLite:
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be one of postgres, mysql, sqlite")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if !cfg.IsDev() && len(cfg.JWTSecret) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 bytes outside dev")
	}
	if cfg.AdminUsername != "" && cfg.AdminPassword == "" {
		return Config{}, fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_USERNAME is set")
	}

	return cfg, nil
}

// ":8080" の形にする
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
