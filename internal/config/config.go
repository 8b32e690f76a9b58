package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TRIAGEM"

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Addr           string        `mapstructure:"ADDR"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	LogFormat      string        `mapstructure:"LOG_FORMAT"`
	Store          string        `mapstructure:"STORE"`
	SQLitePath     string        `mapstructure:"SQLITE_PATH"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	StaticDir      string        `mapstructure:"STATIC_DIR"`
	DevFrontendURL string        `mapstructure:"DEV_FRONTEND_URL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	Commit         string        `mapstructure:"COMMIT"`
	BuildTime      string        `mapstructure:"BUILD_TIME"`
}

var keys = []string{
	"ADDR", "ENV", "LOG_LEVEL", "LOG_FORMAT", "STORE", "SQLITE_PATH", "DATABASE_URL",
	"DB_MAX_CONNS", "DB_MIN_CONNS", "JWT_SECRET", "TOKEN_TTL", "STATIC_DIR",
	"DEV_FRONTEND_URL", "CORS_ORIGINS", "COMMIT", "BUILD_TIME",
}

// Load reads TRIAGEM_* environment variables over an optional .env file in
// the working directory. Keys in .env are written without the prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("STORE", StoreSQLite)
	v.SetDefault("SQLITE_PATH", "data/triagem.db")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("TOKEN_TTL", "720h")
	v.SetDefault("CORS_ORIGINS", "")

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s_DATABASE_URL is required when STORE is %q", envPrefix, StorePostgres)
		}
	default:
		return fmt.Errorf("%s_STORE must be %q, %q or %q, got %q", envPrefix, StoreMemory, StoreSQLite, StorePostgres, c.Store)
	}
	if c.Store == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("%s_SQLITE_PATH is required when STORE is %q", envPrefix, StoreSQLite)
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("%s_JWT_SECRET is required in production", envPrefix)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%s_TOKEN_TTL must be positive", envPrefix)
	}
	return nil
}
