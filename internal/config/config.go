// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envFile = "configs/.env"

// NewConfig loads configuration from the environment (configs/.env fills gaps) with typed defaults.
func NewConfig() (*Config, error) {
	return Load(envFile)
}

// Load is NewConfig with an explicit env file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	if envMap, err := godotenv.Read(path); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "debug")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allowed_origins", "http://localhost:5173,http://127.0.0.1:5173,http://localhost:5174")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.sqlite_path", "retailops.db")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.db_name", "retailops")
	v.SetDefault("postgres.ssl_mode", "disable")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Minute)

	v.SetDefault("review.washout", 6000*time.Millisecond)
	v.SetDefault("review.scroll_delay", 140*time.Millisecond)
	v.SetDefault("review.mobile_breakpoint", 767)
	v.SetDefault("review.items_per_page", 10)
	v.SetDefault("review.sales_per_page", 10)

	v.SetDefault("dashboard.debounce", 150*time.Millisecond)
	v.SetDefault("dashboard.window", 30)
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"logging.level",
		"server.host",
		"server.port",
		"server.mode",
		"server.shutdown_timeout",
		"server.allowed_origins",
		"database.driver",
		"database.sqlite_path",
		"database.auto_migrate",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.db_name",
		"postgres.ssl_mode",
		"auth.jwt_secret",
		"redis.addr",
		"redis.password",
		"redis.db",
		"redis.ttl",
		"review.washout",
		"review.scroll_delay",
		"review.mobile_breakpoint",
		"review.items_per_page",
		"review.sales_per_page",
		"dashboard.debounce",
		"dashboard.window",
	}

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	// Legacy names used by existing deployments.
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("postgres.host", "POSTGRES_HOST", "DB_HOST")
	_ = v.BindEnv("postgres.port", "POSTGRES_PORT", "DB_PORT")
	_ = v.BindEnv("postgres.user", "POSTGRES_USER", "DB_USER")
	_ = v.BindEnv("postgres.password", "POSTGRES_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("postgres.db_name", "POSTGRES_DB_NAME", "DB_NAME")
	_ = v.BindEnv("postgres.ssl_mode", "POSTGRES_SSL_MODE", "DB_SSLMODE")
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
}
