package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Config struct {
	Addr        string
	LogLevel    string
	PostgresDSN string
	Redis       RedisConfig

	// Report cache TTLs. Live rollups stay short so dashboards track the
	// stream; matrices for fully elapsed dates are immutable and can live
	// much longer.
	ReportTTL         time.Duration
	HistoricMatrixTTL time.Duration
}

// RedisConfig captures result-cache connection settings. An empty URL means
// the cache is disabled and every report is computed on demand.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func FromEnv() Config {
	return Config{
		Addr:        envOr("BEACON_ADDR", ":8080"),
		LogLevel:    envOr("BEACON_LOG_LEVEL", "info"),
		PostgresDSN: os.Getenv("BEACON_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("BEACON_REDIS_URL"),
			PoolSize:     envInt("BEACON_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("BEACON_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("BEACON_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("BEACON_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("BEACON_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		ReportTTL:         envDuration("BEACON_REPORT_TTL", time.Minute),
		HistoricMatrixTTL: envDuration("BEACON_HISTORIC_MATRIX_TTL", 24*time.Hour),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
