// Package config provides runtime configuration values for the service.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration knobs for the HTTP server, stores and the
// ownership queue.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	AppEnv          string
	LogMode         string

	DBDriver       string
	DatabaseURL    string
	SQLitePath     string
	DBMaxOpenConns int

	OwnedIndexBackend string
	OwnedIndexPath    string
	OwnedIndexKey     string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	RulesFile          string
	IndexQueueBuffer   int
	QueueHighWatermark int
	CORSOrigins        []string
}

// Debug reports whether error responses may carry internal details.
func (c Config) Debug() bool {
	switch strings.ToLower(c.AppEnv) {
	case "development", "dev", "debug":
		return true
	}
	return false
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

func listenv(key, def string) []string {
	var out []string
	for _, p := range strings.Split(getenv(key, def), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// postgresURL assembles a DSN from the libpq-style PG* variables.
func postgresURL() string {
	host := getenv("PGHOST", "localhost")
	sslmode := "disable"
	if strings.Contains(host, ".render.com") {
		sslmode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getenv("PGUSER", "postgres"), os.Getenv("PGPASSWORD")),
		Host:     fmt.Sprintf("%s:%s", host, getenv("PGPORT", "5432")),
		Path:     "/" + getenv("PGDATABASE", "sneakers"),
		RawQuery: "sslmode=" + sslmode,
	}
	return u.String()
}

// Load collects configuration from environment with defaults.
func Load() Config {
	dbURL := getenv("DATABASE_URL", "")
	if dbURL == "" {
		dbURL = postgresURL()
	}
	return Config{
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:    durenvs("SHUTDOWN_TIMEOUT", 15),
		AppEnv:             getenv("APP_ENV", "production"),
		LogMode:            getenv("LOG_MODE", "production"),
		DBDriver:           strings.ToLower(getenv("DB_DRIVER", "postgres")),
		DatabaseURL:        dbURL,
		SQLitePath:         getenv("SQLITE_PATH", "data/sneakers.db"),
		DBMaxOpenConns:     atoienv("DB_MAX_OPEN_CONNS", 10),
		OwnedIndexBackend:  strings.ToLower(getenv("OWNED_INDEX_BACKEND", "file")),
		OwnedIndexPath:     getenv("OWNED_INDEX_PATH", "data/created.json"),
		OwnedIndexKey:      getenv("OWNED_INDEX_KEY", "sneakers:created"),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getenv("REDIS_PASSWORD", ""),
		RedisDB:            atoienv("REDIS_DB", 0),
		RulesFile:          getenv("RULES_FILE", ""),
		IndexQueueBuffer:   atoienv("INDEX_QUEUE_BUFFER", 128),
		QueueHighWatermark: atoienv("QUEUE_HIGH_WATERMARK", 5000),
		CORSOrigins:        listenv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"),
	}
}
