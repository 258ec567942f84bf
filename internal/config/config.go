package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"nxfs_api/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	DatabaseURL   string
	JWTSecret     string
	JWTTTL        time.Duration
	AllowedOrigin string
	LogLevel      string
	LogJSON       bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	APIRateLimit  int
	APIRateWindow time.Duration

	// Webhook agents (docker + usage). AgentToken is the shared static token,
	// AgentSigningSecret enables X-Agent-Signature body verification.
	AgentToken         string
	AgentSigningSecret string

	GeocodeBaseURL string
	GeocodeTimeout time.Duration
	GeocodeWorkers int
	GeocodeQueue   int
	GeocodeSweep   time.Duration
	GeocodeCache   time.Duration

	UsageRetention  time.Duration
	UsageCleanup    time.Duration
	UsageTokenLimit int64
	UsageWindow     time.Duration

	DockerHostStale time.Duration
	MigrateOnStart  bool
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	return &Config{
		AppPort:       envString("APP_PORT", "8080"),
		DatabaseURL:   dbURL,
		JWTSecret:     jwtSecret,
		JWTTTL:        envHours("JWT_TTL_HOURS", 24),
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:      envString("LOG_LEVEL", "info"),
		LogJSON:       os.Getenv("LOG_JSON") == "true",

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		APIRateLimit:  envInt("API_RATE_LIMIT", 120),
		APIRateWindow: envSeconds("API_RATE_WINDOW_SECONDS", 60),

		AgentToken:         os.Getenv("AGENT_TOKEN"),
		AgentSigningSecret: os.Getenv("AGENT_SIGNING_SECRET"),

		GeocodeBaseURL: envString("GEOCODE_BASE_URL", "https://ws.geonorge.no/adresser/v1/sok"),
		GeocodeTimeout: envSeconds("GEOCODE_TIMEOUT_SECONDS", 5),
		GeocodeWorkers: envInt("GEOCODE_WORKERS", 2),
		GeocodeQueue:   envInt("GEOCODE_QUEUE_SIZE", 256),
		GeocodeSweep:   envSeconds("GEOCODE_SWEEP_SECONDS", 300),
		GeocodeCache:   envHours("GEOCODE_CACHE_HOURS", 30*24),

		UsageRetention:  envHours("USAGE_RETENTION_HOURS", 6),
		UsageCleanup:    envSeconds("USAGE_CLEANUP_SECONDS", 1800),
		UsageTokenLimit: int64(envInt("USAGE_TOKEN_LIMIT", 0)),
		UsageWindow:     envHours("USAGE_WINDOW_HOURS", 5),

		DockerHostStale: envSeconds("DOCKER_HOST_STALE_SECONDS", 600),
		MigrateOnStart:  os.Getenv("MIGRATE_ON_START") == "true",
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt ignores malformed and negative values.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.Warn("ignoring invalid integer env value", "key", key, "value", v)
		return def
	}
	return n
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}

func envHours(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Hour
}
