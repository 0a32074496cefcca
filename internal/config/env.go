package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	PoolSize         int
	QueueSize        int
	ExtractTimeout   time.Duration
	ScratchDir       string
	RequirePDFToText bool
	MaxUploadMB      int
	JWTSecret        string
	SessionTTL       time.Duration
	CORSOrigins      []string
	LogLevel         string
	LogFormat        string

	// Warnings collects values that were malformed and replaced by defaults.
	Warnings []string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.PoolSize = cfg.getEnvInt("POOL_SIZE", 2)
	cfg.QueueSize = cfg.getEnvInt("QUEUE_SIZE", 64)
	cfg.ExtractTimeout = cfg.getEnvDuration("EXTRACT_TIMEOUT", 0)
	cfg.ScratchDir = getEnv("SCRATCH_DIR", "")
	cfg.RequirePDFToText = cfg.getEnvBool("REQUIRE_PDFTOTEXT", false)
	cfg.MaxUploadMB = cfg.getEnvInt("MAX_UPLOAD_MB", 50)
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.SessionTTL = cfg.getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8888"))
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	return cfg
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		return fmt.Errorf("POOL_SIZE must be positive, got %d", c.PoolSize)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("QUEUE_SIZE must be positive, got %d", c.QueueSize)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.ExtractTimeout < 0 {
		return fmt.Errorf("EXTRACT_TIMEOUT must not be negative, got %s", c.ExtractTimeout)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func (c *Config) getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.warn("%s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func (c *Config) getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.warn("%s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func (c *Config) getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.warn("%s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

func (c *Config) warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
