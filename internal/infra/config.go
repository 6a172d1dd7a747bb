package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	StoragePath   string
	PublicBaseURL string

	Backend           string
	ReplicateAPIToken string
	ReplicateBaseURL  string
	RembgURL          string
	FontPath          string
	BoldFontPath      string

	Workers            int
	QueueSize          int
	BackendCallTimeout time.Duration
	JobRetention       time.Duration
	SweepInterval      time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		StoragePath:   getEnv("STORAGE_PATH", "./output"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		Backend:           getEnv("GENERATION_BACKEND", "sdxl"),
		ReplicateAPIToken: os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:  getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		RembgURL:          os.Getenv("REMBG_URL"),
		FontPath:          os.Getenv("FONT_PATH"),
		BoldFontPath:      os.Getenv("BOLD_FONT_PATH"),

		Workers:            getEnvInt("WORKERS", 2),
		QueueSize:          getEnvInt("QUEUE_SIZE", 64),
		BackendCallTimeout: time.Second * time.Duration(getEnvInt("BACKEND_CALL_TIMEOUT_SECONDS", 300)),
		JobRetention:       time.Hour * time.Duration(getEnvInt("JOB_RETENTION_HOURS", 24)),
		SweepInterval:      time.Minute * time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 30)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("WORKERS must be positive")
	}

	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("QUEUE_SIZE must be positive")
	}

	if cfg.BackendCallTimeout <= 0 {
		return nil, fmt.Errorf("BACKEND_CALL_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
