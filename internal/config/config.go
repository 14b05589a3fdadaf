package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIAddr          string
	PostgresURL      string
	DataInRoot       string
	WebhookURL       string
	RequestTimeoutMs int
	DemoMode         bool
	DemoScenario     string
	RunHistoryLimit  int
	MaxUploadBytes   int64
}

func Load() Config {
	return Config{
		APIAddr:          getenv("EDUGEN_API_ADDR", ":8080"),
		PostgresURL:      getenv("EDUGEN_POSTGRES_URL", ""),
		DataInRoot:       getenv("EDUGEN_DATA_IN", "./data/in"),
		WebhookURL:       getenv("EDUGEN_WEBHOOK_URL", "http://localhost:5678/webhook/edugen-process"),
		RequestTimeoutMs: getenvInt("EDUGEN_REQUEST_TIMEOUT_MS", 60000),
		DemoMode:         getenvBool("EDUGEN_DEMO_MODE", false),
		DemoScenario:     getenv("EDUGEN_DEMO_SCENARIO", "fast-success"),
		RunHistoryLimit:  getenvInt("EDUGEN_RUN_HISTORY_LIMIT", 50),
		MaxUploadBytes:   int64(getenvInt("EDUGEN_MAX_UPLOAD_MB", 25)) * 1024 * 1024,
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
