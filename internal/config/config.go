package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by AGENTD_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("AGENTD_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// AgentServiceURL returns the base URL of the external agent service.
func AgentServiceURL() string {
	u := os.Getenv("AGENT_SERVICE_URL")
	if u == "" {
		return "http://localhost:8283"
	}
	return u
}

func AgentServiceAPIKey() string {
	return os.Getenv("AGENT_SERVICE_API_KEY")
}

// AgentModel returns the model assigned to newly provisioned agents.
func AgentModel() string {
	m := os.Getenv("AGENT_MODEL")
	if m == "" {
		return "google_ai/gemini-2.5-pro"
	}
	return m
}

// AgentEmbedding returns the embedding model assigned to newly provisioned agents.
func AgentEmbedding() string {
	e := os.Getenv("AGENT_EMBEDDING")
	if e == "" {
		return "google_ai/text-embedding-004"
	}
	return e
}

// WorkerCount returns the number of concurrent provisioning workers.
// Defaults to 2 if not set.
func WorkerCount() int {
	n, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || n <= 0 {
		return 2
	}
	return n
}

// WorkerPollInterval returns how often idle workers poll for due jobs.
// Defaults to 1s if not set.
func WorkerPollInterval() time.Duration {
	ms, err := strconv.Atoi(os.Getenv("WORKER_POLL_INTERVAL_MS"))
	if err != nil || ms <= 0 {
		return time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
