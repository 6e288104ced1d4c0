package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Color assignment modes for newly joined participants.
const (
	ColorRandom     = "random"
	ColorRoundRobin = "round_robin"
)

type Config struct {
	ServerHost string
	ServerPort string

	// PublicURL is the frontend base used to build invite links.
	PublicURL     string
	AllowedOrigin string

	// Session lifecycle
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration
	AutoCreateSessions   bool
	ColorAssignment      string

	// Connection limits
	MaxMessageBytes int
	SendBufferSize  int

	// Observability
	JaegerEndpoint string
	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
	LogFile        string

	// LAN discovery
	MDNSEnabled  bool
	MDNSInstance string
}

// ClientConfig configures boardctl and the collaboration client it drives.
type ClientConfig struct {
	BaseURL           string
	UserName          string
	ReconnectAttempts int
	ReconnectInterval time.Duration
	BoardFile         string
	LogLevel          string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	hostname, _ := os.Hostname()

	cfg := &Config{
		ServerHost: getEnv("SERVER_HOST", "localhost"),
		ServerPort: getEnv("SERVER_PORT", "5000"),

		PublicURL:     getEnv("PUBLIC_URL", "http://localhost:3000"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),

		SessionIdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 30*time.Minute),
		AutoCreateSessions:   getEnvBool("AUTO_CREATE_SESSIONS", false),
		ColorAssignment:      getEnv("COLOR_ASSIGNMENT", ColorRandom),

		MaxMessageBytes: getEnvInt("MAX_MESSAGE_BYTES", 1<<20),
		SendBufferSize:  getEnvInt("SEND_BUFFER_SIZE", 256),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		LogFile:        getEnv("LOG_FILE", ""),

		MDNSEnabled:  getEnvBool("MDNS_ENABLED", false),
		MDNSInstance: getEnv("MDNS_INSTANCE", hostname),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would make the relay misbehave at runtime.
func (c *Config) Validate() error {
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("MAX_MESSAGE_BYTES must be positive")
	}
	if c.SendBufferSize <= 0 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be positive")
	}
	switch c.ColorAssignment {
	case ColorRandom, ColorRoundRobin:
	default:
		return fmt.Errorf("COLOR_ASSIGNMENT must be %q or %q, got %q", ColorRandom, ColorRoundRobin, c.ColorAssignment)
	}
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

// Port returns the numeric listen port, or 0 if SERVER_PORT is not a number.
func (c *Config) Port() int {
	port, err := strconv.Atoi(c.ServerPort)
	if err != nil {
		return 0
	}
	return port
}

func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	cfg := &ClientConfig{
		BaseURL:           getEnv("SPARKBOARD_URL", "http://localhost:5000"),
		UserName:          getEnv("SPARKBOARD_USER", "Anonymous"),
		ReconnectAttempts: getEnvInt("RECONNECT_ATTEMPTS", 5),
		ReconnectInterval: getEnvDuration("RECONNECT_INTERVAL", time.Second),
		BoardFile:         getEnv("BOARD_FILE", "sparkboard.json"),
		LogLevel:          getEnv("LOG_LEVEL", "warn"),
	}

	if cfg.ReconnectAttempts < 0 {
		return nil, fmt.Errorf("RECONNECT_ATTEMPTS must not be negative")
	}
	if cfg.ReconnectInterval <= 0 {
		return nil, fmt.Errorf("RECONNECT_INTERVAL must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
