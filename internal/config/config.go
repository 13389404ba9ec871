package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup.
type Config struct {
	Environment string

	Server  ServerConfig
	Logging LoggingConfig
	Auth    AuthConfig
	Session SessionConfig
	Redis   RedisConfig
	KMS     KMSConfig
	Kafka   KafkaConfig
}

type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// AuthConfig selects the authentication strategy. The choice is made once,
// at construction time; nothing branches on Mode per call.
type AuthConfig struct {
	// Mode is "verified" (remote authority) or "simulated" (local, dev only).
	Mode string
	// AuthorityURL is the base URL of the remote authority (verified mode).
	AuthorityURL     string
	AuthorityTimeout time.Duration
	// SimulationEnabled must be explicitly set for simulated mode; it is
	// rejected outright in production.
	SimulationEnabled bool

	// Circuit breaker thresholds for remote authority calls.
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

type SessionConfig struct {
	// Backend is "file" or "redis".
	Backend string
	// FilePath is where the sealed session blob lives (file backend).
	FilePath string
	// MasterKey is the base64-encoded 32-byte sealing key used when KMS is
	// disabled. Empty means an ephemeral process-local key.
	MasterKey string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

const (
	AuthModeVerified  = "verified"
	AuthModeSimulated = "simulated"

	SessionBackendFile  = "file"
	SessionBackendRedis = "redis"
)

// LoadConfig reads configuration from the environment (with .env support for
// local development) and validates it.
func LoadConfig() (*Config, error) {
	// Best effort; production supplies real env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getEnvList("SERVER_ALLOWED_ORIGINS", []string{"https://*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			Mode:               getEnv("AUTH_MODE", AuthModeVerified),
			AuthorityURL:       getEnv("AUTH_AUTHORITY_URL", ""),
			AuthorityTimeout:   getEnvDuration("AUTH_AUTHORITY_TIMEOUT", 10*time.Second),
			SimulationEnabled:  getEnvBool("AUTH_SIMULATION_ENABLED", false),
			BreakerMaxFailures: uint32(getEnvInt("AUTH_BREAKER_MAX_FAILURES", 5)),
			BreakerTimeout:     getEnvDuration("AUTH_BREAKER_TIMEOUT", 30*time.Second),
		},
		Session: SessionConfig{
			Backend:   getEnv("SESSION_BACKEND", SessionBackendFile),
			FilePath:  getEnv("SESSION_FILE_PATH", defaultSessionPath()),
			MasterKey: getEnv("SESSION_MASTER_KEY", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			KeyID:   getEnv("KMS_KEY_ID", ""),
			Region:  getEnv("KMS_REGION", "us-east-1"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "admin-security-events"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails closed on configurations that could weaken authentication.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case AuthModeVerified:
		if c.Auth.AuthorityURL == "" {
			return fmt.Errorf("AUTH_AUTHORITY_URL is required in verified mode")
		}
	case AuthModeSimulated:
		if c.IsProduction() {
			return fmt.Errorf("simulated auth mode is not allowed in production")
		}
		if !c.Auth.SimulationEnabled {
			return fmt.Errorf("simulated auth mode requires AUTH_SIMULATION_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}

	switch c.Session.Backend {
	case SessionBackendFile, SessionBackendRedis:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	if c.KMS.Enabled && c.KMS.KeyID == "" {
		return fmt.Errorf("KMS_KEY_ID is required when KMS is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	}
	return nil
}

// IsProduction reports whether this is a production-grade deployment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetServerAddress returns the listen address for the HTTP server.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return dir + "/admin-auth/session.blob"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
