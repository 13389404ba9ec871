package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Auth: AuthConfig{
			Mode:         AuthModeVerified,
			AuthorityURL: "https://authority.example.com",
		},
		Session: SessionConfig{Backend: SessionBackendFile},
	}
}

func TestValidate_VerifiedRequiresAuthorityURL(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	cfg.Auth.AuthorityURL = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_SimulatedRejectedInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = AuthModeSimulated
	cfg.Auth.SimulationEnabled = true
	require.NoError(t, cfg.Validate())

	cfg.Environment = "production"
	assert.Error(t, cfg.Validate(), "simulated mode must never validate in production")
}

func TestValidate_SimulatedRequiresExplicitEnable(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = AuthModeSimulated
	cfg.Auth.SimulationEnabled = false
	assert.Error(t, cfg.Validate())
}

func TestValidate_UnknownAuthMode(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "trust-me"
	assert.Error(t, cfg.Validate())
}

func TestValidate_SessionBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Session.Backend = SessionBackendRedis
	require.NoError(t, cfg.Validate())

	cfg.Session.Backend = "memcached"
	assert.Error(t, cfg.Validate())
}

func TestValidate_KMSRequiresKeyID(t *testing.T) {
	cfg := validConfig()
	cfg.KMS.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.KMS.KeyID = "alias/admin-session"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_KafkaRequiresBrokers(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AUTH_AUTHORITY_URL", "https://authority.example.com")
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_MODE", AuthModeVerified)
	t.Setenv("SERVER_PORT", "8080")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, AuthModeVerified, cfg.Auth.Mode)
	assert.Equal(t, SessionBackendFile, cfg.Session.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Auth.AuthorityTimeout)
	assert.Equal(t, "admin-security-events", cfg.Kafka.Topic)
	assert.Equal(t, ":8080", cfg.GetServerAddress())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("AUTH_MODE", AuthModeSimulated)
	t.Setenv("AUTH_SIMULATION_ENABLED", "true")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, AuthModeSimulated, cfg.Auth.Mode)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t,
		[]string{"https://app.example.com", "https://admin.example.com"},
		cfg.Server.AllowedOrigins)
}
