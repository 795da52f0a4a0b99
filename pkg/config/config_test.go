package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENV", "Production")
	t.Setenv("PORT", "8088")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("JWT_EXPIRATION", "30m")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("DB_MAX_OPEN_CONNS", "4")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, 8088, cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.JWT.Ephemeral)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_EXPIRATION", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 10, cfg.Password.BcryptCost)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestValidateProductionRequiresSecrets(t *testing.T) {
	cfg := &Config{Env: EnvProduction, Port: 3000, JWT: JWTConfig{Expiration: time.Hour}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DB_PASSWORD")
	assert.Empty(t, cfg.JWT.Secret)
}

func TestValidateProductionRejectsShortSecret(t *testing.T) {
	cfg := &Config{
		Env:      EnvProduction,
		Port:     3000,
		JWT:      JWTConfig{Secret: "short", Expiration: time.Hour},
		Database: DatabaseConfig{Password: "pw"},
	}

	require.Error(t, cfg.Validate())
}

func TestValidateDevelopmentGeneratesEphemeralSecret(t *testing.T) {
	first := &Config{Env: EnvDevelopment, Port: 3000, JWT: JWTConfig{Expiration: time.Hour}}
	second := &Config{Env: EnvDevelopment, Port: 3000, JWT: JWTConfig{Expiration: time.Hour}}

	require.NoError(t, first.Validate())
	require.NoError(t, second.Validate())
	assert.True(t, first.JWT.Ephemeral)
	assert.Len(t, first.JWT.Secret, 64)
	assert.NotEqual(t, first.JWT.Secret, second.JWT.Secret)
}

func TestValidateUnknownEnv(t *testing.T) {
	cfg := &Config{Env: "staging", Port: 3000, JWT: JWTConfig{Expiration: time.Hour}}
	require.Error(t, cfg.Validate())
}
