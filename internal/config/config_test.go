package config

import (
	"log/slog"
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(env.EnvSet{
		"DB_DSN":     "postgres://localhost/chat",
		"JWT_SECRET": "s3cret",
	})
	require.NoError(t, err)

	assert.Equal(t, 8083, cfg.Port)
	assert.Equal(t, ":8083", cfg.Addr())
	assert.Equal(t, AuthModeJWT, cfg.AuthMode)
	assert.Equal(t, 5*time.Minute, cfg.IdentityCacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.MembershipCacheTTL)
	assert.Equal(t, "membership.changed", cfg.MembershipRoutingKey)
	assert.False(t, cfg.DebugRoutes)
	assert.Equal(t, slog.LevelInfo, cfg.Level())

	wsCfg := cfg.WS()
	assert.Equal(t, 10*time.Second, wsCfg.ActionTimeout)
	assert.Equal(t, 5000, wsCfg.MaxBodyLength)
	assert.Equal(t, 256, wsCfg.SendQueueSize)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(env.EnvSet{
		"DB_DSN":               "postgres://localhost/chat",
		"AUTH_MODE":            "grpc",
		"AUTH_GRPC_ADDR":       "auth:8084",
		"LOG_LEVEL":            "debug",
		"MEMBERSHIP_CACHE_TTL": "5s",
		"DEBUG_ROUTES":         "true",
		"PORT":                 "9000",
	})
	require.NoError(t, err)

	assert.Equal(t, AuthModeGRPC, cfg.AuthMode)
	assert.Equal(t, 5*time.Second, cfg.MembershipCacheTTL)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.True(t, cfg.DebugRoutes)
	assert.Equal(t, ":9000", cfg.Addr())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		set  env.EnvSet
	}{
		{name: "missing dsn", set: env.EnvSet{"JWT_SECRET": "x"}},
		{name: "jwt without secret", set: env.EnvSet{"DB_DSN": "dsn"}},
		{name: "grpc without address", set: env.EnvSet{"DB_DSN": "dsn", "AUTH_MODE": "grpc"}},
		{name: "unknown auth mode", set: env.EnvSet{"DB_DSN": "dsn", "AUTH_MODE": "ldap"}},
		{name: "bad duration", set: env.EnvSet{"DB_DSN": "dsn", "JWT_SECRET": "x", "PONG_WAIT": "soon"}},
		{name: "zero ttl", set: env.EnvSet{"DB_DSN": "dsn", "JWT_SECRET": "x", "IDENTITY_CACHE_TTL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.set)
			assert.Error(t, err)
		})
	}
}
