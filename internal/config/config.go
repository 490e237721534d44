// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"project-chat/internal/ws"
)

const (
	AuthModeJWT  = "jwt"
	AuthModeGRPC = "grpc"
)

type Config struct {
	Port     int    `env:"PORT,default=8083" validate:"min=1,max=65535"`
	DBDSN    string `env:"DB_DSN,required=true" validate:"required"`
	LogLevel string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`

	AuthMode     string `env:"AUTH_MODE,default=jwt" validate:"oneof=jwt grpc"`
	JWTSecret    string `env:"JWT_SECRET" validate:"required_if=AuthMode jwt"`
	JWTIssuer    string `env:"JWT_ISSUER"`
	AuthGRPCAddr string `env:"AUTH_GRPC_ADDR" validate:"required_if=AuthMode grpc"`
	// UserGRPCAddr switches identity lookups from the users table to the
	// user service.
	UserGRPCAddr string `env:"USER_GRPC_ADDR"`

	IdentityCacheTTL   time.Duration `env:"IDENTITY_CACHE_TTL,default=5m" validate:"gt=0"`
	MembershipCacheTTL time.Duration `env:"MEMBERSHIP_CACHE_TTL,default=5m" validate:"gt=0"`

	ActionTimeout time.Duration `env:"ACTION_TIMEOUT,default=10s" validate:"gt=0"`
	MaxBodyLength int           `env:"MAX_BODY_LENGTH,default=5000" validate:"gt=0"`
	SendQueueSize int           `env:"SEND_QUEUE_SIZE,default=256" validate:"gt=0"`
	WriteWait     time.Duration `env:"WRITE_WAIT,default=10s" validate:"gt=0"`
	PongWait      time.Duration `env:"PONG_WAIT,default=60s" validate:"gt=0"`

	AMQPURL              string `env:"AMQP_URL"`
	AMQPExchange         string `env:"AMQP_EXCHANGE,default=events"`
	AuditRoutingKey      string `env:"AUDIT_ROUTING_KEY,default=audit.chat"`
	MembershipRoutingKey string `env:"MEMBERSHIP_ROUTING_KEY,default=membership.changed"`
	MembershipQueue      string `env:"MEMBERSHIP_QUEUE,default=project-chat.membership"`

	ServiceName  string `env:"SERVICE_NAME,default=project-chat"`
	Environment  string `env:"ENVIRONMENT,default=local"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	DebugRoutes  bool   `env:"DEBUG_ROUTES,default=false"`
}

var validate = validator.New()

// Load reads a .env file when one exists, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return Parse(es)
}

// Parse builds a Config from an explicit set of variables.
func Parse(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Level maps LOG_LEVEL onto a slog level.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// WS returns the connection settings of the websocket layer.
func (c Config) WS() ws.Config {
	return ws.Config{
		ActionTimeout: c.ActionTimeout,
		MaxBodyLength: c.MaxBodyLength,
		SendQueueSize: c.SendQueueSize,
		WriteWait:     c.WriteWait,
		PongWait:      c.PongWait,
	}
}

// NewLogger builds the process logger.
func NewLogger(c Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.Level()})).
		With("service", c.ServiceName, "env", c.Environment)
}
