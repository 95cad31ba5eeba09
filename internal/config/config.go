package config

import (
  "fmt"
  "time"

  "github.com/joho/godotenv"

  "github.com/dialforhelp/localpro-backend/internal/logger"
  "github.com/dialforhelp/localpro-backend/internal/utils"
)

// Config is built exactly once in main and handed to the components that
// need it. Nothing below main reads the process environment directly.
type Config struct {
  Port string

  PostgresHost     string
  PostgresPort     string
  PostgresUser     string
  PostgresPassword string
  PostgresName     string

  RedisAddress  string
  RedisPassword string

  JWTSecretKey    string
  AccessTokenTTL  time.Duration
  RefreshTokenTTL time.Duration

  TwilioAccountSID string
  TwilioAuthToken  string
  TwilioFromNumber string

  SendgridAPIKey    string
  SendgridFromEmail string
}

func Load(log *logger.Logger) (*Config, error) {
  if err := godotenv.Load(); err != nil {
    log.Debug("No .env file found, relying on process environment", "error", err)
  }

  cfg := &Config{
    Port:              utils.GetEnv("PORT", "8080", log),
    PostgresHost:      utils.GetEnv("POSTGRES_HOST", "localhost", log),
    PostgresPort:      utils.GetEnv("POSTGRES_PORT", "5432", log),
    PostgresUser:      utils.GetEnv("POSTGRES_USER", "postgres", log),
    PostgresPassword:  utils.GetEnv("POSTGRES_PASSWORD", "", log),
    PostgresName:      utils.GetEnv("POSTGRES_NAME", "localpro", log),
    RedisAddress:      utils.GetEnv("REDIS_ADDRESS", "", log),
    RedisPassword:     utils.GetEnv("REDIS_PASSWORD", "", log),
    JWTSecretKey:      utils.GetEnv("JWT_SECRET_KEY", "", log),
    AccessTokenTTL:    time.Duration(utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 900, log)) * time.Second,
    RefreshTokenTTL:   time.Duration(utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 604800, log)) * time.Second,
    TwilioAccountSID:  utils.GetEnv("TWILIO_ACCOUNT_SID", "", log),
    TwilioAuthToken:   utils.GetEnv("TWILIO_AUTH_TOKEN", "", log),
    TwilioFromNumber:  utils.GetEnv("TWILIO_FROM_NUMBER", "", log),
    SendgridAPIKey:    utils.GetEnv("SENDGRID_API_KEY", "", log),
    SendgridFromEmail: utils.GetEnv("SENDGRID_FROM_EMAIL", "no-reply@dialforhelp.lk", log),
  }

  // The session issuer cannot run without a signing key. Refuse to start.
  if cfg.JWTSecretKey == "" {
    return nil, fmt.Errorf("Missing JWT_SECRET_KEY environment variable, refusing to start")
  }
  return cfg, nil
}
