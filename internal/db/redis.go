package db

import (
  "context"
  "fmt"
  "time"

  "github.com/redis/go-redis/v9"

  "github.com/dialforhelp/localpro-backend/internal/config"
  "github.com/dialforhelp/localpro-backend/internal/logger"
  "github.com/dialforhelp/localpro-backend/internal/types"
)

// RedisService holds the shared redis client. Its only job in this flow is
// the best-effort duplicate-send guard: two instances racing on the same
// (phone, purpose) collapse to one winner while the guard key lives.
type RedisService struct {
  log    *logger.Logger
  client *redis.Client
}

func NewRedisService(cfg *config.Config, log *logger.Logger) (*RedisService, error) {
  serviceLog := log.With("service", "RedisService")
  if cfg.RedisAddress == "" {
    return nil, fmt.Errorf("Missing REDIS_ADDRESS environment variable")
  }
  client := redis.NewClient(&redis.Options{
    Addr:     cfg.RedisAddress,
    Password: cfg.RedisPassword,
  })
  ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
  defer cancel()
  if err := client.Ping(ctx).Err(); err != nil {
    serviceLog.Warn("Failed to ping redis", "error", err)
    return nil, fmt.Errorf("Failed to ping redis: %w", err)
  }
  serviceLog.Info("Successfully Connected to Redis :)")
  return &RedisService{log: serviceLog, client: client}, nil
}

func sendSlotKey(phone string, purpose types.Purpose) string {
  return fmt.Sprintf("otp:send:%s:%s", phone, string(purpose))
}

// AcquireSendSlot returns false when another send for the same
// (phone, purpose) already holds the guard.
func (rs *RedisService) AcquireSendSlot(ctx context.Context, phone string, purpose types.Purpose, ttl time.Duration) (bool, error) {
  ok, err := rs.client.SetNX(ctx, sendSlotKey(phone, purpose), 1, ttl).Result()
  if err != nil {
    rs.log.Warn("Failed to acquire send slot", "error", err, "phone", phone, "purpose", purpose)
    return false, err
  }
  return ok, nil
}

// ReleaseSendSlot frees the guard early, e.g. after a failed delivery so the
// client may retry immediately.
func (rs *RedisService) ReleaseSendSlot(ctx context.Context, phone string, purpose types.Purpose) {
  if err := rs.client.Del(ctx, sendSlotKey(phone, purpose)).Err(); err != nil {
    rs.log.Warn("Failed to release send slot", "error", err, "phone", phone, "purpose", purpose)
  }
}

func (rs *RedisService) Close() error {
  return rs.client.Close()
}
