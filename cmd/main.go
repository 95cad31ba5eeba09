package main

import (
  "fmt"
  "os"

  "github.com/dialforhelp/localpro-backend/internal/config"
  "github.com/dialforhelp/localpro-backend/internal/db"
  "github.com/dialforhelp/localpro-backend/internal/handlers"
  "github.com/dialforhelp/localpro-backend/internal/logger"
  "github.com/dialforhelp/localpro-backend/internal/middleware"
  "github.com/dialforhelp/localpro-backend/internal/repos"
  "github.com/dialforhelp/localpro-backend/internal/server"
  "github.com/dialforhelp/localpro-backend/internal/services"
)

func main() {
  // Logger Setup
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Configuration
  log.Info("Attempting to load configuration for Main now...")
  cfg, err := config.Load(log)
  if err != nil {
    log.Error("Fatal error: Cannot load configuration", "error", err)
    os.Exit(1)
  }
  log.Info("Configuration Loaded For Main Successful :)")

  // Postgres Setup
  log.Info("Setting Up Postgres from Main now...")
  postgresService, err := db.NewPostgresService(cfg, log)
  if err != nil {
    log.Error("Fatal error: Cannot init Postgres", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()
  log.Info("Postgres Setup From Main Successful :)")

  // Redis Setup (optional, best-effort duplicate-send guard)
  var redisService *db.RedisService
  if cfg.RedisAddress != "" {
    log.Info("Setting Up Redis from Main now...")
    redisService, err = db.NewRedisService(cfg, log)
    if err != nil {
      log.Warn("Could not init RedisService, duplicate-send guard disabled", "error", err)
      redisService = nil
    } else {
      log.Info("Redis Setup From Main Successful :)")
    }
  }

  // Repositories Setup
  log.Info("Setting Up Repositories from Main now...")
  userRepo := repos.NewUserRepo(thePG, log)
  otpCodeRepo := repos.NewOtpCodeRepo(thePG, log)
  userTokenRepo := repos.NewUserTokenRepo(thePG, log)
  log.Info("Repositories Set Up From Main Successful :)")

  // Services Setup
  log.Info("Setting up Services from Main now...")
  textService, err := services.NewTextService(cfg, log)
  if err != nil {
    log.Warn("Could not init TextService, code delivery will fail", "error", err)
  }
  emailService, err := services.NewEmailService(cfg, log)
  if err != nil {
    log.Warn("Could not init EmailService, login alerts disabled", "error", err)
  }
  authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
  otpService := services.NewOtpService(log, otpCodeRepo, userRepo, authService, textService, emailService, redisService)
  log.Info("Services Set Up From Main Successful :)")

  // Handler Setup
  log.Info("Setting Up Handlers from Main now...")
  otpHandler := handlers.NewOtpHandler(otpService)
  authHandler := handlers.NewAuthHandler(authService)
  meHandler := handlers.NewMeHandler(userRepo)
  log.Info("Handlers Set Up From Main Successful :)")

  // MiddleWare Setup
  log.Info("Setting Up Middleware from Main now...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)
  log.Info("Middleware Set Up From Main Successful :)")

  // Router Setup
  log.Info("Setting Up Router from Main now...")
  router := server.NewRouter(server.RouterConfig{
    OtpHandler:     otpHandler,
    AuthHandler:    authHandler,
    MeHandler:      meHandler,
    AuthMiddleware: authMiddleware,
  })
  log.Info("Router Set Up From Main Successful :)")

  fmt.Printf("Server listening on :%s\n", cfg.Port)
  if err := router.Run(":" + cfg.Port); err != nil {
    log.Warn("Server failed", "error", err)
  }

  // On Shutdown
  if redisService != nil {
    _ = redisService.Close()
  }
}
