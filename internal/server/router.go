package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/dialforhelp/localpro-backend/internal/handlers"
  "github.com/dialforhelp/localpro-backend/internal/middleware"
)

type RouterConfig struct {
  OtpHandler     *handlers.OtpHandler
  AuthHandler    *handlers.AuthHandler
  MeHandler      *handlers.MeHandler
  AuthMiddleware *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  //-----------------------------------------
  // Cors Setup
  //-----------------------------------------
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:3000",
      "https://dialforhelp.lk",
      "https://www.dialforhelp.lk",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  //-----------------------------------------
  // Health Routes
  //-----------------------------------------
  router.GET("/healthz", handlers.Healthz)

  //-----------------------------------------
  // Public Routes
  //-----------------------------------------
  api := router.Group("/api")
  {
    api.POST("/otp/send", cfg.OtpHandler.SendOtp)
    api.POST("/otp/verify", cfg.OtpHandler.VerifyOtp)
    api.POST("/auth/refresh", cfg.AuthHandler.Refresh)
  }

  //------------------------------------------
  // Protected Routes
  //------------------------------------------
  protected := api.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  protected.POST("/auth/logout", cfg.AuthHandler.Logout)
  protected.GET("/me", cfg.MeHandler.GetMe)

  return router
}
