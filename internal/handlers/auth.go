package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/dialforhelp/localpro-backend/internal/services"
)

type AuthHandler struct {
  authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
  return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Refresh(c *gin.Context) {
  var req struct {
    RefreshToken string `json:"refreshToken"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
    return
  }
  pair, err := ah.authService.Refresh(c.Request.Context(), req.RefreshToken)
  if err != nil {
    var ase *services.AccountStateError
    if errors.As(err, &ase) {
      c.JSON(http.StatusForbidden, gin.H{"success": false, "message": ase.Error()})
      return
    }
    c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": services.ErrInvalidSession.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{
    "success":      true,
    "token":        pair.AccessToken,
    "refreshToken": pair.RefreshToken,
    "expiresIn":    pair.ExpiresIn,
  })
}

func (ah *AuthHandler) Logout(c *gin.Context) {
  if err := ah.authService.Logout(c.Request.Context()); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "logout failed"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out successfully"})
}
