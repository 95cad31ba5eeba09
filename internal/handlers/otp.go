package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/dialforhelp/localpro-backend/internal/services"
  "github.com/dialforhelp/localpro-backend/internal/types"
)

type OtpHandler struct {
  otpService services.OtpService
}

func NewOtpHandler(otpService services.OtpService) *OtpHandler {
  return &OtpHandler{otpService: otpService}
}

func (oh *OtpHandler) SendOtp(c *gin.Context) {
  var req struct {
    PhoneNumber string `json:"phoneNumber"`
    Purpose     string `json:"purpose,omitempty"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
    return
  }
  purpose := types.ParsePurpose(req.Purpose)

  result, err := oh.otpService.SendCode(c.Request.Context(), req.PhoneNumber, purpose)
  if err != nil {
    status, body := errorResponse(err)
    c.JSON(status, body)
    return
  }
  c.JSON(http.StatusOK, gin.H{
    "success":          true,
    "message":          "Verification code sent",
    "expiresInSeconds": result.ExpiresInSeconds,
    "userExists":       result.UserExists,
    "purpose":          result.Purpose,
  })
}

func (oh *OtpHandler) VerifyOtp(c *gin.Context) {
  var req struct {
    PhoneNumber string `json:"phoneNumber"`
    Otp         string `json:"otp"`
    Purpose     string `json:"purpose,omitempty"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
    return
  }
  purpose := types.ParsePurpose(req.Purpose)

  result, err := oh.otpService.VerifyCode(c.Request.Context(), req.PhoneNumber, req.Otp, purpose)
  if err != nil {
    status, body := errorResponse(err)
    c.JSON(status, body)
    return
  }

  body := gin.H{
    "success":    true,
    "message":    "Verification successful",
    "verified":   result.Verified,
    "userExists": result.UserExists,
    "purpose":    result.Purpose,
  }
  if result.Tokens != nil {
    body["token"] = result.Tokens.AccessToken
    body["refreshToken"] = result.Tokens.RefreshToken
    body["expiresIn"] = result.Tokens.ExpiresIn
  }
  if result.User != nil {
    body["user"] = result.User
  }
  c.JSON(http.StatusOK, body)
}

// errorResponse converts the service failure taxonomy into the HTTP error
// envelope. No raw error text from collaborators leaks to clients.
func errorResponse(err error) (int, gin.H) {
  var rle *services.RateLimitError
  if errors.As(err, &rle) {
    return http.StatusTooManyRequests, gin.H{
      "success":    false,
      "message":    rle.Message,
      "retryAfter": rle.RetryAfter,
    }
  }
  var ase *services.AccountStateError
  if errors.As(err, &ase) {
    return http.StatusForbidden, gin.H{"success": false, "message": ase.Error()}
  }
  switch {
  case errors.Is(err, services.ErrInvalidPhone),
    errors.Is(err, services.ErrInvalidPurpose),
    errors.Is(err, services.ErrCodeInvalid),
    errors.Is(err, services.ErrCodeExpired),
    errors.Is(err, services.ErrCodeUsed):
    return http.StatusBadRequest, gin.H{"success": false, "message": err.Error()}
  case errors.Is(err, services.ErrAlreadyRegistered):
    return http.StatusConflict, gin.H{"success": false, "message": services.ErrAlreadyRegistered.Error()}
  case errors.Is(err, services.ErrDeliveryFailed):
    return http.StatusInternalServerError, gin.H{"success": false, "message": services.ErrDeliveryFailed.Error()}
  }
  return http.StatusInternalServerError, gin.H{"success": false, "message": "something went wrong, please try again"}
}
