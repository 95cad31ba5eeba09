package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/dialforhelp/localpro-backend/internal/repos"
  "github.com/dialforhelp/localpro-backend/internal/requestdata"
)

type MeHandler struct {
  userRepo repos.UserRepo
}

func NewMeHandler(userRepo repos.UserRepo) *MeHandler {
  return &MeHandler{userRepo: userRepo}
}

func (mh *MeHandler) GetMe(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing request identity"})
    return
  }
  user, err := mh.userRepo.GetByID(c.Request.Context(), nil, rd.UserID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to load profile"})
    return
  }
  if user == nil {
    c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "account not found"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": true, "user": user.Sanitized()})
}
