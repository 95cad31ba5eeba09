package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

type OtpCode struct {
  gorm.Model
  ID                  uuid.UUID                 `gorm:"type:uuid;primaryKey"`

  Phone               string                    `gorm:"index:idx_otp_phone_purpose;not null;column:phone"`
  Code                string                    `gorm:"not null;column:code"`
  Purpose             Purpose                   `gorm:"index:idx_otp_phone_purpose;not null;column:purpose"`
  ExpiresAt           time.Time                 `gorm:"not null;column:expires_at"`
  Used                bool                      `gorm:"not null;default:false;column:used"`
  Attempts            int                       `gorm:"not null;default:0;column:attempts"`
  MaxAttempts         int                       `gorm:"not null;default:5;column:max_attempts"`

  CreatedAt           time.Time                 `gorm:"not null;index"`
  UpdatedAt           time.Time                 `gorm:"not null"`
}

func (OtpCode) TableName() string {
  return "otp_code"
}

func (o *OtpCode) Expired(now time.Time) bool {
  return now.After(o.ExpiresAt)
}
