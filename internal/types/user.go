package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

const (
  RoleCustomer     = "customer"
  RoleProfessional = "professional"
  RoleAdmin        = "admin"
)

const (
  StatusActive    = "active"
  StatusBlocked   = "blocked"
  StatusSuspended = "suspended"
  StatusPending   = "pending"
)

type User struct {
  gorm.Model
  ID                  uuid.UUID                 `gorm:"type:uuid;primaryKey" json:"id"`

  Name                string                    `gorm:"not null;column:name" json:"name"`
  Email               string                    `gorm:"column:email" json:"email"`
  PhoneNumber         string                    `gorm:"uniqueIndex;not null;column:phone_number" json:"phoneNumber"`
  Role                string                    `gorm:"not null;default:customer;column:role" json:"role"`
  Status              string                    `gorm:"not null;default:active;column:status" json:"status"`
  Location            datatypes.JSON            `gorm:"column:location" json:"location,omitempty"`
  LastLogin           *time.Time                `gorm:"column:last_login" json:"lastLogin,omitempty"`

  CreatedAt           time.Time                 `gorm:"not null" json:"createdAt"`
  UpdatedAt           time.Time                 `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string {
  return "user"
}

// SanitizedUser is the profile shape returned to clients. Nothing beyond
// these fields ever crosses the HTTP boundary.
type SanitizedUser struct {
  ID                  uuid.UUID                 `json:"id"`
  Name                string                    `json:"name"`
  Email               string                    `json:"email"`
  PhoneNumber         string                    `json:"phoneNumber"`
  Role                string                    `json:"role"`
  Location            datatypes.JSON            `json:"location,omitempty"`
  Status              string                    `json:"status"`
  LastLogin           *time.Time                `json:"lastLogin,omitempty"`
}

func (u *User) Sanitized() SanitizedUser {
  return SanitizedUser{
    ID:          u.ID,
    Name:        u.Name,
    Email:       u.Email,
    PhoneNumber: u.PhoneNumber,
    Role:        u.Role,
    Location:    u.Location,
    Status:      u.Status,
    LastLogin:   u.LastLogin,
  }
}
