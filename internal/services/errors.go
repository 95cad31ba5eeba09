package services

import (
  "errors"
  "fmt"
)

// Failure taxonomy surfaced to the handlers. Everything a handler needs to
// pick a status code is encoded here; raw repo/provider errors never cross
// the HTTP boundary.
var (
  ErrInvalidPhone      = errors.New("invalid phone number format")
  ErrInvalidPurpose    = errors.New("invalid purpose")
  ErrCodeInvalid       = errors.New("invalid verification code")
  ErrCodeExpired       = errors.New("verification code has expired")
  ErrCodeUsed          = errors.New("verification code has already been used")
  ErrAlreadyRegistered = errors.New("an account with this phone number already exists")
  ErrDeliveryFailed    = errors.New("failed to send verification code")
  ErrInvalidSession    = errors.New("invalid or expired session")
)

// RateLimitError carries the machine readable retry hint so clients can
// show a countdown instead of a generic form error.
type RateLimitError struct {
  RetryAfter int
  Message    string
}

func (e *RateLimitError) Error() string {
  return e.Message
}

// AccountStateError reports an account that exists but cannot log in.
type AccountStateError struct {
  Status string
}

func (e *AccountStateError) Error() string {
  if e.Status == "blocked" {
    return "this account has been blocked, please contact support"
  }
  return fmt.Sprintf("this account is not active (current status: %s)", e.Status)
}

func (e *AccountStateError) Blocked() bool {
  return e.Status == "blocked"
}
