package types

import "strings"

// Purpose tags why a verification code was requested. The set is closed so
// every branch on it can be checked exhaustively.
type Purpose string

const (
  PurposeSignup        Purpose = "SIGNUP"
  PurposeLogin         Purpose = "LOGIN"
  PurposeResetPassword Purpose = "RESET_PASSWORD"
  PurposeVerifyPhone   Purpose = "VERIFY_PHONE"
  PurposeUnified       Purpose = "UNIFIED"
)

// ParsePurpose maps client input onto the closed purpose set. Empty input
// defaults to the unified "prove phone ownership" flow.
func ParsePurpose(s string) Purpose {
  v := strings.ToUpper(strings.TrimSpace(s))
  if v == "" {
    return PurposeUnified
  }
  return Purpose(v)
}

func (p Purpose) Valid() bool {
  switch p {
  case PurposeSignup, PurposeLogin, PurposeResetPassword, PurposeVerifyPhone, PurposeUnified:
    return true
  }
  return false
}
