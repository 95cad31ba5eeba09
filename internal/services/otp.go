package services

import (
  "context"
  "crypto/rand"
  "fmt"
  "math/big"
  "time"

  "github.com/google/uuid"

  "github.com/dialforhelp/localpro-backend/internal/db"
  "github.com/dialforhelp/localpro-backend/internal/logger"
  "github.com/dialforhelp/localpro-backend/internal/normalization"
  "github.com/dialforhelp/localpro-backend/internal/repos"
  "github.com/dialforhelp/localpro-backend/internal/templates"
  "github.com/dialforhelp/localpro-backend/internal/types"
)

const (
  codeTTL            = 5 * time.Minute
  resendCooldown     = 30 * time.Second
  dailySendCap       = 10
  maxVerifyAttempts  = 5
  cooldownRetryAfter = 30
  dailyCapRetryAfter = 86400
)

type SendResult struct {
  ExpiresInSeconds int
  UserExists       bool
  Purpose          types.Purpose
}

type VerifyResult struct {
  Verified   bool
  UserExists bool
  Purpose    types.Purpose

  // Login path only.
  Tokens *TokenPair
  User   *types.SanitizedUser
}

type OtpService interface {
  SendCode(ctx context.Context, rawPhone string, purpose types.Purpose) (*SendResult, error)
  VerifyCode(ctx context.Context, rawPhone, code string, purpose types.Purpose) (*VerifyResult, error)
}

type otpService struct {
  log          *logger.Logger
  otpRepo      repos.OtpCodeRepo
  userRepo     repos.UserRepo
  authService  AuthService
  textService  TextService
  emailService EmailService
  redisService *db.RedisService
}

// textService is required for sends to succeed; emailService and
// redisService are optional and degrade to disabled when nil.
func NewOtpService(
  log *logger.Logger,
  otpRepo repos.OtpCodeRepo,
  userRepo repos.UserRepo,
  authService AuthService,
  textService TextService,
  emailService EmailService,
  redisService *db.RedisService,
) OtpService {
  serviceLog := log.With("service", "OtpService")
  return &otpService{
    log:          serviceLog,
    otpRepo:      otpRepo,
    userRepo:     userRepo,
    authService:  authService,
    textService:  textService,
    emailService: emailService,
    redisService: redisService,
  }
}

// generateCode returns a uniformly random 6 digit numeric string in the
// inclusive range 100000-999999.
func generateCode() (string, error) {
  n, err := rand.Int(rand.Reader, big.NewInt(900000))
  if err != nil {
    return "", fmt.Errorf("failed to generate random code: %w", err)
  }
  return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

//----------------------------------------------------------------------------------------------------------------------
// SendCode
//----------------------------------------------------------------------------------------------------------------------

func (os *otpService) SendCode(ctx context.Context, rawPhone string, purpose types.Purpose) (*SendResult, error) {
  os.log.Info("Starting SendCode now...", "purpose", purpose)

  //1) Normalize Phone
  phone, ok := normalization.NormalizePhone(rawPhone)
  if !ok {
    os.log.Warn("Phone number failed normalization, Cannot proceed.", "rawPhone", rawPhone)
    return nil, ErrInvalidPhone
  }
  if !purpose.Valid() {
    os.log.Warn("Invalid purpose, Cannot proceed.", "purpose", purpose)
    return nil, ErrInvalidPurpose
  }

  //2) Purpose Specific Precondition
  userExists, err := os.userRepo.PhoneExists(ctx, nil, phone)
  if err != nil {
    os.log.Warn("Failed to check account existence, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to check account existence: %w", err)
  }
  if purpose == types.PurposeSignup && userExists {
    os.log.Warn("Signup send for an already registered phone, Cannot proceed.", "phone", phone)
    return nil, ErrAlreadyRegistered
  }

  //3) Rate Limit Checks
  if err := os.checkSendAllowed(ctx, phone, purpose); err != nil {
    return nil, err
  }

  //4) Duplicate Send Guard (best effort, only when redis is configured)
  if os.redisService != nil {
    acquired, gErr := os.redisService.AcquireSendSlot(ctx, phone, purpose, resendCooldown)
    if gErr == nil && !acquired {
      os.log.Warn("Send slot already held for phone+purpose, treating as cooldown.", "phone", phone, "purpose", purpose)
      return nil, &RateLimitError{
        RetryAfter: cooldownRetryAfter,
        Message:    fmt.Sprintf("Please wait %d seconds before requesting a new code", cooldownRetryAfter),
      }
    }
  }

  //5) Generate + Persist New Code (supersede any live one)
  code, err := generateCode()
  if err != nil {
    os.log.Warn("Failed to generate code, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to generate code: %w", err)
  }
  if err := os.otpRepo.DeleteUnused(ctx, nil, phone, purpose); err != nil {
    os.log.Warn("Failed to supersede existing codes, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to supersede existing codes: %w", err)
  }
  record := &types.OtpCode{
    Phone:       phone,
    Code:        code,
    Purpose:     purpose,
    ExpiresAt:   time.Now().Add(codeTTL),
    Used:        false,
    Attempts:    0,
    MaxAttempts: maxVerifyAttempts,
  }
  created, err := os.otpRepo.Create(ctx, nil, record)
  if err != nil {
    os.log.Warn("Failed to persist new code, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to persist new code: %w", err)
  }

  //6) Deliver Via SMS
  body := fmt.Sprintf("Your LocalPro verification code is %s. It is valid for %d minutes.", code, int(codeTTL.Minutes()))
  var deliveryErr error
  if os.textService == nil {
    deliveryErr = fmt.Errorf("sms delivery is not configured")
  } else {
    deliveryErr = os.textService.SendText(ctx, phone, body)
  }
  if deliveryErr != nil {
    os.log.Warn("SMS delivery failed, removing just-created code.", "error", deliveryErr, "phone", phone)
    if dErr := os.otpRepo.FullDeleteByIDs(ctx, nil, []uuid.UUID{created.ID}); dErr != nil {
      os.log.Warn("Failed to remove code after delivery failure", "error", dErr)
    }
    if os.redisService != nil {
      os.redisService.ReleaseSendSlot(ctx, phone, purpose)
    }
    return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, deliveryErr)
  }

  os.log.Info("Successfully sent verification code", "phone", phone, "purpose", purpose)
  return &SendResult{
    ExpiresInSeconds: int(codeTTL.Seconds()),
    UserExists:       userExists,
    Purpose:          purpose,
  }, nil
}

// checkSendAllowed applies the rate limit rules in order, first violation
// wins. Both checks are advisory reads; see DESIGN.md for the accepted race.
func (os *otpService) checkSendAllowed(ctx context.Context, phone string, purpose types.Purpose) error {
  //1) Cooldown: an unused code created within the last 30 seconds
  latest, err := os.otpRepo.GetLatestUnused(ctx, nil, phone, purpose)
  if err != nil {
    return fmt.Errorf("Failed cooldown check: %w", err)
  }
  if latest != nil && time.Since(latest.CreatedAt) < resendCooldown {
    os.log.Warn("Cooldown violated", "phone", phone, "purpose", purpose, "createdAt", latest.CreatedAt)
    return &RateLimitError{
      RetryAfter: cooldownRetryAfter,
      Message:    fmt.Sprintf("Please wait %d seconds before requesting a new code", cooldownRetryAfter),
    }
  }

  //2) Daily cap: every code issued since local midnight counts
  now := time.Now()
  midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
  count, err := os.otpRepo.CountSince(ctx, nil, phone, purpose, midnight)
  if err != nil {
    return fmt.Errorf("Failed daily cap check: %w", err)
  }
  if count >= dailySendCap {
    os.log.Warn("Daily cap violated", "phone", phone, "purpose", purpose, "count", count)
    return &RateLimitError{
      RetryAfter: dailyCapRetryAfter,
      Message:    "Daily verification code limit reached, please try again tomorrow",
    }
  }
  return nil
}

//----------------------------------------------------------------------------------------------------------------------
// VerifyCode
//----------------------------------------------------------------------------------------------------------------------

func (os *otpService) VerifyCode(ctx context.Context, rawPhone, code string, purpose types.Purpose) (*VerifyResult, error) {
  os.log.Info("Starting VerifyCode now...", "purpose", purpose)

  //1) Normalize Phone
  phone, ok := normalization.NormalizePhone(rawPhone)
  if !ok {
    os.log.Warn("Phone number failed normalization, Cannot proceed.", "rawPhone", rawPhone)
    return nil, ErrInvalidPhone
  }
  if !purpose.Valid() {
    os.log.Warn("Invalid purpose, Cannot proceed.", "purpose", purpose)
    return nil, ErrInvalidPurpose
  }

  //2) Locate Live Record
  now := time.Now()
  active, err := os.otpRepo.GetActive(ctx, nil, phone, code, purpose, now)
  if err != nil {
    return nil, fmt.Errorf("Failed to look up verification code: %w", err)
  }
  if active == nil {
    return nil, os.classifyMiss(ctx, phone, code, purpose, now)
  }

  //3) Consume (irreversible; must precede all branching side effects)
  consumed, err := os.otpRepo.MarkUsed(ctx, nil, active.ID)
  if err != nil {
    return nil, fmt.Errorf("Failed to consume verification code: %w", err)
  }
  if !consumed {
    // A concurrent verify won the race.
    return nil, ErrCodeUsed
  }

  //4) Branch By Purpose
  switch purpose {
  case types.PurposeLogin:
    return os.completeLogin(ctx, phone)
  case types.PurposeSignup:
    userExists, eErr := os.userRepo.PhoneExists(ctx, nil, phone)
    if eErr != nil {
      return nil, fmt.Errorf("Failed to check account existence: %w", eErr)
    }
    if userExists {
      // Mirrors the dispatcher precondition, defense in depth.
      return nil, ErrAlreadyRegistered
    }
    return &VerifyResult{Verified: true, UserExists: false, Purpose: purpose}, nil
  case types.PurposeUnified, types.PurposeResetPassword, types.PurposeVerifyPhone:
    userExists, eErr := os.userRepo.PhoneExists(ctx, nil, phone)
    if eErr != nil {
      return nil, fmt.Errorf("Failed to check account existence: %w", eErr)
    }
    return &VerifyResult{Verified: true, UserExists: userExists, Purpose: purpose}, nil
  }
  return nil, ErrInvalidPurpose
}

// classifyMiss produces the precise failure for a submission that matched
// no live record: already used vs expired vs never existed.
func (os *otpService) classifyMiss(ctx context.Context, phone, code string, purpose types.Purpose, now time.Time) error {
  match, err := os.otpRepo.GetLatestMatch(ctx, nil, phone, code, purpose)
  if err != nil {
    return fmt.Errorf("Failed to classify verification miss: %w", err)
  }
  if match != nil && match.Used {
    os.log.Warn("Verification attempt against an already used code", "phone", phone, "purpose", purpose)
    return ErrCodeUsed
  }
  if match != nil && match.Expired(now) {
    os.log.Warn("Verification attempt against an expired code", "phone", phone, "purpose", purpose)
    return ErrCodeExpired
  }
  os.log.Warn("Verification attempt with an unknown code", "phone", phone, "purpose", purpose)
  return ErrCodeInvalid
}

// completeLogin runs after the code is consumed. A failure past this point
// leaves the code consumed: the caller has to request a fresh one.
func (os *otpService) completeLogin(ctx context.Context, phone string) (*VerifyResult, error) {
  user, err := os.userRepo.GetByPhone(ctx, nil, phone)
  if err != nil {
    return nil, fmt.Errorf("Failed to load account for login: %w", err)
  }
  if user == nil {
    // Phone is verified but nobody owns it yet; client routes to signup.
    return &VerifyResult{Verified: true, UserExists: false, Purpose: types.PurposeLogin}, nil
  }
  if user.Status != types.StatusActive {
    os.log.Warn("Login blocked by account status", "phone", phone, "status", user.Status)
    return nil, &AccountStateError{Status: user.Status}
  }

  now := time.Now()
  if err := os.userRepo.UpdateLastLogin(ctx, nil, user.ID, now); err != nil {
    return nil, fmt.Errorf("Failed to update last login: %w", err)
  }
  user.LastLogin = &now

  pair, err := os.authService.IssueTokens(ctx, nil, user)
  if err != nil {
    // The code stays consumed (fail closed); a new one must be requested.
    return nil, fmt.Errorf("Failed to issue session tokens: %w", err)
  }

  if os.emailService != nil && user.Email != "" {
    subject := "New sign-in to your LocalPro account"
    plain := templates.LoginAlertPlain(user.Name, now)
    html := templates.LoginAlertHTML(user.Name, now)
    if mErr := os.emailService.SendEmail(ctx, user.Email, subject, plain, html); mErr != nil {
      os.log.Warn("Login alert email failed, continuing anyway.", "error", mErr)
    }
  }

  sanitized := user.Sanitized()
  return &VerifyResult{
    Verified:   true,
    UserExists: true,
    Purpose:    types.PurposeLogin,
    Tokens:     pair,
    User:       &sanitized,
  }, nil
}
