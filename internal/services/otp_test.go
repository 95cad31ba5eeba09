package services

import (
  "context"
  "errors"
  "fmt"
  "regexp"
  "testing"
  "time"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/dialforhelp/localpro-backend/internal/logger"
  "github.com/dialforhelp/localpro-backend/internal/repos"
  "github.com/dialforhelp/localpro-backend/internal/types"
)

const testPhone = "+94771234567"

type fakeTextService struct {
  fail     bool
  sent     int
  lastTo   string
  lastBody string
}

func (f *fakeTextService) SendText(ctx context.Context, toNumber string, body string) error {
  if f.fail {
    return fmt.Errorf("provider unavailable")
  }
  f.sent++
  f.lastTo = toNumber
  f.lastBody = body
  return nil
}

type fakeEmailService struct {
  sent   int
  lastTo string
}

func (f *fakeEmailService) SendEmail(ctx context.Context, toEmail, subject, plainText, htmlContent string) error {
  f.sent++
  f.lastTo = toEmail
  return nil
}

type otpTestEnv struct {
  db       *gorm.DB
  text     *fakeTextService
  email    *fakeEmailService
  otpRepo  repos.OtpCodeRepo
  userRepo repos.UserRepo
  auth     AuthService
  otp      OtpService
}

func newOtpTestEnv(t *testing.T) *otpTestEnv {
  t.Helper()
  gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  require.NoError(t, err)
  sqlDB, err := gdb.DB()
  require.NoError(t, err)
  sqlDB.SetMaxOpenConns(1)
  require.NoError(t, gdb.AutoMigrate(&types.User{}, &types.OtpCode{}, &types.UserToken{}))

  log := logger.NewNop()
  otpRepo := repos.NewOtpCodeRepo(gdb, log)
  userRepo := repos.NewUserRepo(gdb, log)
  userTokenRepo := repos.NewUserTokenRepo(gdb, log)
  auth := NewAuthService(gdb, log, userRepo, userTokenRepo, "test-secret", 15*time.Minute, 7*24*time.Hour)
  text := &fakeTextService{}
  email := &fakeEmailService{}
  otp := NewOtpService(log, otpRepo, userRepo, auth, text, email, nil)

  return &otpTestEnv{
    db:       gdb,
    text:     text,
    email:    email,
    otpRepo:  otpRepo,
    userRepo: userRepo,
    auth:     auth,
    otp:      otp,
  }
}

var codePattern = regexp.MustCompile(`\d{6}`)

func (env *otpTestEnv) lastSentCode(t *testing.T) string {
  t.Helper()
  code := codePattern.FindString(env.text.lastBody)
  require.Len(t, code, 6, "SMS body should carry a 6 digit code")
  return code
}

// backdateLatest moves the newest unused code's created_at into the past so
// a follow-up send clears the cooldown.
func (env *otpTestEnv) backdateLatest(t *testing.T, phone string, purpose types.Purpose, age time.Duration) {
  t.Helper()
  var row types.OtpCode
  require.NoError(t, env.db.
    Where("phone = ? AND purpose = ? AND used = ?", phone, purpose, false).
    Order("created_at DESC").
    First(&row).Error)
  require.NoError(t, env.db.Model(&types.OtpCode{}).
    Where("id = ?", row.ID).
    Update("created_at", time.Now().Add(-age)).Error)
}

func (env *otpTestEnv) createUser(t *testing.T, status string) *types.User {
  t.Helper()
  user, err := env.userRepo.Create(context.Background(), nil, &types.User{
    Name:        "Nimal Perera",
    Email:       "nimal@example.com",
    PhoneNumber: testPhone,
    Role:        types.RoleCustomer,
    Status:      status,
  })
  require.NoError(t, err)
  return user
}

func TestSendCodeSuccess(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  result, err := env.otp.SendCode(ctx, "0771234567", types.PurposeUnified)
  require.NoError(t, err)
  assert.Equal(t, 300, result.ExpiresInSeconds)
  assert.False(t, result.UserExists)
  assert.Equal(t, types.PurposeUnified, result.Purpose)

  assert.Equal(t, 1, env.text.sent)
  assert.Equal(t, testPhone, env.text.lastTo, "SMS must go to the canonical phone")
  assert.Contains(t, env.text.lastBody, env.lastSentCode(t))
}

func TestSendCodeInvalidPhone(t *testing.T) {
  env := newOtpTestEnv(t)
  _, err := env.otp.SendCode(context.Background(), "not-a-phone", types.PurposeUnified)
  assert.ErrorIs(t, err, ErrInvalidPhone)
  assert.Zero(t, env.text.sent)
}

func TestSendCodeInvalidPurpose(t *testing.T) {
  env := newOtpTestEnv(t)
  _, err := env.otp.SendCode(context.Background(), testPhone, types.Purpose("BOGUS"))
  assert.ErrorIs(t, err, ErrInvalidPurpose)
}

func TestSendCodeCooldown(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  require.NoError(t, err)

  _, err = env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  var rle *RateLimitError
  require.ErrorAs(t, err, &rle)
  assert.Equal(t, 30, rle.RetryAfter)
}

func TestSendCodeCooldownClearsAfterWindow(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  require.NoError(t, err)
  env.backdateLatest(t, testPhone, types.PurposeUnified, 31*time.Second)

  _, err = env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  assert.NoError(t, err)
}

func TestSendCodeDailyCap(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  // Nine earlier sends today, all clear of the cooldown window.
  for i := 0; i < 9; i++ {
    _, err := env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
    require.NoError(t, err)
    env.backdateLatest(t, testPhone, types.PurposeUnified, time.Duration(40+i)*time.Second)
  }

  // The tenth send of the day still succeeds.
  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  require.NoError(t, err)
  env.backdateLatest(t, testPhone, types.PurposeUnified, 40*time.Second)

  // The eleventh is capped until tomorrow.
  _, err = env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  var rle *RateLimitError
  require.ErrorAs(t, err, &rle)
  assert.Equal(t, 86400, rle.RetryAfter)
}

func TestSendCodeDeliveryFailure(t *testing.T) {
  env := newOtpTestEnv(t)
  env.text.fail = true

  _, err := env.otp.SendCode(context.Background(), testPhone, types.PurposeUnified)
  assert.ErrorIs(t, err, ErrDeliveryFailed)

  // No live code may remain after a failed delivery.
  var count int64
  require.NoError(t, env.db.Model(&types.OtpCode{}).
    Where("phone = ? AND used = ?", testPhone, false).
    Count(&count).Error)
  assert.Zero(t, count)
}

func TestSendCodeSignupAlreadyRegistered(t *testing.T) {
  env := newOtpTestEnv(t)
  env.createUser(t, types.StatusActive)

  _, err := env.otp.SendCode(context.Background(), testPhone, types.PurposeSignup)
  assert.ErrorIs(t, err, ErrAlreadyRegistered)
  assert.Zero(t, env.text.sent, "no code may be generated for a registered signup phone")
}

func TestSendCodeSignupThenImmediateResend(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  // No account exists: the first signup send succeeds with userExists=false.
  result, err := env.otp.SendCode(ctx, testPhone, types.PurposeSignup)
  require.NoError(t, err)
  assert.False(t, result.UserExists)

  // Still no account, so the second send is a cooldown, not a conflict.
  _, err = env.otp.SendCode(ctx, testPhone, types.PurposeSignup)
  var rle *RateLimitError
  require.ErrorAs(t, err, &rle)
  assert.Equal(t, 30, rle.RetryAfter)
  assert.NotErrorIs(t, err, ErrAlreadyRegistered)
}

func TestVerifyCodeSingleUse(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  require.NoError(t, err)
  code := env.lastSentCode(t)

  result, err := env.otp.VerifyCode(ctx, testPhone, code, types.PurposeUnified)
  require.NoError(t, err)
  assert.True(t, result.Verified)
  assert.False(t, result.UserExists)
  assert.Nil(t, result.Tokens)

  _, err = env.otp.VerifyCode(ctx, testPhone, code, types.PurposeUnified)
  assert.ErrorIs(t, err, ErrCodeUsed)
}

func TestVerifyCodeExpired(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  require.NoError(t, err)
  code := env.lastSentCode(t)

  require.NoError(t, env.db.Model(&types.OtpCode{}).
    Where("phone = ?", testPhone).
    Update("expires_at", time.Now().Add(-time.Minute)).Error)

  _, err = env.otp.VerifyCode(ctx, testPhone, code, types.PurposeUnified)
  assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestVerifyCodeUnknown(t *testing.T) {
  env := newOtpTestEnv(t)
  _, err := env.otp.VerifyCode(context.Background(), testPhone, "123456", types.PurposeUnified)
  assert.ErrorIs(t, err, ErrCodeInvalid)
}

func TestVerifyCodeSupersededCodeRejected(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  require.NoError(t, err)
  firstCode := env.lastSentCode(t)
  env.backdateLatest(t, testPhone, types.PurposeUnified, 31*time.Second)

  _, err = env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  require.NoError(t, err)
  secondCode := env.lastSentCode(t)
  require.NotEqual(t, firstCode, secondCode)

  // The first code was superseded and must no longer verify.
  _, err = env.otp.VerifyCode(ctx, testPhone, firstCode, types.PurposeUnified)
  require.Error(t, err)

  // The replacement still works.
  result, err := env.otp.VerifyCode(ctx, testPhone, secondCode, types.PurposeUnified)
  require.NoError(t, err)
  assert.True(t, result.Verified)
}

func TestVerifyCodeLoginNoAccount(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeLogin)
  require.NoError(t, err)

  result, err := env.otp.VerifyCode(ctx, testPhone, env.lastSentCode(t), types.PurposeLogin)
  require.NoError(t, err)
  assert.True(t, result.Verified)
  assert.False(t, result.UserExists)
  assert.Nil(t, result.Tokens, "no session without an account")
  assert.Nil(t, result.User)
}

func TestVerifyCodeLoginBlockedAccount(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()
  env.createUser(t, types.StatusBlocked)

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeLogin)
  require.NoError(t, err)

  _, err = env.otp.VerifyCode(ctx, testPhone, env.lastSentCode(t), types.PurposeLogin)
  var ase *AccountStateError
  require.ErrorAs(t, err, &ase)
  assert.True(t, ase.Blocked())

  var tokens int64
  require.NoError(t, env.db.Model(&types.UserToken{}).Count(&tokens).Error)
  assert.Zero(t, tokens, "a blocked account must not receive a session")
}

func TestVerifyCodeLoginInactiveAccount(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()
  env.createUser(t, types.StatusSuspended)

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeLogin)
  require.NoError(t, err)

  _, err = env.otp.VerifyCode(ctx, testPhone, env.lastSentCode(t), types.PurposeLogin)
  var ase *AccountStateError
  require.ErrorAs(t, err, &ase)
  assert.False(t, ase.Blocked())
  assert.Contains(t, ase.Error(), types.StatusSuspended)
}

func TestVerifyCodeLoginSuccess(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()
  user := env.createUser(t, types.StatusActive)

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeLogin)
  require.NoError(t, err)

  result, err := env.otp.VerifyCode(ctx, testPhone, env.lastSentCode(t), types.PurposeLogin)
  require.NoError(t, err)
  assert.True(t, result.Verified)
  assert.True(t, result.UserExists)
  require.NotNil(t, result.Tokens)
  require.NotNil(t, result.User)
  assert.Equal(t, user.ID, result.User.ID)
  assert.Equal(t, testPhone, result.User.PhoneNumber)
  assert.NotNil(t, result.User.LastLogin)

  // The access token is self-contained and verifies without the DB.
  authedCtx, err := env.auth.SetContextFromToken(ctx, result.Tokens.AccessToken)
  require.NoError(t, err)
  require.NotNil(t, authedCtx)

  assert.Equal(t, 1, env.email.sent)
  assert.Equal(t, "nimal@example.com", env.email.lastTo)
}

func TestVerifyCodeLoginReplayAfterSuccess(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()
  env.createUser(t, types.StatusActive)

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeLogin)
  require.NoError(t, err)
  code := env.lastSentCode(t)

  _, err = env.otp.VerifyCode(ctx, testPhone, code, types.PurposeLogin)
  require.NoError(t, err)

  _, err = env.otp.VerifyCode(ctx, testPhone, code, types.PurposeLogin)
  assert.ErrorIs(t, err, ErrCodeUsed)
}

func TestVerifyCodeSignupDefenseInDepth(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  // The code goes out before the account exists...
  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeSignup)
  require.NoError(t, err)
  code := env.lastSentCode(t)

  // ...and the account appears before the verify lands.
  env.createUser(t, types.StatusActive)

  _, err = env.otp.VerifyCode(ctx, testPhone, code, types.PurposeSignup)
  assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestVerifyCodeUnifiedReportsUserExists(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()
  env.createUser(t, types.StatusActive)

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  require.NoError(t, err)

  result, err := env.otp.VerifyCode(ctx, testPhone, env.lastSentCode(t), types.PurposeUnified)
  require.NoError(t, err)
  assert.True(t, result.Verified)
  assert.True(t, result.UserExists)
  assert.Nil(t, result.Tokens, "unified verification never issues a session")
}

func TestVerifyCodePurposeMismatch(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeLogin)
  require.NoError(t, err)
  code := env.lastSentCode(t)

  // A code issued for LOGIN is not valid for SIGNUP.
  _, err = env.otp.VerifyCode(ctx, testPhone, code, types.PurposeSignup)
  assert.ErrorIs(t, err, ErrCodeInvalid)
}

func TestSendCodePurposesAreIndependent(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeLogin)
  require.NoError(t, err)

  // A send for a different purpose is not throttled by the first.
  _, err = env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  assert.NoError(t, err)
}

func TestGenerateCodeRange(t *testing.T) {
  for i := 0; i < 100; i++ {
    code, err := generateCode()
    require.NoError(t, err)
    require.Len(t, code, 6)
    require.Regexp(t, `^[1-9][0-9]{5}$`, code)
  }
}

func TestVerifyErrorsAreTerminalPerAttempt(t *testing.T) {
  env := newOtpTestEnv(t)
  ctx := context.Background()

  _, err := env.otp.SendCode(ctx, testPhone, types.PurposeUnified)
  require.NoError(t, err)
  code := env.lastSentCode(t)

  // A wrong submission does not consume the live code.
  wrong := "000000"
  if wrong == code {
    wrong = "000001"
  }
  _, err = env.otp.VerifyCode(ctx, testPhone, wrong, types.PurposeUnified)
  require.Error(t, err)
  assert.True(t, errors.Is(err, ErrCodeInvalid))

  result, err := env.otp.VerifyCode(ctx, testPhone, code, types.PurposeUnified)
  require.NoError(t, err)
  assert.True(t, result.Verified)
}
