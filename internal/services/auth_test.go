package services

import (
  "context"
  "testing"
  "time"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/dialforhelp/localpro-backend/internal/logger"
  "github.com/dialforhelp/localpro-backend/internal/repos"
  "github.com/dialforhelp/localpro-backend/internal/requestdata"
  "github.com/dialforhelp/localpro-backend/internal/types"
)

type authTestEnv struct {
  db       *gorm.DB
  userRepo repos.UserRepo
  auth     AuthService
  user     *types.User
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
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
  userRepo := repos.NewUserRepo(gdb, log)
  userTokenRepo := repos.NewUserTokenRepo(gdb, log)
  auth := NewAuthService(gdb, log, userRepo, userTokenRepo, "test-secret", 15*time.Minute, 7*24*time.Hour)

  user, err := userRepo.Create(context.Background(), nil, &types.User{
    Name:        "Kumari Silva",
    Email:       "kumari@example.com",
    PhoneNumber: "+94712345678",
    Role:        types.RoleProfessional,
    Status:      types.StatusActive,
  })
  require.NoError(t, err)

  return &authTestEnv{db: gdb, userRepo: userRepo, auth: auth, user: user}
}

func TestIssueTokensRoundTrip(t *testing.T) {
  env := newAuthTestEnv(t)
  ctx := context.Background()

  pair, err := env.auth.IssueTokens(ctx, nil, env.user)
  require.NoError(t, err)
  assert.NotEmpty(t, pair.AccessToken)
  assert.NotEmpty(t, pair.RefreshToken)
  assert.Equal(t, int((15 * time.Minute).Seconds()), pair.ExpiresIn)

  authedCtx, err := env.auth.SetContextFromToken(ctx, pair.AccessToken)
  require.NoError(t, err)
  rd := requestdata.GetRequestData(authedCtx)
  require.NotNil(t, rd)
  assert.Equal(t, env.user.ID, rd.UserID)
  assert.Equal(t, env.user.PhoneNumber, rd.PhoneNumber)
  assert.Equal(t, types.RoleProfessional, rd.Role)
}

func TestRefreshTokenIsStoredHashed(t *testing.T) {
  env := newAuthTestEnv(t)

  pair, err := env.auth.IssueTokens(context.Background(), nil, env.user)
  require.NoError(t, err)

  var row types.UserToken
  require.NoError(t, env.db.Where("user_id = ?", env.user.ID).First(&row).Error)
  assert.NotEqual(t, pair.RefreshToken, row.RefreshTokenHash)
  assert.Equal(t, hashRefreshToken(pair.RefreshToken), row.RefreshTokenHash)
}

func TestRefreshRotation(t *testing.T) {
  env := newAuthTestEnv(t)
  ctx := context.Background()

  first, err := env.auth.IssueTokens(ctx, nil, env.user)
  require.NoError(t, err)

  second, err := env.auth.Refresh(ctx, first.RefreshToken)
  require.NoError(t, err)
  assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

  // The rotated-out refresh token is dead.
  _, err = env.auth.Refresh(ctx, first.RefreshToken)
  assert.ErrorIs(t, err, ErrInvalidSession)

  // The fresh one still works.
  _, err = env.auth.Refresh(ctx, second.RefreshToken)
  assert.NoError(t, err)
}

func TestRefreshUnknownToken(t *testing.T) {
  env := newAuthTestEnv(t)
  _, err := env.auth.Refresh(context.Background(), "never-issued")
  assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRefreshExpiredToken(t *testing.T) {
  env := newAuthTestEnv(t)
  ctx := context.Background()

  pair, err := env.auth.IssueTokens(ctx, nil, env.user)
  require.NoError(t, err)

  require.NoError(t, env.db.Model(&types.UserToken{}).
    Where("user_id = ?", env.user.ID).
    Update("expires_at", time.Now().Add(-time.Hour)).Error)

  _, err = env.auth.Refresh(ctx, pair.RefreshToken)
  assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRefreshInactiveUser(t *testing.T) {
  env := newAuthTestEnv(t)
  ctx := context.Background()

  pair, err := env.auth.IssueTokens(ctx, nil, env.user)
  require.NoError(t, err)

  require.NoError(t, env.db.Model(&types.User{}).
    Where("id = ?", env.user.ID).
    Update("status", types.StatusBlocked).Error)

  _, err = env.auth.Refresh(ctx, pair.RefreshToken)
  var ase *AccountStateError
  require.ErrorAs(t, err, &ase)
  assert.True(t, ase.Blocked())
}

func TestLogoutDeletesSession(t *testing.T) {
  env := newAuthTestEnv(t)
  ctx := context.Background()

  pair, err := env.auth.IssueTokens(ctx, nil, env.user)
  require.NoError(t, err)

  authedCtx, err := env.auth.SetContextFromToken(ctx, pair.AccessToken)
  require.NoError(t, err)
  require.NoError(t, env.auth.Logout(authedCtx))

  var count int64
  require.NoError(t, env.db.Model(&types.UserToken{}).Where("user_id = ?", env.user.ID).Count(&count).Error)
  assert.Zero(t, count)

  // And the refresh token that rode along is gone too.
  _, err = env.auth.Refresh(ctx, pair.RefreshToken)
  assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSetContextFromTokenRejectsGarbage(t *testing.T) {
  env := newAuthTestEnv(t)
  ctx := context.Background()

  _, err := env.auth.SetContextFromToken(ctx, "")
  assert.Error(t, err)

  _, err = env.auth.SetContextFromToken(ctx, "not.a.jwt")
  assert.Error(t, err)
}

func TestSetContextFromTokenRejectsWrongKey(t *testing.T) {
  env := newAuthTestEnv(t)
  ctx := context.Background()

  otherLog := logger.NewNop()
  otherAuth := NewAuthService(env.db, otherLog,
    repos.NewUserRepo(env.db, otherLog),
    repos.NewUserTokenRepo(env.db, otherLog),
    "different-secret", 15*time.Minute, 7*24*time.Hour)

  pair, err := otherAuth.IssueTokens(ctx, nil, env.user)
  require.NoError(t, err)

  _, err = env.auth.SetContextFromToken(ctx, pair.AccessToken)
  assert.Error(t, err)
}
