package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/dialforhelp/localpro-backend/internal/logger"
  "github.com/dialforhelp/localpro-backend/internal/types"
)

type UserTokenRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, token *types.UserToken) (*types.UserToken, error)

  // READ
  GetByRefreshTokenHash(ctx context.Context, tx *gorm.DB, hash string) (*types.UserToken, error)
  GetByAccessToken(ctx context.Context, tx *gorm.DB, accessToken string) (*types.UserToken, error)

  // FULL (HARD) DELETE
  FullDeleteByIDs(ctx context.Context, tx *gorm.DB, tokenIDs []uuid.UUID) error
  DeleteExpiredForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) error
}

type userTokenRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
  repoLog := baseLog.With("repo", "UserTokenRepo")
  return &userTokenRepo{db: db, log: repoLog}
}

func (utr *userTokenRepo) conn(tx *gorm.DB) *gorm.DB {
  if tx != nil {
    return tx
  }
  return utr.db
}

func (utr *userTokenRepo) Create(ctx context.Context, tx *gorm.DB, token *types.UserToken) (*types.UserToken, error) {
  utr.log.Info("Starting Create UserToken now...")
  if token.ID == uuid.Nil {
    token.ID = uuid.New()
  }
  if err := utr.conn(tx).WithContext(ctx).Create(token).Error; err != nil {
    utr.log.Error("Failed to create user token", "error", err)
    return nil, err
  }
  utr.log.Info("Successfully created user token", "tokenID", token.ID, "userID", token.UserID)
  return token, nil
}

func (utr *userTokenRepo) GetByRefreshTokenHash(ctx context.Context, tx *gorm.DB, hash string) (*types.UserToken, error) {
  utr.log.Info("Starting GetByRefreshTokenHash for UserToken now...")
  var token types.UserToken
  err := utr.conn(tx).WithContext(ctx).Where("refresh_token_hash = ?", hash).First(&token).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    utr.log.Debug("No user token found by refresh token hash")
    return nil, nil
  }
  if err != nil {
    utr.log.Error("Failed to fetch user token by refresh token hash", "error", err)
    return nil, err
  }
  return &token, nil
}

func (utr *userTokenRepo) GetByAccessToken(ctx context.Context, tx *gorm.DB, accessToken string) (*types.UserToken, error) {
  utr.log.Info("Starting GetByAccessToken for UserToken now...")
  var token types.UserToken
  err := utr.conn(tx).WithContext(ctx).Where("access_token = ?", accessToken).First(&token).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    utr.log.Debug("No user token found by access token")
    return nil, nil
  }
  if err != nil {
    utr.log.Error("Failed to fetch user token by access token", "error", err)
    return nil, err
  }
  return &token, nil
}

func (utr *userTokenRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, tokenIDs []uuid.UUID) error {
  utr.log.Info("Starting FullDeleteByIDs for UserTokens now...")
  if len(tokenIDs) == 0 {
    utr.log.Debug("No user token IDs provided, skipping full delete")
    return nil
  }
  if err := utr.conn(tx).WithContext(ctx).
    Unscoped().
    Where("id IN (?)", tokenIDs).
    Delete(&types.UserToken{}).Error; err != nil {
    utr.log.Error("Failed to FULL delete user tokens by IDs", "error", err)
    return err
  }
  utr.log.Info("Successfully FULL deleted user tokens by IDs", "count", len(tokenIDs))
  return nil
}

func (utr *userTokenRepo) DeleteExpiredForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) error {
  utr.log.Info("Starting DeleteExpiredForUser for UserTokens now...", "userID", userID)
  if err := utr.conn(tx).WithContext(ctx).
    Unscoped().
    Where("user_id = ? AND expires_at < ?", userID, now).
    Delete(&types.UserToken{}).Error; err != nil {
    utr.log.Error("Failed to delete expired user tokens", "error", err)
    return err
  }
  return nil
}
