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

type UserRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error)

  // READ
  GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.User, error)
  GetByPhone(ctx context.Context, tx *gorm.DB, phone string) (*types.User, error)
  PhoneExists(ctx context.Context, tx *gorm.DB, phone string) (bool, error)

  // PARTIAL UPDATE
  UpdateLastLogin(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error
}

type userRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
  repoLog := baseLog.With("repo", "UserRepo")
  return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) conn(tx *gorm.DB) *gorm.DB {
  if tx != nil {
    return tx
  }
  return ur.db
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error) {
  ur.log.Info("Starting Create User now...")
  if user.ID == uuid.Nil {
    user.ID = uuid.New()
  }
  if err := ur.conn(tx).WithContext(ctx).Create(user).Error; err != nil {
    ur.log.Error("Failed to create user", "error", err)
    return nil, err
  }
  ur.log.Info("Successfully created user", "userID", user.ID)
  return user, nil
}

func (ur *userRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.User, error) {
  ur.log.Info("Starting GetByID for User now...")
  var user types.User
  err := ur.conn(tx).WithContext(ctx).Where("id = ?", userID).First(&user).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    ur.log.Debug("No user found by id", "userID", userID)
    return nil, nil
  }
  if err != nil {
    ur.log.Error("Failed to fetch user by id", "error", err)
    return nil, err
  }
  return &user, nil
}

func (ur *userRepo) GetByPhone(ctx context.Context, tx *gorm.DB, phone string) (*types.User, error) {
  ur.log.Info("Starting GetByPhone for User now...")
  var user types.User
  err := ur.conn(tx).WithContext(ctx).Where("phone_number = ?", phone).First(&user).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    ur.log.Debug("No user found by phone", "phone", phone)
    return nil, nil
  }
  if err != nil {
    ur.log.Error("Failed to fetch user by phone", "error", err)
    return nil, err
  }
  return &user, nil
}

func (ur *userRepo) PhoneExists(ctx context.Context, tx *gorm.DB, phone string) (bool, error) {
  ur.log.Info("Starting PhoneExists for User now...")
  var count int64
  if err := ur.conn(tx).WithContext(ctx).
    Model(&types.User{}).
    Where("phone_number = ?", phone).
    Count(&count).Error; err != nil {
    ur.log.Error("Failed to check phone existence", "error", err)
    return false, err
  }
  return count > 0, nil
}

func (ur *userRepo) UpdateLastLogin(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
  ur.log.Info("Starting UpdateLastLogin for User now...", "userID", userID)
  if err := ur.conn(tx).WithContext(ctx).
    Model(&types.User{}).
    Where("id = ?", userID).
    Update("last_login", at).Error; err != nil {
    ur.log.Error("Failed to update last login", "error", err)
    return err
  }
  ur.log.Info("Successfully updated last login", "userID", userID)
  return nil
}
