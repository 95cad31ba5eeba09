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

type OtpCodeRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, code *types.OtpCode) (*types.OtpCode, error)

  // READ
  GetActive(ctx context.Context, tx *gorm.DB, phone, code string, purpose types.Purpose, now time.Time) (*types.OtpCode, error)
  GetLatestMatch(ctx context.Context, tx *gorm.DB, phone, code string, purpose types.Purpose) (*types.OtpCode, error)
  GetLatestUnused(ctx context.Context, tx *gorm.DB, phone string, purpose types.Purpose) (*types.OtpCode, error)
  CountSince(ctx context.Context, tx *gorm.DB, phone string, purpose types.Purpose, since time.Time) (int64, error)

  // PARTIAL UPDATE
  MarkUsed(ctx context.Context, tx *gorm.DB, codeID uuid.UUID) (bool, error)

  // SOFT DELETE
  DeleteUnused(ctx context.Context, tx *gorm.DB, phone string, purpose types.Purpose) error

  // FULL (HARD) DELETE
  FullDeleteByIDs(ctx context.Context, tx *gorm.DB, codeIDs []uuid.UUID) error
}

type otpCodeRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewOtpCodeRepo(db *gorm.DB, baseLog *logger.Logger) OtpCodeRepo {
  repoLog := baseLog.With("repo", "OtpCodeRepo")
  return &otpCodeRepo{db: db, log: repoLog}
}

func (ocr *otpCodeRepo) conn(tx *gorm.DB) *gorm.DB {
  if tx != nil {
    return tx
  }
  return ocr.db
}

// ----------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------

func (ocr *otpCodeRepo) Create(ctx context.Context, tx *gorm.DB, code *types.OtpCode) (*types.OtpCode, error) {
  ocr.log.Info("Starting Create OtpCode now...")
  if code.ID == uuid.Nil {
    code.ID = uuid.New()
  }
  if err := ocr.conn(tx).WithContext(ctx).Create(code).Error; err != nil {
    ocr.log.Error("Failed to create otp code", "error", err)
    return nil, err
  }
  ocr.log.Info("Successfully created otp code", "phone", code.Phone, "purpose", code.Purpose)
  return code, nil
}

// ----------------------------------------------------------------
// READ
// ----------------------------------------------------------------

// GetActive returns the single unused, unexpired record matching
// (phone, code, purpose), or nil when none exists.
func (ocr *otpCodeRepo) GetActive(ctx context.Context, tx *gorm.DB, phone, code string, purpose types.Purpose, now time.Time) (*types.OtpCode, error) {
  ocr.log.Info("Starting GetActive for OtpCode now...")
  var result types.OtpCode
  err := ocr.conn(tx).WithContext(ctx).
    Where("phone = ? AND code = ? AND purpose = ? AND used = ? AND expires_at > ?", phone, code, purpose, false, now).
    Order("created_at DESC").
    First(&result).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    ocr.log.Debug("No active otp code found", "phone", phone, "purpose", purpose)
    return nil, nil
  }
  if err != nil {
    ocr.log.Error("Failed to fetch active otp code", "error", err)
    return nil, err
  }
  return &result, nil
}

// GetLatestMatch ignores the used/expiry constraints. It exists purely so
// the verification engine can tell "already used" and "expired" apart from
// "never existed".
func (ocr *otpCodeRepo) GetLatestMatch(ctx context.Context, tx *gorm.DB, phone, code string, purpose types.Purpose) (*types.OtpCode, error) {
  ocr.log.Info("Starting GetLatestMatch for OtpCode now...")
  var result types.OtpCode
  err := ocr.conn(tx).WithContext(ctx).
    Unscoped().
    Where("phone = ? AND code = ? AND purpose = ?", phone, code, purpose).
    Order("created_at DESC").
    First(&result).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    ocr.log.Debug("No matching otp code found at all", "phone", phone, "purpose", purpose)
    return nil, nil
  }
  if err != nil {
    ocr.log.Error("Failed to fetch matching otp code", "error", err)
    return nil, err
  }
  return &result, nil
}

// GetLatestUnused returns the newest unused record for (phone, purpose)
// regardless of expiry. The rate limiter reads its CreatedAt.
func (ocr *otpCodeRepo) GetLatestUnused(ctx context.Context, tx *gorm.DB, phone string, purpose types.Purpose) (*types.OtpCode, error) {
  ocr.log.Info("Starting GetLatestUnused for OtpCode now...")
  var result types.OtpCode
  err := ocr.conn(tx).WithContext(ctx).
    Where("phone = ? AND purpose = ? AND used = ?", phone, purpose, false).
    Order("created_at DESC").
    First(&result).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    ocr.log.Error("Failed to fetch latest unused otp code", "error", err)
    return nil, err
  }
  return &result, nil
}

// CountSince counts every record for (phone, purpose) created at or after
// the given instant, used or not. Soft-deleted (superseded) rows still
// count against the daily cap.
func (ocr *otpCodeRepo) CountSince(ctx context.Context, tx *gorm.DB, phone string, purpose types.Purpose, since time.Time) (int64, error) {
  ocr.log.Info("Starting CountSince for OtpCodes now...")
  var count int64
  err := ocr.conn(tx).WithContext(ctx).
    Model(&types.OtpCode{}).
    Unscoped().
    Where("phone = ? AND purpose = ? AND created_at >= ?", phone, purpose, since).
    Count(&count).Error
  if err != nil {
    ocr.log.Error("Failed to count otp codes", "error", err)
    return 0, err
  }
  ocr.log.Debug("Counted otp codes since instant", "phone", phone, "purpose", purpose, "since", since, "count", count)
  return count, nil
}

// ----------------------------------------------------------------
// PARTIAL UPDATE
// ----------------------------------------------------------------

// MarkUsed flips used false->true and increments attempts in one
// conditional update. Returns false when the row was already consumed by a
// concurrent verify; the used transition happens at most once.
func (ocr *otpCodeRepo) MarkUsed(ctx context.Context, tx *gorm.DB, codeID uuid.UUID) (bool, error) {
  ocr.log.Info("Starting MarkUsed for OtpCode now...", "codeID", codeID)
  if codeID == uuid.Nil {
    return false, nil
  }

  result := ocr.conn(tx).WithContext(ctx).
    Model(&types.OtpCode{}).
    Where("id = ? AND used = ?", codeID, false).
    Updates(map[string]interface{}{
      "used":     true,
      "attempts": gorm.Expr("attempts + 1"),
    })
  if result.Error != nil {
    ocr.log.Error("Failed to mark otp code as used", "error", result.Error)
    return false, result.Error
  }
  if result.RowsAffected == 0 {
    ocr.log.Debug("OtpCode already used, not consuming again", "codeID", codeID)
    return false, nil
  }
  ocr.log.Info("Successfully marked otp code as used", "codeID", codeID)
  return true, nil
}

// ----------------------------------------------------------------
// SOFT DELETE
// ----------------------------------------------------------------

// DeleteUnused soft deletes every unused record for (phone, purpose).
// Called right before inserting a fresh code so at most one live code
// exists. Soft so superseded records still count against the daily cap.
func (ocr *otpCodeRepo) DeleteUnused(ctx context.Context, tx *gorm.DB, phone string, purpose types.Purpose) error {
  ocr.log.Info("Starting DeleteUnused for OtpCodes now...", "phone", phone, "purpose", purpose)
  if err := ocr.conn(tx).WithContext(ctx).
    Where("phone = ? AND purpose = ? AND used = ?", phone, purpose, false).
    Delete(&types.OtpCode{}).Error; err != nil {
    ocr.log.Error("Failed to delete unused otp codes", "error", err)
    return err
  }
  ocr.log.Info("Successfully deleted unused otp codes", "phone", phone, "purpose", purpose)
  return nil
}

// ----------------------------------------------------------------
// FULL (HARD) DELETE
// ----------------------------------------------------------------

func (ocr *otpCodeRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, codeIDs []uuid.UUID) error {
  ocr.log.Info("Starting FullDeleteByIDs for OtpCodes now...")
  if len(codeIDs) == 0 {
    ocr.log.Debug("No otp code IDs provided, skipping full delete")
    return nil
  }
  if err := ocr.conn(tx).WithContext(ctx).
    Unscoped().
    Where("id IN (?)", codeIDs).
    Delete(&types.OtpCode{}).Error; err != nil {
    ocr.log.Error("Failed to FULL delete otp codes by IDs", "error", err)
    return err
  }
  ocr.log.Info("Successfully FULL deleted otp codes by IDs", "count", len(codeIDs))
  return nil
}
