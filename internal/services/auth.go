package services

import (
  "context"
  "crypto/sha256"
  "encoding/hex"
  "fmt"
  "time"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/dialforhelp/localpro-backend/internal/logger"
  "github.com/dialforhelp/localpro-backend/internal/repos"
  "github.com/dialforhelp/localpro-backend/internal/requestdata"
  "github.com/dialforhelp/localpro-backend/internal/types"
)

type SessionClaims struct {
  jwt.RegisteredClaims
  PhoneNumber string `json:"phone_number,omitempty"`
  Role        string `json:"role,omitempty"`
}

// TokenPair is what a successful login hands back: a self-contained signed
// access token plus an opaque refresh token whose hash lives server side.
type TokenPair struct {
  AccessToken  string `json:"accessToken"`
  RefreshToken string `json:"refreshToken"`
  ExpiresIn    int    `json:"expiresIn"`
}

type AuthService interface {
  IssueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (*TokenPair, error)
  Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
  Logout(ctx context.Context) error

  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)

  GetAccessTTL() time.Duration
}

type authService struct {
  db            *gorm.DB
  log           *logger.Logger
  userRepo      repos.UserRepo
  userTokenRepo repos.UserTokenRepo
  jwtSecretKey  string
  accessTTL     time.Duration
  refreshTTL    time.Duration
}

func NewAuthService(
  db *gorm.DB,
  log *logger.Logger,
  userRepo repos.UserRepo,
  userTokenRepo repos.UserTokenRepo,
  jwtSecretKey string,
  accessTTL time.Duration,
  refreshTTL time.Duration,
) AuthService {
  serviceLog := log.With("service", "AuthService")
  return &authService{
    db:            db,
    log:           serviceLog,
    userRepo:      userRepo,
    userTokenRepo: userTokenRepo,
    jwtSecretKey:  jwtSecretKey,
    accessTTL:     accessTTL,
    refreshTTL:    refreshTTL,
  }
}

// hashRefreshToken produces the deterministic digest stored in place of the
// raw refresh token, so a database leak does not leak usable tokens.
func hashRefreshToken(token string) string {
  sum := sha256.Sum256([]byte(token))
  return hex.EncodeToString(sum[:])
}

func (as *authService) IssueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (*TokenPair, error) {
  as.log.Info("Starting IssueTokens now...", "userID", user.ID)

  accessToken, err := as.generateAccessToken(user)
  if err != nil {
    as.log.Warn("Failed to generate access token, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to generate access token: %w", err)
  }

  refreshToken := uuid.New().String()
  expiresAt := time.Now().Add(as.refreshTTL)

  if err := as.userTokenRepo.DeleteExpiredForUser(ctx, tx, user.ID, time.Now()); err != nil {
    as.log.Warn("Failed to prune expired user tokens, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to prune expired user tokens: %w", err)
  }

  userToken := types.UserToken{
    ID:               uuid.New(),
    UserID:           user.ID,
    AccessToken:      accessToken,
    RefreshTokenHash: hashRefreshToken(refreshToken),
    ExpiresAt:        expiresAt,
  }
  if _, err := as.userTokenRepo.Create(ctx, tx, &userToken); err != nil {
    as.log.Warn("Failed to create user token, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to create user token: %w", err)
  }

  as.log.Info("Successfully issued token pair", "userID", user.ID)
  return &TokenPair{
    AccessToken:  accessToken,
    RefreshToken: refreshToken,
    ExpiresIn:    int(as.accessTTL.Seconds()),
  }, nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
  as.log.Info("Starting Refresh now...")
  if refreshToken == "" {
    return nil, ErrInvalidSession
  }

  var pair *TokenPair
  err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    existing, fTErr := as.userTokenRepo.GetByRefreshTokenHash(ctx, tx, hashRefreshToken(refreshToken))
    if fTErr != nil {
      as.log.Warn("Error fetching refresh token, Cannot proceed. Returning error.", "error", fTErr)
      return fmt.Errorf("Error fetching refresh token: %w", fTErr)
    }
    if existing == nil {
      as.log.Warn("No user token found for the given refresh token, Cannot proceed.")
      return ErrInvalidSession
    }
    if existing.ExpiresAt.Before(time.Now()) {
      if dTErr := as.userTokenRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{existing.ID}); dTErr != nil {
        as.log.Warn("Refresh token expired, error deleting expired token, Cannot proceed. Returning error.", "error", dTErr)
        return fmt.Errorf("Refresh token expired, error deleting: %w", dTErr)
      }
      as.log.Warn("Refresh token expired, Cannot proceed.")
      return ErrInvalidSession
    }

    user, uErr := as.userRepo.GetByID(ctx, tx, existing.UserID)
    if uErr != nil {
      as.log.Warn("Failed to load user for refresh, Cannot proceed. Returning error.", "error", uErr)
      return fmt.Errorf("Failed to load user for refresh: %w", uErr)
    }
    if user == nil {
      as.log.Warn("No user found for the given refresh token, Cannot proceed.")
      return ErrInvalidSession
    }
    if user.Status != types.StatusActive {
      as.log.Warn("User is not active, refusing to refresh session.", "status", user.Status)
      return &AccountStateError{Status: user.Status}
    }

    newPair, iErr := as.IssueTokens(ctx, tx, user)
    if iErr != nil {
      return iErr
    }
    if dErr := as.userTokenRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{existing.ID}); dErr != nil {
      as.log.Warn("Failed to remove old refresh token, Cannot proceed. Returning error.", "error", dErr)
      return fmt.Errorf("Failed to remove old refresh token: %w", dErr)
    }
    pair = newPair
    return nil
  })
  if err != nil {
    return nil, err
  }
  return pair, nil
}

func (as *authService) Logout(ctx context.Context) error {
  as.log.Info("Starting Logout now...")
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.TokenString == "" {
    as.log.Warn("No Request Data found in context, Cannot proceed.")
    return ErrInvalidSession
  }
  token, err := as.userTokenRepo.GetByAccessToken(ctx, nil, rd.TokenString)
  if err != nil {
    as.log.Warn("Error finding user token from token string, Cannot proceed. Returning error.", "error", err)
    return fmt.Errorf("Error finding user token from token string: %w", err)
  }
  if token == nil {
    // Already logged out, nothing to delete.
    return nil
  }
  if err := as.userTokenRepo.FullDeleteByIDs(ctx, nil, []uuid.UUID{token.ID}); err != nil {
    as.log.Warn("Error deleting user token, Cannot proceed. Returning error.", "error", err)
    return fmt.Errorf("Error deleting user token: %w", err)
  }
  return nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
  claims := SessionClaims{
    RegisteredClaims: jwt.RegisteredClaims{
      // The jti keeps two tokens for the same user distinct even when
      // issued within the same second.
      ID:        uuid.New().String(),
      Subject:   user.ID.String(),
      ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
      IssuedAt:  jwt.NewNumericDate(time.Now()),
    },
    PhoneNumber: user.PhoneNumber,
    Role:        user.Role,
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

// SetContextFromToken validates the signed access token without a database
// round trip and stashes the request identity in the context.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, ErrInvalidSession
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, fmt.Errorf("failed to parse token: %w", err)
  }
  claims, ok := parsedToken.Claims.(*SessionClaims)
  if !ok || !parsedToken.Valid {
    return ctx, ErrInvalidSession
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, fmt.Errorf("invalid user ID in token: %w", err)
  }
  rd := &requestdata.RequestData{
    TokenString: tokenString,
    UserID:      userID,
    PhoneNumber: claims.PhoneNumber,
    Role:        claims.Role,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
  return as.accessTTL
}
