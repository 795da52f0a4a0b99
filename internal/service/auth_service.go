package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/pkg/database"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Roles(ctx context.Context, userID string) (models.RoleSet, error)
	CreateWithRole(ctx context.Context, user *models.User, role models.Role) error
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) (int, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret     string
	Expiry     time.Duration
	Issuer     string
	BcryptCost int
}

// AuthService hashes credentials, issues and verifies session tokens and resolves callers.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    AuthConfig
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = 10
	}
	if config.Expiry <= 0 {
		config.Expiry = 7 * 24 * time.Hour
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, metrics: metrics, config: config, now: time.Now}
}

// HashPassword derives a salted bcrypt hash at the configured cost.
func (s *AuthService) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.config.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash. A corrupt hash is an error, not a mismatch.
func (s *AuthService) VerifyPassword(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// IssueToken signs a session token for user.
func (s *AuthService) IssueToken(user *models.User) (string, time.Time, error) {
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.JWTClaims{
		UserID:  user.ID,
		Version: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken checks signature, structure and validity window.
func (s *AuthService) VerifyToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.WithCause(appErrors.ErrTokenExpired, err, "session expired")
		}
		return nil, appErrors.WithCause(appErrors.ErrTokenMalformed, err, "invalid token")
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrTokenMalformed, "invalid token claims")
	}
	return claims, nil
}

// ResolveIdentity loads the caller named by claims with a fresh role set.
func (s *AuthService) ResolveIdentity(ctx context.Context, claims *models.JWTClaims) (*models.Identity, error) {
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, storeError(err, "failed to load account")
	}
	if user.TokenVersion != claims.Version {
		return nil, appErrors.Clone(appErrors.ErrTokenRevoked, "session was revoked, please sign in again")
	}
	roles, err := s.repo.Roles(ctx, user.ID)
	if err != nil {
		return nil, storeError(err, "failed to load roles")
	}
	return &models.Identity{UserID: user.ID, Email: user.Email, FullName: user.FullName, Roles: roles}, nil
}

// Authenticate verifies a bearer token and resolves its identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := s.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	return s.ResolveIdentity(ctx, claims)
}

// Register creates an identity holding the student role and signs it in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{Email: req.Email, PasswordHash: hash, FullName: req.FullName}
	if err := s.repo.CreateWithRole(ctx, user, models.RoleStudent); err != nil {
		s.metrics.RecordAuthAttempt("register", false)
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, storeError(err, "failed to create account")
	}
	s.metrics.RecordAuthAttempt("register", true)
	s.audit(ctx, user.ID, models.AuditActionRegister, models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent})

	return s.session(user)
}

// Login authenticates credentials and returns a fresh session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.burnHash(req.Password)
			s.metrics.RecordAuthAttempt("login", false)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, storeError(err, "failed to fetch user")
	}

	ok, err := s.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is unreadable", zap.String("user_id", user.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify credentials")
	}
	if !ok {
		s.metrics.RecordAuthAttempt("login", false)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	roles, err := s.repo.Roles(ctx, user.ID)
	if err != nil {
		return nil, storeError(err, "failed to load roles")
	}
	user.Roles = roles

	s.metrics.RecordAuthAttempt("login", true)
	s.audit(ctx, user.ID, models.AuditActionLogin, models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent})
	return s.session(user)
}

// Me returns the caller's profile with roles.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storeError(err, "failed to load user")
	}
	roles, err := s.repo.Roles(ctx, userID)
	if err != nil {
		return nil, storeError(err, "failed to load roles")
	}
	user.Roles = roles
	return user, nil
}

// UpdateProfile patches the caller's own profile.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid profile payload")
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		user.Phone = emptyToNil(*req.Phone)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = emptyToNil(*req.AvatarURL)
	}
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, storeError(err, "failed to update profile")
	}
	return user, nil
}

// ChangePassword replaces the password and revokes every session issued before it.
// The returned session replaces the caller's now revoked token.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest, meta models.RequestMeta) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid change password payload")
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.VerifyPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify credentials")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	hash, err := s.HashPassword(req.NewPassword)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	version, err := s.repo.UpdatePassword(ctx, userID, hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storeError(err, "failed to update password")
	}
	user.PasswordHash = hash
	user.TokenVersion = version

	s.audit(ctx, userID, models.AuditActionPasswordChange, meta)
	return s.session(user)
}

// Logout is stateless: the client discards its token. Only the audit trail records it.
func (s *AuthService) Logout(ctx context.Context, userID string, meta models.RequestMeta) {
	s.audit(ctx, userID, models.AuditActionLogout, meta)
}

func (s *AuthService) session(user *models.User) (*models.AuthResponse, error) {
	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session token")
	}
	return &models.AuthResponse{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// burnHash spends the same bcrypt work as a real check so unknown emails are not faster.
func (s *AuthService) burnHash(plaintext string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("institute-compass"), s.config.BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(plaintext))
}

func (s *AuthService) audit(ctx context.Context, userID, action string, meta models.RequestMeta) {
	entry := models.NewAuditLog(action, "auth", meta).By(userID).On(userID)
	entry.RequestID = requestIDFrom(ctx)
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.String("action", action), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emptyToNil(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
