package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/common/http/middleware"
	"codearena/internal/user/repository"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = time.Hour

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	JWTSecret []byte
	JWTIssuer string
	TokenTTL  time.Duration
}

// AuthService handles registration, login and token lifecycle.
type AuthService struct {
	dbProvider db.Provider
	users      repository.UserRepository
	tokens     repository.TokenRepository
	solved     repository.SolvedRepository
	config     AuthServiceConfig
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	provider db.Provider,
	users repository.UserRepository,
	tokens repository.TokenRepository,
	solved repository.SolvedRepository,
	cfg AuthServiceConfig,
) *AuthService {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "codearena"
	}
	return &AuthService{
		dbProvider: provider,
		users:      users,
		tokens:     tokens,
		solved:     solved,
		config:     cfg,
	}
}

// RegisterInput represents input for user registration.
type RegisterInput struct {
	FirstName string
	Email     string
	Password  string
}

// LoginInput represents input for user login.
type LoginInput struct {
	Email    string
	Password string
}

// UserInfo represents basic user info for auth responses.
type UserInfo struct {
	ID        int64
	FirstName string
	Email     string
	Role      repository.UserRole
}

// AuthResult represents the result of auth operations.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      UserInfo
}

// Register creates a regular user and issues a token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	return s.register(ctx, input, repository.UserRoleUser)
}

// RegisterAdmin creates an admin account and issues a token. The caller
// must already be an admin; that check lives in the HTTP layer.
func (s *AuthService) RegisterAdmin(ctx context.Context, input RegisterInput) (AuthResult, error) {
	return s.register(ctx, input, repository.UserRoleAdmin)
}

func (s *AuthService) register(ctx context.Context, input RegisterInput, role repository.UserRole) (AuthResult, error) {
	if err := validateFirstName(input.FirstName); err != nil {
		return AuthResult{}, err
	}
	if err := validateEmail(input.Email); err != nil {
		return AuthResult{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return AuthResult{}, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(fmt.Errorf("hash password failed: %w", err), pkgerrors.InternalServerError)
	}

	user := &repository.User{
		FirstName:    input.FirstName,
		Email:        input.Email,
		PasswordHash: string(passwordHash),
		Role:         role,
	}

	userID, err := s.users.Create(ctx, nil, user)
	if err != nil {
		return AuthResult{}, mapUserCreateError(err)
	}
	user.ID = userID

	token, expiresAt, err := s.generateToken(user.ID, string(user.Role))
	if err != nil {
		return AuthResult{}, err
	}

	logger.Info(ctx, "user registered",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)))

	return AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      userInfo(user),
	}, nil
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	if err := validateEmail(input.Email); err != nil {
		return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
	}
	if err := validateLoginPassword(input.Password); err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, nil, input.Email)
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
		}
		return AuthResult{}, pkgerrors.Wrap(fmt.Errorf("get user failed: %w", err), pkgerrors.DatabaseError)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
	}

	token, expiresAt, err := s.generateToken(user.ID, string(user.Role))
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      userInfo(user),
	}, nil
}

// LoginAdmin is Login restricted to admin accounts.
func (s *AuthService) LoginAdmin(ctx context.Context, input LoginInput) (AuthResult, error) {
	result, err := s.Login(ctx, input)
	if err != nil {
		return AuthResult{}, err
	}
	if result.User.Role != repository.UserRoleAdmin {
		return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
	}
	return result, nil
}

// Logout blocklists the token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		return err
	}
	until := time.Now().Add(s.config.TokenTTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.tokens.Block(ctx, token, until); err != nil {
		return pkgerrors.Wrap(fmt.Errorf("block token failed: %w", err), pkgerrors.CacheError)
	}
	return nil
}

// DeleteProfile removes the user account together with its solved rows.
// Both deletes run in one transaction so a failure leaves neither half
// applied.
func (s *AuthService) DeleteProfile(ctx context.Context, userID int64) error {
	database, err := db.CurrentDatabase(s.dbProvider)
	if err != nil {
		return pkgerrors.Wrap(fmt.Errorf("resolve database failed: %w", err), pkgerrors.DatabaseError)
	}
	err = database.Transaction(ctx, func(tx db.Transaction) error {
		if err := s.users.Delete(ctx, tx, userID); err != nil {
			return err
		}
		return s.solved.Purge(ctx, tx, userID)
	})
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			return pkgerrors.New(pkgerrors.UserNotFound)
		}
		return pkgerrors.Wrap(fmt.Errorf("delete user failed: %w", err), pkgerrors.UserDeleteFailed)
	}
	logger.Info(ctx, "user profile deleted", zap.Int64("user_id", userID))
	return nil
}

// GetUser returns basic info for an authenticated user.
func (s *AuthService) GetUser(ctx context.Context, userID int64) (UserInfo, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			return UserInfo{}, pkgerrors.New(pkgerrors.UserNotFound)
		}
		return UserInfo{}, pkgerrors.Wrap(fmt.Errorf("get user failed: %w", err), pkgerrors.DatabaseError)
	}
	return userInfo(user), nil
}

// Authenticate resolves a raw token to a principal. It rejects
// blocklisted tokens and tokens whose user no longer exists.
func (s *AuthService) Authenticate(ctx context.Context, token string) (middleware.Principal, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return middleware.Principal{}, err
	}
	userID, err := claims.userID()
	if err != nil {
		return middleware.Principal{}, err
	}

	blocked, err := s.tokens.IsBlocked(ctx, token)
	if err != nil {
		return middleware.Principal{}, pkgerrors.Wrap(fmt.Errorf("check token blocklist failed: %w", err), pkgerrors.CacheError)
	}
	if blocked {
		return middleware.Principal{}, pkgerrors.New(pkgerrors.TokenBlocked)
	}

	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			return middleware.Principal{}, pkgerrors.New(pkgerrors.TokenInvalid)
		}
		return middleware.Principal{}, pkgerrors.Wrap(fmt.Errorf("get user failed: %w", err), pkgerrors.DatabaseError)
	}

	return middleware.Principal{
		UserID: user.ID,
		Role:   string(user.Role),
	}, nil
}

func userInfo(user *repository.User) UserInfo {
	return UserInfo{
		ID:        user.ID,
		FirstName: user.FirstName,
		Email:     user.Email,
		Role:      user.Role,
	}
}

func mapUserCreateError(err error) error {
	if stderrors.Is(err, repository.ErrEmailExists) {
		return pkgerrors.New(pkgerrors.EmailAlreadyExists)
	}
	if stderrors.Is(err, repository.ErrDuplicate) {
		return pkgerrors.New(pkgerrors.RecordAlreadyExists)
	}
	return pkgerrors.Wrap(fmt.Errorf("create user failed: %w", err), pkgerrors.DatabaseError)
}

var _ middleware.Authenticator = (*AuthService)(nil)
