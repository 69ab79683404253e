package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"room-booking/internal/data/entity"
	"room-booking/internal/data/repository"
	"room-booking/internal/dto/request"
	"room-booking/internal/dto/response"
	"room-booking/pkg/clock"
	"room-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnauthenticated is returned by Authenticate for missing, expired or
// revoked credentials.
var ErrUnauthenticated = errors.New("invalid or expired session")

type AuthService interface {
	Login(ctx context.Context, req *request.LoginRequest, meta request.ClientMeta) (*response.AuthResponse, error)
	Logout(ctx context.Context, sessionToken string) error
	Authenticate(ctx context.Context, bearer string) (entity.Principal, string, error)
	CreateUser(ctx context.Context, req *request.CreateUserRequest) (*entity.User, error)
	CleanExpiredSessions(ctx context.Context) (int64, error)
}

type authService struct {
	repo   *repository.Repository
	config utils.JWTConfig
	clock  clock.Clock
	log    *zap.Logger
}

func NewAuthService(repo *repository.Repository, config utils.JWTConfig, clk clock.Clock, log *zap.Logger) AuthService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &authService{
		repo:   repo,
		config: config,
		clock:  clk,
		log:    log.With(zap.String("service", "auth")),
	}
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest, meta request.ClientMeta) (*response.AuthResponse, error) {
	// 1. Validasi
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Login validation failed", zap.Any("errors", errs))
		return nil, &ValidationError{Reason: utils.FormatValidationErrors(errs)}
	}

	// 2. Cari user by username atau email
	user, err := s.repo.User.FindByLogin(ctx, req.Username)
	if err != nil {
		s.log.Error("Failed to find user", zap.Error(err), zap.String("identifier", req.Username))
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		s.log.Warn("User not found for login", zap.String("identifier", req.Username))
		return nil, ErrInvalidCredentials
	}

	// 3. Cek password
	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.log.Warn("Invalid password", zap.Int64("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	// 4. Cek user aktif
	if !user.IsActive {
		s.log.Warn("Inactive user tried to login", zap.Int64("user_id", user.ID))
		return nil, ErrInactiveAccount
	}

	// 5. Buat session dan token
	now := s.clock.Now()
	session := &entity.Session{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: now,
		},
		UserID:    user.ID,
		Token:     uuid.New(),
		UserAgent: optional(meta.UserAgent),
		IPAddress: optional(meta.IPAddress),
		ExpiresAt: now.Add(s.expiry()),
	}
	if err := s.repo.Session.Create(ctx, session); err != nil {
		s.log.Error("Failed to create session", zap.Error(err), zap.Int64("user_id", user.ID))
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := utils.GenerateToken(s.config.Secret, user.ID, string(user.Role), session.Token, session.ExpiresAt, now)
	if err != nil {
		s.log.Error("Failed to sign token", zap.Error(err), zap.Int64("user_id", user.ID))
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.log.Info("User logged in",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username))

	resp := response.AuthToResponse(user, token, session.ExpiresAt)
	return &resp, nil
}

func (s *authService) Logout(ctx context.Context, sessionToken string) error {
	token, err := uuid.Parse(sessionToken)
	if err != nil {
		return ErrUnauthenticated
	}

	err = s.repo.Session.Revoke(ctx, token, s.clock.Now())
	if errors.Is(err, repository.ErrSessionNotFound) {
		s.log.Warn("Logout of unknown or revoked session")
		return nil
	}
	if err != nil {
		s.log.Error("Failed to revoke session", zap.Error(err))
		return fmt.Errorf("revoke session: %w", err)
	}

	s.log.Info("User logged out")
	return nil
}

// Authenticate verifies a bearer token, checks that its session is still
// live and resolves the current role of its user. It returns the principal
// and the session token.
func (s *authService) Authenticate(ctx context.Context, bearer string) (entity.Principal, string, error) {
	claims, err := utils.ParseToken(s.config.Secret, bearer, s.clock.Now())
	if err != nil {
		return entity.Principal{}, "", ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return entity.Principal{}, "", ErrUnauthenticated
	}
	sessionToken := uuid.MustParse(claims.ID)

	session, err := s.repo.Session.FindValidSession(ctx, sessionToken, s.clock.Now())
	if err != nil {
		return entity.Principal{}, "", fmt.Errorf("find session: %w", err)
	}
	if session == nil || session.UserID != userID {
		return entity.Principal{}, "", ErrUnauthenticated
	}

	user, err := s.repo.User.FindByID(ctx, userID)
	if err != nil {
		return entity.Principal{}, "", fmt.Errorf("find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return entity.Principal{}, "", ErrUnauthenticated
	}

	return entity.Principal{UserID: user.ID, Role: user.Role}, sessionToken.String(), nil
}

// CreateUser adds an active account. Accounts are provisioned by operators,
// there is no public sign-up.
func (s *authService) CreateUser(ctx context.Context, req *request.CreateUserRequest) (*entity.User, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, &ValidationError{Reason: utils.FormatValidationErrors(errs)}
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	user := &entity.User{
		Base: entity.Base{
			CreatedAt: now,
			UpdatedAt: now,
		},
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Role:         entity.UserRole(req.Role),
		IsActive:     true,
	}

	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, &ValidationError{Reason: err.Error()}
		}
		return nil, err
	}

	s.log.Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", req.Role))

	return user, nil
}

// CleanExpiredSessions deletes sessions that expired before now.
func (s *authService) CleanExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.repo.Session.CleanExpiredSessions(ctx, s.clock.Now())
	if err != nil {
		return 0, &TransientStoreError{Op: "clean expired sessions", Err: err}
	}
	if n > 0 {
		s.log.Info("Expired sessions removed", zap.Int64("count", n))
	}
	return n, nil
}

// ==================== HELPER METHODS ====================

func (s *authService) expiry() time.Duration {
	if s.config.ExpiryHours < 1 {
		return 24 * time.Hour
	}
	return time.Duration(s.config.ExpiryHours) * time.Hour
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
