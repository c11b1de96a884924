package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sav-service/internal/auth"
	"github.com/spec-kit/sav-service/internal/config"
	"github.com/spec-kit/sav-service/internal/domain"
	"github.com/spec-kit/sav-service/internal/repository"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

// AuthService coordinates staff login and the staff directory.
type AuthService struct {
	store      repository.Store
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// StaffInput describes a new staff member.
type StaffInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, store repository.Store, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:      store,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// LoginStaff authenticates staff and returns a role-bearing token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, string, time.Time, error) {
	staff, err := s.store.Reader().Staff.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if isNotFound(err) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, storeError(err)
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if !staff.Active {
		return nil, "", time.Time{}, apperrors.NewForbidden("staff inactive")
	}
	token, exp, err := s.tokenMgr.GenerateToken(staff.ID, staff.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return staff, token, exp, nil
}

// CreateStaff adds a staff member. Only admins may do this.
func (s *AuthService) CreateStaff(ctx context.Context, actor domain.Actor, input StaffInput) (*domain.StaffMember, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("only admins manage staff")
	}
	return s.createStaff(ctx, input)
}

func (s *AuthService) createStaff(ctx context.Context, input StaffInput) (*domain.StaffMember, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"fields": []string{"name"}})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": input.Email})
	}
	if len(input.Password) < auth.MinPasswordLength {
		return nil, apperrors.NewValidationError("password too short", map[string]any{"min_length": auth.MinPasswordLength})
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	staff := &domain.StaffMember{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Staff.Create(ctx, staff)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	}
	if err != nil {
		return nil, storeError(err)
	}
	return staff, nil
}

// ListStaff returns staff members, optionally filtered by role.
func (s *AuthService) ListStaff(ctx context.Context, actor domain.Actor, role *domain.Role, limit, offset int) ([]domain.StaffMember, error) {
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleAgent {
		return nil, apperrors.NewForbidden("staff directory restricted")
	}
	active := true
	staff, err := s.store.Reader().Staff.List(ctx, repository.StaffFilter{Role: role, Active: &active, Limit: limit, Offset: offset})
	if err != nil {
		return nil, storeError(err)
	}
	return staff, nil
}

// SeedAdmin creates the bootstrap admin when it does not exist yet. Empty credentials
// disable seeding.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	_, err := s.store.Reader().Staff.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return err
	}
	admin, err := s.createStaff(ctx, StaffInput{Name: "Administrator", Email: email, Password: password, Role: domain.RoleAdmin})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeConflict) {
			return nil
		}
		return err
	}
	s.logger.Info("seeded admin account", zap.String("staff_id", admin.ID), zap.String("email", admin.Email))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
