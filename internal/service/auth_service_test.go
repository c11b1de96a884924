package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/sav-service/internal/config"
	"github.com/spec-kit/sav-service/internal/domain"
	"github.com/spec-kit/sav-service/internal/repository"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

func newAuthService(t *testing.T) (*AuthService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost}
	return NewAuthService(cfg, store, zap.NewNop()), store
}

func TestSeedAdminAndLogin(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedAdmin(ctx, "admin@sav.test", "correct-horse"))
	require.NoError(t, svc.SeedAdmin(ctx, "admin@sav.test", "correct-horse"))
	require.NoError(t, svc.SeedAdmin(ctx, "", ""))

	all, err := store.Reader().Staff.List(ctx, repository.StaffFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.RoleAdmin, all[0].Role)

	staff, token, _, err := svc.LoginStaff(ctx, "ADMIN@sav.test", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, all[0].ID, staff.ID)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, claims.ActorID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	_, _, _, err = svc.LoginStaff(ctx, "admin@sav.test", "wrong-password")
	assert.Equal(t, apperrors.CodeUnauthorized, codeOf(err))
	_, _, _, err = svc.LoginStaff(ctx, "nobody@sav.test", "correct-horse")
	assert.Equal(t, apperrors.CodeUnauthorized, codeOf(err))
}

func TestCreateStaff(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	admin := domain.Actor{ID: "admin", Role: domain.RoleAdmin}
	input := StaffInput{Name: "Tech Five", Email: "five@sav.test", Password: "longenough", Role: domain.RoleTechnician}

	_, err := svc.CreateStaff(ctx, domain.Actor{ID: "a", Role: domain.RoleAgent}, input)
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))

	tech, err := svc.CreateStaff(ctx, admin, input)
	require.NoError(t, err)
	assert.True(t, tech.IsTechnician())
	assert.NotEqual(t, input.Password, tech.PasswordHash)

	_, err = svc.CreateStaff(ctx, admin, input)
	assert.Equal(t, apperrors.CodeConflict, codeOf(err))

	bad := input
	bad.Email = "not-an-email"
	_, err = svc.CreateStaff(ctx, admin, bad)
	assert.Equal(t, apperrors.CodeValidation, codeOf(err))

	bad = input
	bad.Email = "short@sav.test"
	bad.Password = "short"
	_, err = svc.CreateStaff(ctx, admin, bad)
	assert.Equal(t, apperrors.CodeValidation, codeOf(err))

	techs := domain.RoleTechnician
	listed, err := svc.ListStaff(ctx, admin, &techs, 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, tech.ID, listed[0].ID)

	_, err = svc.ListStaff(ctx, domain.Actor{ID: "5", Role: domain.RoleTechnician}, nil, 0, 0)
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))
}
