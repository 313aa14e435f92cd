package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/absenin/absenin-api/internal/models"
	appErrors "github.com/absenin/absenin-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestResolveRole(t *testing.T) {
	assignments := map[string]string{
		"admin@school.example":   "ADMIN",
		"teacher@school.example": "TEACHER",
		"broken@school.example":  "SUPERUSER",
	}

	assert.Equal(t, models.RoleAdmin, ResolveRole("admin@school.example", assignments))
	assert.Equal(t, models.RoleTeacher, ResolveRole("teacher@school.example", assignments))
	assert.Equal(t, models.RoleAdmin, ResolveRole("Admin@School.Example", assignments))
	assert.Equal(t, models.RoleNone, ResolveRole("stranger@school.example", assignments))
	assert.Equal(t, models.RoleNone, ResolveRole("broken@school.example", assignments))
	assert.Equal(t, models.RoleNone, ResolveRole("admin@school.example", nil))
}

func TestLoginIssuesTokenWithResolvedRole(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{
		ID:           "user-1",
		Email:        "teacher@school.example",
		PasswordHash: hashOf(t, "secret123"),
		FullName:     "Pat Teacher",
		Active:       true,
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		Secret:          "signing-secret",
		Expiration:      time.Hour,
		RoleAssignments: map[string]string{"teacher@school.example": "TEACHER"},
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@school.example", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestLoginRejectsBadCredentialsAndUnassigned(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{
		ID:           "user-1",
		Email:        "teacher@school.example",
		PasswordHash: hashOf(t, "secret123"),
		Active:       true,
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		Secret:          "signing-secret",
		Expiration:      time.Hour,
		RoleAssignments: map[string]string{"teacher@school.example": "TEACHER"},
	})
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Email: "teacher@school.example", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@school.example", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	// A valid account with no role assignment cannot log in.
	svc = NewAuthService(repo, nil, nil, AuthConfig{Secret: "signing-secret", Expiration: time.Hour})
	_, err = svc.Login(ctx, models.LoginRequest{Email: "teacher@school.example", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{Secret: "signing-secret", Expiration: time.Hour})

	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)

	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{Secret: "another-secret", Expiration: time.Hour})
	token, err := other.issueToken(&models.User{ID: "user-1", Email: "x@y.z"}, models.RoleAdmin, time.Now().UTC())
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
