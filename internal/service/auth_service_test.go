package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credpoints-api/internal/models"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
)

type mockAuthRepo struct {
	users map[string]*models.User
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthServiceForTest() *AuthService {
	repo := &mockAuthRepo{users: map[string]*models.User{
		"staff-1":   {ID: "staff-1", Email: "s1@example.com", FullName: "Staff One", Role: models.RoleStaff, Active: true},
		"advisor-9": {ID: "advisor-9", Email: "a9@example.com", FullName: "Advisor Nine", Role: models.RoleAdvisor, Active: false},
	}}
	return NewAuthService(repo, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "credpoints-api"})
}

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := newAuthServiceForTest()

	token, expiresAt, err := svc.IssueToken(context.Background(), "staff-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "staff-1", Role: models.RoleStaff}, claims.Actor())
}

func TestAuthServiceIssueTokenErrors(t *testing.T) {
	svc := newAuthServiceForTest()

	_, _, err := svc.IssueToken(context.Background(), "ghost")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, _, err = svc.IssueToken(context.Background(), "advisor-9")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	svc := newAuthServiceForTest()

	claims := &models.JWTClaims{
		UserID: "staff-1",
		Role:   models.RoleStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "credpoints-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))

	claims.Role = "JANITOR"
	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(unknownRole)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))

	claims.Role = models.RoleStaff
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}
