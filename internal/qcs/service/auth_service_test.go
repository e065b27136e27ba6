package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/qcs/internal/config"
	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
	"github.com/bitfantasy/qcs/internal/qcs/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthService(t *testing.T) (*AuthService, *repository.Repositories) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	cfg := config.JWTConfig{Secret: testutil.JWTSecret, Issuer: testutil.JWTIssuer, AccessTokenExpire: time.Hour}
	return NewAuthService(repos.User, nil, cfg, zap.NewNop()), repos
}

func TestLogin(t *testing.T) {
	svc, repos := newAuthService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, repos.DB(), "alice", entity.RoleUser)

	res, err := svc.Login(ctx, " alice ", testutil.TestPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user.ID, res.User.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, time.Minute)

	stored, err := repos.User.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	p, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, entity.RoleUser, p.Role)
	assert.NotEmpty(t, p.TokenID)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	svc, repos := newAuthService(t)
	ctx := context.Background()
	inactive := testutil.SeedUser(t, repos.DB(), "bob", entity.RoleUser)
	testutil.SeedUser(t, repos.DB(), "carol", entity.RoleUser)
	require.NoError(t, repos.User.Deactivate(ctx, inactive.ID))

	for _, tc := range []struct{ user, pass string }{
		{"nobody", testutil.TestPassword},
		{"carol", "wrong-password"},
		{"bob", testutil.TestPassword},
	} {
		_, err := svc.Login(ctx, tc.user, tc.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials, tc.user)
		assert.ErrorIs(t, err, access.ErrUnauthenticated, tc.user)
	}

	_, err := svc.Login(ctx, "", "x")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Login(ctx, "carol", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc, repos := newAuthService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, repos.DB(), "dave", entity.RoleAdmin)

	_, err := svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, access.ErrMissingToken)

	_, err = svc.Authenticate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, access.ErrInvalidToken)

	_, err = svc.Authenticate(ctx, testutil.ExpiredTestToken(user.ID))
	assert.ErrorIs(t, err, access.ErrTokenExpired)

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": user.ID, "iss": testutil.JWTIssuer, "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := wrongKey.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, signed)
	assert.ErrorIs(t, err, access.ErrInvalidToken)

	_, err = svc.Authenticate(ctx, testutil.GenerateTestToken("ghost", "ghost", entity.RoleAdmin))
	assert.ErrorIs(t, err, access.ErrInactiveUser)
}

func TestAuthenticateUsesStoredRole(t *testing.T) {
	svc, repos := newAuthService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, repos.DB(), "erin", entity.RoleUser)

	// 令牌中的角色被篡改时以数据库为准
	p, err := svc.Authenticate(ctx, testutil.GenerateTestToken(user.ID, user.Username, entity.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, p.Role)

	require.NoError(t, repos.User.Deactivate(ctx, user.ID))
	_, err = svc.Authenticate(ctx, testutil.TokenFor(user))
	assert.ErrorIs(t, err, access.ErrInactiveUser)
}

func TestLogoutWithoutRedisIsNoop(t *testing.T) {
	svc, _ := newAuthService(t)
	assert.NoError(t, svc.Logout(context.Background(), &access.Principal{UserID: "u", TokenID: "jti", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.NoError(t, svc.Logout(context.Background(), nil))
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "other"))
}
