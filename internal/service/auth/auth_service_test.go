package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/ditdrive/config"
	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	"gorm.io/gorm"
)

var testAuthConfig = config.AuthConfig{
	JWTSecret:     "0123456789abcdef0123",
	Issuer:        "ditdrive",
	Audience:      "ditdrive-clients",
	ExpireMinutes: 60,
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "auth.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newTestService(t *testing.T) (*authService, *gorm.DB) {
	db := setupTestDB(t)
	svc := NewAuthService(db, testAuthConfig, activityservice.NewActivityService(db)).(*authService)
	return svc, db
}

func createUser(t *testing.T, db *gorm.DB, email, password string, role database.Role) *database.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	u := &database.User{Email: email, PasswordHash: hash, Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestLogin(t *testing.T) {
	svc, db := newTestService(t)
	u := createUser(t, db, "alice@example.com", "secret-pw", database.RoleAdmin)

	res, err := svc.Login("  Alice@Example.com ", "secret-pw")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "Admin", res.User.Role)
	assert.Equal(t, u.ID, res.User.ID)

	claims, err := svc.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, database.RoleAdmin, claims.Role)
	assert.Equal(t, "ditdrive", claims.Issuer)

	t.Run("错误密码", func(t *testing.T) {
		_, err := svc.Login("alice@example.com", "wrong-pw")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidCredentials))
	})
	t.Run("未知邮箱", func(t *testing.T) {
		_, err := svc.Login("bob@example.com", "secret-pw")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidCredentials))
	})
}

func TestParseTokenRejects(t *testing.T) {
	svc, db := newTestService(t)
	u := createUser(t, db, "alice@example.com", "secret-pw", database.RoleUser)

	t.Run("过期", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := svc.IssueToken(u)
		svc.now = time.Now
		require.NoError(t, err)
		_, err = svc.ParseToken(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrTokenInvalid))
	})

	t.Run("其他签发者", func(t *testing.T) {
		other := *svc
		other.cfg.Issuer = "someone-else"
		token, _, err := other.IssueToken(u)
		require.NoError(t, err)
		_, err = svc.ParseToken(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrTokenInvalid))
	})

	t.Run("其他受众", func(t *testing.T) {
		other := *svc
		other.cfg.Audience = "another-app"
		token, _, err := other.IssueToken(u)
		require.NoError(t, err)
		_, err = svc.ParseToken(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrTokenInvalid))
	})

	t.Run("错误密钥", func(t *testing.T) {
		other := *svc
		other.cfg.JWTSecret = "another-secret-0123456"
		token, _, err := other.IssueToken(u)
		require.NoError(t, err)
		_, err = svc.ParseToken(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrTokenInvalid))
	})

	t.Run("签名算法不符", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: u.ID}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ParseToken(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrTokenInvalid))
	})

	t.Run("乱码", func(t *testing.T) {
		_, err := svc.ParseToken("not.a.token")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrTokenInvalid))
	})
}

func TestAuthenticateUsesCurrentRole(t *testing.T) {
	svc, db := newTestService(t)
	u := createUser(t, db, "alice@example.com", "secret-pw", database.RoleAdmin)
	token, _, err := svc.IssueToken(u)
	require.NoError(t, err)

	require.NoError(t, db.Model(u).Update("role", database.RoleUser).Error)
	claims, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, database.RoleUser, claims.Role)

	require.NoError(t, db.Delete(u).Error)
	_, err = svc.Authenticate(token)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrTokenInvalid))
}

func TestEnsureMasterAdmin(t *testing.T) {
	svc, db := newTestService(t)

	require.NoError(t, svc.EnsureMasterAdmin("", ""))
	var count int64
	require.NoError(t, db.Model(&database.User{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, svc.EnsureMasterAdmin("Root@Example.com", "master-pw"))
	var root database.User
	require.NoError(t, db.First(&root).Error)
	assert.Equal(t, "root@example.com", root.Email)
	assert.Equal(t, database.RoleMasterAdmin, root.Role)
	assert.True(t, CheckPassword(root.PasswordHash, "master-pw"))

	// 已有用户时不再创建
	require.NoError(t, svc.EnsureMasterAdmin("other@example.com", "master-pw"))
	require.NoError(t, db.Model(&database.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.NoError(t, ValidatePassword("long-enough"))
	_, err := HashPassword("abc")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidParams))
}
