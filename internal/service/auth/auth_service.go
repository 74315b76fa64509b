// Package service 提供登录认证、JWT签发与解析以及超级管理员初始化
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/weiwangfds/ditdrive/config"
	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	"gorm.io/gorm"
)

// Claims JWT声明
type Claims struct {
	UserID uint          `json:"uid"`
	Email  string        `json:"email"`
	Role   database.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserView 对外展示的用户信息
type UserView struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserView 转换用户模型
func NewUserView(u *database.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Role: u.Role.String(), CreatedAt: u.CreatedAt}
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserView  `json:"user"`
}

// AuthService 认证服务接口
type AuthService interface {
	// Login 校验邮箱和密码并签发令牌
	// 邮箱不存在与密码错误统一返回 ErrInvalidCredentials
	Login(email, password string) (*LoginResult, error)

	// IssueToken 为用户签发令牌
	IssueToken(user *database.User) (string, time.Time, error)

	// ParseToken 校验签名、签发者、受众和有效期
	ParseToken(token string) (*Claims, error)

	// Authenticate 解析令牌并确认用户仍然存在，返回的角色以数据库为准
	Authenticate(token string) (*Claims, error)

	// EnsureMasterAdmin 用户表为空时创建超级管理员
	EnsureMasterAdmin(email, password string) error
}

// authService 认证服务实现
type authService struct {
	db       *gorm.DB
	cfg      config.AuthConfig
	activity activityservice.ActivityService
	now      func() time.Time
}

// NewAuthService 创建认证服务
func NewAuthService(db *gorm.DB, cfg config.AuthConfig, activity activityservice.ActivityService) AuthService {
	return &authService{
		db:       db,
		cfg:      cfg,
		activity: activity,
		now:      time.Now,
	}
}

// NormalizeEmail 邮箱去除首尾空白并转为小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Login(email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.FromCode(apperrors.ErrInvalidCredentials)
	}

	var user database.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.activity.Record(nil, activityservice.ActionLogin, activityservice.StatusFailed, email)
			return nil, apperrors.FromCode(apperrors.ErrInvalidCredentials)
		}
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		s.activity.Record(&user.ID, activityservice.ActionLogin, activityservice.StatusFailed, email)
		return nil, apperrors.FromCode(apperrors.ErrInvalidCredentials)
	}

	token, expiresAt, err := s.IssueToken(&user)
	if err != nil {
		return nil, err
	}
	s.activity.Record(&user.ID, activityservice.ActionLogin, activityservice.StatusSuccess, email)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: NewUserView(&user)}, nil
}

func (s *authService) IssueToken(user *database.User) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.TokenTTL())
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, apperrors.WrapCode(apperrors.ErrInternalServer, err)
	}
	return signed, expiresAt, nil
}

func (s *authService) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.UserID == 0 {
		return nil, apperrors.FromCode(apperrors.ErrTokenInvalid)
	}
	return claims, nil
}

func (s *authService) Authenticate(token string) (*Claims, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}

	var user database.User
	if err := s.db.Select("id", "email", "role").First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewWithDetails(apperrors.ErrTokenInvalid,
				apperrors.GetErrorMessage(apperrors.ErrTokenInvalid), "user no longer exists")
		}
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	claims.Email = user.Email
	claims.Role = user.Role
	return claims, nil
}

func (s *authService) EnsureMasterAdmin(email, password string) error {
	var count int64
	if err := s.db.Model(&database.User{}).Count(&count).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	if count > 0 {
		return nil
	}

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		logger.Warn("[认证] 用户表为空且未配置 seed.master_email / seed.master_password，无法登录管理后台")
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	user := &database.User{Email: email, PasswordHash: hash, Role: database.RoleMasterAdmin}
	if err := s.db.Create(user).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseInsert, err)
	}
	logger.Infof("[认证] 已创建超级管理员: %s", email)
	return nil
}
