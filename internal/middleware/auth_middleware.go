package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/response"
	authservice "github.com/weiwangfds/ditdrive/internal/service/auth"
)

// gin上下文中的认证信息键
const (
	ContextUserIDKey = "user_id"
	ContextEmailKey  = "user_email"
	ContextRoleKey   = "user_role"
)

// AuthRequired 校验 Bearer 令牌并写入当前用户信息
func AuthRequired(auth authservice.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, apperrors.GetErrorMessage(apperrors.ErrUnauthorized))
			c.Abort()
			return
		}

		claims, err := auth.Authenticate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextEmailKey, claims.Email)
		c.Set(ContextRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole 要求当前用户角色不低于 min，必须在 AuthRequired 之后使用
func RequireRole(min database.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, ok := CurrentRole(c); !ok || !role.AtLeast(min) {
			response.Forbidden(c, apperrors.GetErrorMessage(apperrors.ErrForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUserID 获取当前用户ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// CurrentRole 获取当前用户角色
func CurrentRole(c *gin.Context) (database.Role, bool) {
	v, ok := c.Get(ContextRoleKey)
	if !ok {
		return database.RoleUser, false
	}
	role, ok := v.(database.Role)
	return role, ok
}
