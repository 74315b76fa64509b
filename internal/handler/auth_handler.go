package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/ditdrive/internal/response"
	authservice "github.com/weiwangfds/ditdrive/internal/service/auth"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService authservice.AuthService
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(authService authservice.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录
// @Summary 登录
// @Description 使用邮箱和密码换取访问令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} response.Response "登录成功"
// @Failure 401 {object} response.Response "账号或密码错误"
// @Failure 429 {object} response.Response "请求过于频繁"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	result, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
