package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/ditdrive/internal/database"
	"github.com/weiwangfds/ditdrive/internal/middleware"
	"github.com/weiwangfds/ditdrive/internal/response"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	userservice "github.com/weiwangfds/ditdrive/internal/service/user"
)

// AdminHandler 管理后台处理器
// @Description 用户管理与操作日志
type AdminHandler struct {
	userService     userservice.UserService
	activityService activityservice.ActivityService
}

// NewAdminHandler 创建管理后台处理器实例
func NewAdminHandler(userService userservice.UserService, activityService activityservice.ActivityService) *AdminHandler {
	return &AdminHandler{userService: userService, activityService: activityService}
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPasswordRequest 重置密码请求
type ResetPasswordRequest struct {
	UserID      uint   `json:"userId" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// CreateUser 创建普通用户
// @Summary 创建普通用户
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "用户信息"
// @Success 201 {object} response.Response "创建成功"
// @Failure 409 {object} response.Response "邮箱已存在"
// @Router /admin/create-user [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	h.create(c, database.RoleUser)
}

// CreateAdmin 创建管理员
// @Summary 创建管理员
// @Description 仅超级管理员可用
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "用户信息"
// @Success 201 {object} response.Response "创建成功"
// @Failure 403 {object} response.Response "权限不足"
// @Failure 409 {object} response.Response "邮箱已存在"
// @Router /admin/create-admin [post]
func (h *AdminHandler) CreateAdmin(c *gin.Context) {
	h.create(c, database.RoleAdmin)
}

func (h *AdminHandler) create(c *gin.Context, role database.Role) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	view, err := h.userService.CreateUser(actor, req.Email, req.Password, role)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, view)
}

// ListUsers 用户列表
// @Summary 用户列表
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response "用户列表"
// @Router /admin/list-users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers()
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, users)
}

// ResetPassword 重置密码
// @Summary 重置密码
// @Description 只能重置角色低于自己的用户
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ResetPasswordRequest true "重置信息"
// @Success 200 {object} response.Response "重置成功"
// @Failure 403 {object} response.Response "权限不足"
// @Failure 404 {object} response.Response "用户不存在"
// @Router /admin/reset-password [post]
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	if err := h.userService.ResetPassword(actor, req.UserID, req.NewPassword); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "密码已重置", nil)
}

// DeleteUser 删除用户
// @Summary 删除用户
// @Description 同时删除该用户的分享链接、文件、文件夹和物理目录
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} response.Response "删除成功"
// @Failure 403 {object} response.Response "权限不足"
// @Failure 404 {object} response.Response "用户不存在"
// @Router /admin/delete-user/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "用户ID无效")
		return
	}
	if err := h.userService.DeleteUser(actor, uint(id)); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "用户已删除", nil)
}

// ActivityLogs 操作日志
// @Summary 操作日志
// @Description 按时间倒序返回，take 默认200，最大1000
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param take query int false "条数"
// @Success 200 {object} response.Response "操作日志"
// @Router /admin/activity-logs [get]
func (h *AdminHandler) ActivityLogs(c *gin.Context) {
	take, ok := optionalInt(c, "take")
	if !ok {
		return
	}
	n := 0
	if take != nil {
		n = *take
	}
	logs, err := h.activityService.List(n)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, logs)
}

// currentActor 当前操作者
func currentActor(c *gin.Context) (userservice.Actor, bool) {
	id, ok := currentUserID(c)
	if !ok {
		return userservice.Actor{}, false
	}
	role, _ := middleware.CurrentRole(c)
	return userservice.Actor{ID: id, Role: role}, true
}
