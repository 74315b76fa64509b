package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/ditdrive/internal/middleware"
	"github.com/weiwangfds/ditdrive/internal/response"
	trashservice "github.com/weiwangfds/ditdrive/internal/service/trash"
)

// TrashHandler 回收站处理器
// @Description 回收站浏览、恢复、永久删除与清理
type TrashHandler struct {
	trashService trashservice.TrashService
}

// NewTrashHandler 创建回收站处理器实例
func NewTrashHandler(trashService trashservice.TrashService) *TrashHandler {
	return &TrashHandler{trashService: trashService}
}

// ListTrash 回收站列表
// @Summary 回收站列表
// @Description 只列出被删除子树的根，父文件夹同在回收站中的条目不单独显示
// @Tags 回收站
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response "回收站内容"
// @Router /trash [get]
func (h *TrashHandler) ListTrash(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	listing, err := h.trashService.ListTrash(userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, listing)
}

// RestoreFile 恢复文件
// @Summary 恢复文件
// @Description 所在文件夹不可用时恢复到顶层
// @Tags 回收站
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件公开ID"
// @Success 200 {object} response.Response "已恢复"
// @Failure 404 {object} response.Response "文件不在回收站中"
// @Router /trash/restore/file/{publicId} [post]
func (h *TrashHandler) RestoreFile(c *gin.Context) {
	h.act(c, h.trashService.RestoreFile, "文件已恢复")
}

// RestoreFolder 恢复文件夹
// @Summary 恢复文件夹
// @Description 恢复整棵子树，父文件夹不可用时恢复到顶层
// @Tags 回收站
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件夹公开ID"
// @Success 200 {object} response.Response "已恢复"
// @Failure 404 {object} response.Response "文件夹不在回收站中"
// @Router /trash/restore/folder/{publicId} [post]
func (h *TrashHandler) RestoreFolder(c *gin.Context) {
	h.act(c, h.trashService.RestoreFolder, "文件夹已恢复")
}

// DeleteFile 永久删除文件
// @Summary 永久删除文件
// @Tags 回收站
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件公开ID"
// @Success 200 {object} response.Response "已永久删除"
// @Failure 404 {object} response.Response "文件不在回收站中"
// @Router /trash/file/{publicId} [delete]
func (h *TrashHandler) DeleteFile(c *gin.Context) {
	h.act(c, h.trashService.DeleteFilePermanently, "文件已永久删除")
}

// DeleteFolder 永久删除文件夹
// @Summary 永久删除文件夹
// @Description 删除整棵子树的记录、分享链接和物理文件
// @Tags 回收站
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件夹公开ID"
// @Success 200 {object} response.Response "已永久删除"
// @Failure 404 {object} response.Response "文件夹不在回收站中"
// @Router /trash/folder/{publicId} [delete]
func (h *TrashHandler) DeleteFolder(c *gin.Context) {
	h.act(c, h.trashService.DeleteFolderPermanently, "文件夹已永久删除")
}

// act 执行以公开ID为参数的回收站操作
func (h *TrashHandler) act(c *gin.Context, op func(userID uint, publicID string) error, message string) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := op(userID, c.Param("publicId")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, message, nil)
}

// Clean 清理过期条目
// @Summary 清理过期条目
// @Description 永久删除当前用户超过保留期的回收站条目，指定 retentionDays 需要管理员权限
// @Tags 回收站
// @Produce json
// @Security BearerAuth
// @Param retentionDays query int false "保留天数"
// @Success 200 {object} response.Response "清理结果"
// @Failure 403 {object} response.Response "无权指定保留天数"
// @Router /trash/clean [delete]
func (h *TrashHandler) Clean(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	days, ok := optionalInt(c, "retentionDays")
	if !ok {
		return
	}
	role, _ := middleware.CurrentRole(c)
	result, err := h.trashService.Clean(userID, role, days)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// SweepAll 全局清理
// @Summary 全局清理
// @Description 立即清理所有用户超过保留期的回收站条目
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param retentionDays query int false "保留天数"
// @Success 200 {object} response.Response "清理结果"
// @Router /admin/trash/sweep [post]
func (h *TrashHandler) SweepAll(c *gin.Context) {
	days, ok := optionalInt(c, "retentionDays")
	if !ok {
		return
	}
	result, err := h.trashService.SweepAll(days)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
