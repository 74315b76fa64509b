package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/ditdrive/internal/response"
	folderservice "github.com/weiwangfds/ditdrive/internal/service/folder"
)

// FolderHandler 文件夹处理器
// @Description 文件夹的创建、重命名、浏览、删除与打包下载
type FolderHandler struct {
	folderService folderservice.FolderService
}

// NewFolderHandler 创建文件夹处理器实例
func NewFolderHandler(folderService folderservice.FolderService) *FolderHandler {
	return &FolderHandler{folderService: folderService}
}

// CreateFolderRequest 创建文件夹请求
type CreateFolderRequest struct {
	Name           string `json:"name" binding:"required,max=1024"`
	ParentPublicID string `json:"parentPublicId"`
}

// RenameFolderRequest 重命名文件夹请求
type RenameFolderRequest struct {
	Name string `json:"name" binding:"required,max=1024"`
}

// CreateFolder 创建文件夹
// @Summary 创建文件夹
// @Tags 文件夹管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateFolderRequest true "文件夹信息"
// @Success 201 {object} response.Response "创建成功"
// @Failure 400 {object} response.Response "名称无效"
// @Failure 404 {object} response.Response "父文件夹不存在"
// @Router /folders [post]
func (h *FolderHandler) CreateFolder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	view, err := h.folderService.CreateFolder(userID, req.Name, req.ParentPublicID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, view)
}

// RenameFolder 重命名文件夹
// @Summary 重命名文件夹
// @Tags 文件夹管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件夹公开ID"
// @Param request body RenameFolderRequest true "新名称"
// @Success 200 {object} response.Response "重命名成功"
// @Failure 404 {object} response.Response "文件夹不存在"
// @Router /folders/{publicId} [put]
func (h *FolderHandler) RenameFolder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req RenameFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	view, err := h.folderService.RenameFolder(userID, c.Param("publicId"), req.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, view)
}

// GetFolder 获取文件夹内容
// @Summary 获取文件夹内容
// @Description publicId 为 root 时返回顶层内容，子项按名称排序（不区分大小写）
// @Tags 文件夹管理
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件夹公开ID或root"
// @Success 200 {object} response.Response "文件夹内容"
// @Failure 404 {object} response.Response "文件夹不存在"
// @Router /folders/{publicId} [get]
func (h *FolderHandler) GetFolder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	listing, err := h.folderService.GetListing(userID, c.Param("publicId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, listing)
}

// FolderExists 检查同名文件夹
// @Summary 检查同名文件夹
// @Description 仅用于客户端提示，不保证后续创建不冲突
// @Tags 文件夹管理
// @Produce json
// @Security BearerAuth
// @Param name query string true "文件夹名称"
// @Param parentPublicId query string false "父文件夹公开ID或root"
// @Success 200 {object} response.Response "检查结果"
// @Router /folders/exists [get]
func (h *FolderHandler) FolderExists(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	exists, err := h.folderService.FolderExists(userID, c.Query("name"), c.Query("parentPublicId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"exists": exists})
}

// DeleteFolder 删除文件夹
// @Summary 删除文件夹
// @Description 将文件夹及其全部内容移入回收站
// @Tags 文件夹管理
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件夹公开ID"
// @Success 200 {object} response.Response "已移入回收站"
// @Failure 404 {object} response.Response "文件夹不存在"
// @Router /folders/{publicId} [delete]
func (h *FolderHandler) DeleteFolder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.folderService.MoveFolderToTrash(userID, c.Param("publicId")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "文件夹已移入回收站", nil)
}

// DownloadFolder 打包下载文件夹
// @Summary 打包下载文件夹
// @Description 将文件夹子树打包为zip，回收站中的内容不包含在内
// @Tags 文件夹管理
// @Produce application/zip
// @Security BearerAuth
// @Param publicId path string true "文件夹公开ID"
// @Success 200 {file} file "zip文件"
// @Failure 404 {object} response.Response "文件夹不存在"
// @Router /folders/download/{publicId} [get]
func (h *FolderHandler) DownloadFolder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	archive, err := h.folderService.ExportFolder(userID, c.Param("publicId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	defer archive.Close()
	serveContent(c, archive, archive.Name, "application/zip", nowUTC(), false)
}
