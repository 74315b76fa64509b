package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/ditdrive/internal/response"
	shareservice "github.com/weiwangfds/ditdrive/internal/service/share"
)

// ShareHandler 分享处理器
// @Description 分享链接的创建与匿名访问
type ShareHandler struct {
	shareService shareservice.ShareService
}

// NewShareHandler 创建分享处理器实例
func NewShareHandler(shareService shareservice.ShareService) *ShareHandler {
	return &ShareHandler{shareService: shareService}
}

// ShareFile 分享文件
// @Summary 分享文件
// @Description 每次调用都会生成新的链接
// @Tags 分享
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件公开ID"
// @Success 201 {object} response.Response "分享链接"
// @Failure 404 {object} response.Response "文件不存在"
// @Router /share/{publicId} [post]
func (h *ShareHandler) ShareFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	result, err := h.shareService.CreateFileShare(c.Request.Context(), userID, c.Param("publicId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, result)
}

// ShareFolder 分享文件夹
// @Summary 分享文件夹
// @Tags 分享
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件夹公开ID"
// @Success 201 {object} response.Response "分享链接"
// @Failure 404 {object} response.Response "文件夹不存在"
// @Router /share/folder/{publicId} [post]
func (h *ShareHandler) ShareFolder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	result, err := h.shareService.CreateFolderShare(c.Request.Context(), userID, c.Param("publicId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, result)
}

// OpenFileShare 访问文件分享
// @Summary 访问文件分享
// @Description 无需登录；图片和视频在线显示，其余类型作为附件下载
// @Tags 分享
// @Produce octet-stream
// @Param token path string true "分享令牌"
// @Success 200 {file} file "文件内容"
// @Failure 404 {object} response.Response "分享不存在"
// @Router /s/file/{token} [get]
func (h *ShareHandler) OpenFileShare(c *gin.Context) {
	content, err := h.shareService.ResolveFileShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	defer content.Close()
	serveContent(c, content, content.Name, content.ContentType, content.ModTime, inlineType(content.ContentType))
}

// OpenFolderShare 访问文件夹分享
// @Summary 访问文件夹分享
// @Description 无需登录，返回文件夹的zip压缩包
// @Tags 分享
// @Produce application/zip
// @Param token path string true "分享令牌"
// @Success 200 {file} file "zip文件"
// @Failure 404 {object} response.Response "分享不存在"
// @Router /s/folder/{token} [get]
func (h *ShareHandler) OpenFolderShare(c *gin.Context) {
	archive, err := h.shareService.ResolveFolderShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	defer archive.Close()
	serveContent(c, archive, archive.Name, "application/zip", nowUTC(), false)
}

// inlineType 图片和视频可在浏览器中直接显示，svg 可携带脚本，按附件处理
func inlineType(contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "image/svg") {
		return false
	}
	return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/")
}
