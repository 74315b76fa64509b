package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/ditdrive/internal/response"
	fileservice "github.com/weiwangfds/ditdrive/internal/service/file"
)

// FileHandler 文件处理器
// @Description 文件上传、查看、下载与删除
type FileHandler struct {
	fileService fileservice.FileService
}

// NewFileHandler 创建文件处理器实例
func NewFileHandler(fileService fileservice.FileService) *FileHandler {
	return &FileHandler{
		fileService: fileService,
	}
}

// UploadFile 上传文件
// @Summary 上传文件
// @Description 以流式方式上传单个文件到指定文件夹，不指定文件夹时上传到顶层
// @Tags 文件管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param folderPublicId query string false "目标文件夹公开ID"
// @Param file formData file true "要上传的文件"
// @Success 201 {object} response.Response "上传成功"
// @Failure 400 {object} response.Response "请求参数错误"
// @Failure 404 {object} response.Response "目标文件夹不存在"
// @Failure 413 {object} response.Response "文件过大"
// @Router /files/upload [post]
func (h *FileHandler) UploadFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	reader, err := c.Request.MultipartReader()
	if err != nil {
		response.BadRequest(c, "请求必须是 multipart/form-data")
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			response.BadRequest(c, "未选择文件或文件无效")
			return
		}
		if err != nil {
			response.BadRequest(c, "无法解析上传内容")
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		view, err := h.fileService.Upload(c.Request.Context(), &fileservice.UploadRequest{
			UserID:         userID,
			FolderPublicID: c.Query("folderPublicId"),
			FileName:       part.FileName(),
			ContentType:    part.Header.Get("Content-Type"),
			Content:        part,
		})
		part.Close()
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.Created(c, view)
		return
	}
}

// ViewFile 在线查看文件
// @Summary 在线查看文件
// @Description 以 inline 方式返回文件内容，支持 Range 请求
// @Tags 文件管理
// @Produce octet-stream
// @Security BearerAuth
// @Param publicId path string true "文件公开ID"
// @Success 200 {file} file "文件内容"
// @Success 206 {file} file "部分内容"
// @Failure 404 {object} response.Response "文件不存在"
// @Router /files/view/{publicId} [get]
func (h *FileHandler) ViewFile(c *gin.Context) {
	h.serve(c, true)
}

// DownloadFile 下载文件
// @Summary 下载文件
// @Description 以附件方式下载文件，文件名为上传时的原始名称
// @Tags 文件管理
// @Produce octet-stream
// @Security BearerAuth
// @Param publicId path string true "文件公开ID"
// @Success 200 {file} file "文件内容"
// @Failure 404 {object} response.Response "文件不存在"
// @Router /files/download/{publicId} [get]
func (h *FileHandler) DownloadFile(c *gin.Context) {
	h.serve(c, false)
}

func (h *FileHandler) serve(c *gin.Context, inline bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	content, err := h.fileService.Open(userID, c.Param("publicId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	defer content.Close()
	serveContent(c, content, content.Name, content.ContentType, content.ModTime, inline)
}

// DeleteFile 删除文件
// @Summary 删除文件
// @Description 将文件移入回收站
// @Tags 文件管理
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件公开ID"
// @Success 200 {object} response.Response "已移入回收站"
// @Failure 404 {object} response.Response "文件不存在"
// @Router /files/{publicId} [delete]
func (h *FileHandler) DeleteFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.fileService.SoftDelete(userID, c.Param("publicId")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "文件已移入回收站", nil)
}

// GetUsage 获取空间占用
// @Summary 获取空间占用
// @Description 统计当前用户未删除文件的总字节数
// @Tags 文件管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response "空间占用"
// @Router /files/usage [get]
func (h *FileHandler) GetUsage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	used, err := h.fileService.Usage(userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"usedBytes": used})
}

// GetFile 获取文件信息
// @Summary 获取文件信息
// @Tags 文件管理
// @Produce json
// @Security BearerAuth
// @Param publicId path string true "文件公开ID"
// @Success 200 {object} response.Response "文件信息"
// @Failure 404 {object} response.Response "文件不存在"
// @Router /files/{publicId} [get]
func (h *FileHandler) GetFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	view, err := h.fileService.GetFile(userID, c.Param("publicId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, view)
}
