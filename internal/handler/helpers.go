package handler

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/middleware"
	"github.com/weiwangfds/ditdrive/internal/response"
)

// currentUserID 读取认证中间件写入的用户ID，缺失时直接返回401
func currentUserID(c *gin.Context) (uint, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, apperrors.GetErrorMessage(apperrors.ErrUnauthorized))
		return 0, false
	}
	return id, true
}

// optionalInt 解析可选的整数查询参数
func optionalInt(c *gin.Context, key string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		response.BadRequest(c, key+" must be an integer")
		return nil, false
	}
	return &v, true
}

// nowUTC 打包内容的修改时间
func nowUTC() time.Time {
	return time.Now().UTC()
}

// disposition 生成 Content-Disposition，非ASCII文件名按 RFC 2231 编码
func disposition(kind, name string) string {
	if v := mime.FormatMediaType(kind, map[string]string{"filename": name}); v != "" {
		return v
	}
	return kind
}

// serveContent 输出可定位的内容，支持 Range 与条件请求
// inline 为 false 时浏览器按附件下载
func serveContent(c *gin.Context, content io.ReadSeeker, name, contentType string, modTime time.Time, inline bool) {
	kind := "attachment"
	if inline {
		kind = "inline"
	}
	c.Header("Content-Disposition", disposition(kind, name))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", "sandbox")
	if contentType != "" {
		c.Header("Content-Type", contentType)
	}
	http.ServeContent(c.Writer, c.Request, name, modTime, content)
}
