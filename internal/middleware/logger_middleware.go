package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/ditdrive/internal/logger"
)

// RequestIDHeader 请求追踪ID的请求/响应头
const RequestIDHeader = "X-Request-ID"

// ContextRequestIDKey 请求追踪ID在gin上下文中的键
const ContextRequestIDKey = "request_id"

// LoggerMiddleware 日志中间件
type LoggerMiddleware struct {
	logger    *logrus.Logger
	skipPaths map[string]bool
}

// NewLoggerMiddleware 创建日志中间件实例
// 参数:
//   - skipPaths: 不记录访问日志的路径，如 /health
func NewLoggerMiddleware(skipPaths ...string) *LoggerMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &LoggerMiddleware{
		logger:    logger.GetLogger(),
		skipPaths: skip,
	}
}

// RequestID 为每个请求分配追踪ID，客户端提供的合法ID会被沿用
func (m *LoggerMiddleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger 访问日志中间件，每个请求记录一条结构化日志
// 5xx 记为 error，4xx 记为 warn，其余为 info
func (m *LoggerMiddleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if m.skipPaths[path] {
			return
		}

		status := c.Writer.Status()
		fields := logrus.Fields{
			"status":     status,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"size":       c.Writer.Size(),
			"user_agent": c.Request.UserAgent(),
		}
		if raw != "" {
			fields["raw_query"] = raw
		}
		if id, ok := c.Get(ContextRequestIDKey); ok {
			fields["request_id"] = id
		}
		if uid, ok := c.Get(ContextUserIDKey); ok {
			fields["user_id"] = uid
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		entry := m.logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("HTTP Request")
		case status >= 400:
			entry.Warn("HTTP Request")
		default:
			entry.Info("HTTP Request")
		}
	}
}
