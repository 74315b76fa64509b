package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	healthservice "github.com/weiwangfds/ditdrive/internal/service/health"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	healthService healthservice.HealthService
}

// NewHealthHandler 创建健康检查处理器实例
func NewHealthHandler(healthService healthservice.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

// Health 基础健康检查
// @Summary 基础健康检查
// @Tags 健康检查
// @Produce json
// @Success 200 {object} healthservice.BasicReport
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.healthService.Basic())
}

// HealthFull 完整健康检查
// @Summary 完整健康检查
// @Description 检查数据库连通与存储目录可写，任一失败返回503
// @Tags 健康检查
// @Produce json
// @Success 200 {object} healthservice.FullReport
// @Failure 503 {object} healthservice.FullReport
// @Router /health/full [get]
func (h *HealthHandler) HealthFull(c *gin.Context) {
	report := h.healthService.Full(c.Request.Context())
	status := http.StatusOK
	if report.Status != healthservice.StatusOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
