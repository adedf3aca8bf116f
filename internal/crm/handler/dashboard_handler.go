package handler

import (
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler 看板统计处理器
type DashboardHandler struct {
	svc *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// GetPipelineSummary 管道汇总
// GET /api/v1/crm/dashboard/pipeline
func (h *DashboardHandler) GetPipelineSummary(c *gin.Context) {
	summary, err := h.svc.GetPipelineSummary(c.Request.Context())
	if err != nil {
		InternalError(c, "获取管道汇总失败: "+err.Error())
		return
	}
	Success(c, summary)
}

// GetLostReasons 丢单原因分布
// GET /api/v1/crm/dashboard/lost-reasons
func (h *DashboardHandler) GetLostReasons(c *gin.Context) {
	items, err := h.svc.GetLostReasons(c.Request.Context())
	if err != nil {
		InternalError(c, "获取丢单原因分布失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}
