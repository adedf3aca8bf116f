package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// LeadHandler 线索处理器
type LeadHandler struct {
	svc *service.LeadService
}

func NewLeadHandler(svc *service.LeadService) *LeadHandler {
	return &LeadHandler{svc: svc}
}

// ListLeads 线索列表
// GET /api/v1/crm/leads?search=xxx&stage=xxx&assigned_to=xxx&page=1&page_size=20
func (h *LeadHandler) ListLeads(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"search":      c.Query("search"),
		"stage":       c.Query("stage"),
		"assigned_to": c.Query("assigned_to"),
		"lead_source": c.Query("lead_source"),
		"contact_id":  c.Query("contact_id"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取线索列表失败: "+err.Error())
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// GetBoard 看板视图，线索按阶段分组
// GET /api/v1/crm/leads/board
func (h *LeadHandler) GetBoard(c *gin.Context) {
	board, err := h.svc.Board(c.Request.Context())
	if err != nil {
		InternalError(c, "获取看板失败: "+err.Error())
		return
	}
	Success(c, board)
}

// GetLead 线索详情
// GET /api/v1/crm/leads/:id
func (h *LeadHandler) GetLead(c *gin.Context) {
	id := c.Param("id")
	lead, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		NotFound(c, "线索不存在")
		return
	}
	Success(c, lead)
}

// CreateLead 创建线索
// POST /api/v1/crm/leads
func (h *LeadHandler) CreateLead(c *gin.Context) {
	var req service.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	userID := GetUserID(c)
	lead, err := h.svc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		InternalError(c, "创建线索失败: "+err.Error())
		return
	}

	Created(c, lead)
}

// UpdateLead 更新线索基础字段
// PUT /api/v1/crm/leads/:id
func (h *LeadHandler) UpdateLead(c *gin.Context) {
	id := c.Param("id")
	var req service.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	lead, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "线索不存在")
			return
		}
		InternalError(c, "更新线索失败: "+err.Error())
		return
	}

	Success(c, lead)
}

// ValidateStage 预检目标阶段，返回未满足条件列表
// GET /api/v1/crm/leads/:id/validate?target_stage=Won
func (h *LeadHandler) ValidateStage(c *gin.Context) {
	id := c.Param("id")
	targetStage := c.Query("target_stage")
	if targetStage == "" {
		BadRequest(c, "target_stage is required")
		return
	}

	errs, err := h.svc.Validate(c.Request.Context(), id, targetStage)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "线索不存在")
			return
		}
		InternalError(c, "校验失败: "+err.Error())
		return
	}

	Success(c, gin.H{
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}

// TransitionStage 提交阶段变更
// POST /api/v1/crm/leads/:id/transition
func (h *LeadHandler) TransitionStage(c *gin.Context) {
	id := c.Param("id")
	var req service.TransitionLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	userName := GetUserName(c)
	lead, err := h.svc.TransitionStage(c.Request.Context(), id, userName, &req)
	if err != nil {
		var verr *service.StageValidationError
		if errors.As(err, &verr) {
			c.JSON(400, Response{
				Code:    40000,
				Message: "stage validation failed",
				Data:    gin.H{"errors": verr.Errors},
			})
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "线索不存在")
			return
		}
		InternalError(c, "阶段变更失败: "+err.Error())
		return
	}

	Success(c, lead)
}

// ListHistory 阶段历史时间线（最早在前）
// GET /api/v1/crm/leads/:id/history
func (h *LeadHandler) ListHistory(c *gin.Context) {
	id := c.Param("id")
	items, err := h.svc.ListHistory(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "线索不存在")
			return
		}
		InternalError(c, "获取阶段历史失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

// AddAttempt 记录一次联系
// POST /api/v1/crm/leads/:id/attempts
func (h *LeadHandler) AddAttempt(c *gin.Context) {
	id := c.Param("id")
	var req service.AddAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	attempt, err := h.svc.AddAttempt(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "线索不存在")
			return
		}
		InternalError(c, "记录联系失败: "+err.Error())
		return
	}

	Created(c, attempt)
}

// ListNotes 阶段备注，按阶段分组
// GET /api/v1/crm/leads/:id/notes
func (h *LeadHandler) ListNotes(c *gin.Context) {
	id := c.Param("id")
	notes, err := h.svc.ListNotes(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "线索不存在")
			return
		}
		InternalError(c, "获取阶段备注失败: "+err.Error())
		return
	}
	Success(c, notes)
}

// AddNote 在当前阶段追加备注
// POST /api/v1/crm/leads/:id/notes
func (h *LeadHandler) AddNote(c *gin.Context) {
	id := c.Param("id")
	var req service.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	userName := GetUserName(c)
	note, err := h.svc.AddNote(c.Request.Context(), id, userName, &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "线索不存在")
			return
		}
		InternalError(c, "添加备注失败: "+err.Error())
		return
	}

	Created(c, note)
}

// EditNote 编辑备注内容
// PUT /api/v1/crm/leads/:id/notes/:noteId
func (h *LeadHandler) EditNote(c *gin.Context) {
	id := c.Param("id")
	noteID := c.Param("noteId")

	var req service.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	note, err := h.svc.EditNote(c.Request.Context(), id, noteID, req.Content)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "备注不存在")
			return
		}
		InternalError(c, "更新备注失败: "+err.Error())
		return
	}

	Success(c, note)
}

// ExportLeads 导出线索xlsx
// GET /api/v1/crm/leads/export?stage=xxx&search=xxx
func (h *LeadHandler) ExportLeads(c *gin.Context) {
	filters := map[string]string{
		"search":      c.Query("search"),
		"stage":       c.Query("stage"),
		"assigned_to": c.Query("assigned_to"),
		"lead_source": c.Query("lead_source"),
	}

	f, filename, err := h.svc.ExportLeads(c.Request.Context(), filters)
	if err != nil {
		InternalError(c, "导出失败: "+err.Error())
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
