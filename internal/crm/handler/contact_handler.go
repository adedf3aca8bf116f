package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// ContactHandler 联系人处理器
type ContactHandler struct {
	svc *service.ContactService
}

func NewContactHandler(svc *service.ContactService) *ContactHandler {
	return &ContactHandler{svc: svc}
}

// ListContacts 联系人列表
// GET /api/v1/crm/contacts?search=xxx&company=xxx&page=1&page_size=20
func (h *ContactHandler) ListContacts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"search":  c.Query("search"),
		"company": c.Query("company"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取联系人列表失败: "+err.Error())
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

// GetContact 联系人详情
// GET /api/v1/crm/contacts/:id
func (h *ContactHandler) GetContact(c *gin.Context) {
	id := c.Param("id")
	contact, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		NotFound(c, "联系人不存在")
		return
	}
	Success(c, contact)
}

// CreateContact 创建联系人
// POST /api/v1/crm/contacts
func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req service.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	userID := GetUserID(c)
	contact, err := h.svc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		InternalError(c, "创建联系人失败: "+err.Error())
		return
	}

	Created(c, contact)
}

// UpdateContact 更新联系人
// PUT /api/v1/crm/contacts/:id
func (h *ContactHandler) UpdateContact(c *gin.Context) {
	id := c.Param("id")
	var req service.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	contact, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "联系人不存在")
			return
		}
		InternalError(c, "更新联系人失败: "+err.Error())
		return
	}

	Success(c, contact)
}

// DeleteContact 删除联系人。被线索引用时返回409。
// DELETE /api/v1/crm/contacts/:id
func (h *ContactHandler) DeleteContact(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrContactReferenced) {
			Conflict(c, "联系人已被线索引用，无法删除")
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "联系人不存在")
			return
		}
		InternalError(c, "删除联系人失败: "+err.Error())
		return
	}
	Success(c, nil)
}
