package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// EmployeeHandler 员工处理器
type EmployeeHandler struct {
	svc *service.EmployeeService
}

func NewEmployeeHandler(svc *service.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{svc: svc}
}

// ListEmployees 员工列表
// GET /api/v1/crm/employees?search=xxx&department=xxx&status=xxx&page=1&page_size=20
func (h *EmployeeHandler) ListEmployees(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"search":     c.Query("search"),
		"department": c.Query("department"),
		"status":     c.Query("status"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取员工列表失败: "+err.Error())
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

// ListActiveEmployees 在职员工（线索分配候选）
// GET /api/v1/crm/employees/active
func (h *EmployeeHandler) ListActiveEmployees(c *gin.Context) {
	items, err := h.svc.ListActive(c.Request.Context())
	if err != nil {
		InternalError(c, "获取员工列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

// GetEmployee 员工详情
// GET /api/v1/crm/employees/:id
func (h *EmployeeHandler) GetEmployee(c *gin.Context) {
	id := c.Param("id")
	employee, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		NotFound(c, "员工不存在")
		return
	}
	Success(c, employee)
}

// CreateEmployee 创建员工（管理员）
// POST /api/v1/crm/employees
func (h *EmployeeHandler) CreateEmployee(c *gin.Context) {
	var req service.CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	employee, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		InternalError(c, "创建员工失败: "+err.Error())
		return
	}

	Created(c, employee)
}

// UpdateEmployee 更新员工（管理员）
// PUT /api/v1/crm/employees/:id
func (h *EmployeeHandler) UpdateEmployee(c *gin.Context) {
	id := c.Param("id")
	var req service.UpdateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	employee, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "员工不存在")
			return
		}
		InternalError(c, "更新员工失败: "+err.Error())
		return
	}

	Success(c, employee)
}
