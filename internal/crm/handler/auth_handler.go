package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login 邮箱+密码登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	employee, tokenPair, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			Unauthorized(c, "邮箱或密码错误")
			return
		}
		InternalError(c, "登录失败: "+err.Error())
		return
	}

	Success(c, gin.H{
		"employee": employee,
		"token":    tokenPair,
	})
}

// RefreshRequest 刷新Token请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh 刷新Token
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	tokenPair, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		Unauthorized(c, "刷新Token失败: "+err.Error())
		return
	}

	Success(c, tokenPair)
}

// Logout 登出
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		InternalError(c, "登出失败: "+err.Error())
		return
	}

	Success(c, nil)
}

// Me 当前登录员工
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := GetUserID(c)
	employee, err := h.svc.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		NotFound(c, "员工不存在")
		return
	}
	Success(c, employee)
}
