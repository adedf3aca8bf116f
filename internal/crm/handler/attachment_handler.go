package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// AttachmentHandler 提案附件处理器
type AttachmentHandler struct {
	svc *service.AttachmentService
}

func NewAttachmentHandler(svc *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{svc: svc}
}

// UploadProposal 上传提案文档（multipart form，字段名file）
// POST /api/v1/crm/leads/:id/proposal
func (h *AttachmentHandler) UploadProposal(c *gin.Context) {
	leadID := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少文件: "+err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "读取文件失败: "+err.Error())
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	objectKey, err := h.svc.UploadProposal(c.Request.Context(), leadID, fileHeader.Filename, file, fileHeader.Size, contentType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "线索不存在")
			return
		}
		if errors.Is(err, service.ErrStorageUnavailable) {
			InternalError(c, "对象存储未配置")
			return
		}
		InternalError(c, "上传附件失败: "+err.Error())
		return
	}

	Created(c, gin.H{
		"object_key": objectKey,
		"filename":   fileHeader.Filename,
	})
}

// GetProposalURL 获取提案文档下载链接
// GET /api/v1/crm/attachments/url?key=xxx
func (h *AttachmentHandler) GetProposalURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		BadRequest(c, "key is required")
		return
	}

	url, err := h.svc.GetProposalURL(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrStorageUnavailable) {
			InternalError(c, "对象存储未配置")
			return
		}
		InternalError(c, "生成下载链接失败: "+err.Error())
		return
	}

	Success(c, gin.H{"url": url})
}
