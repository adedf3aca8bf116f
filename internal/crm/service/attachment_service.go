package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ErrStorageUnavailable 对象存储未配置
var ErrStorageUnavailable = errors.New("object storage is not configured")

// AttachmentService 提案附件服务，文件存MinIO
type AttachmentService struct {
	leadRepo    *repository.LeadRepository
	minioClient *minio.Client
	bucket      string
}

// NewAttachmentService 创建附件服务
func NewAttachmentService(leadRepo *repository.LeadRepository, minioClient *minio.Client, bucket string) *AttachmentService {
	return &AttachmentService{
		leadRepo:    leadRepo,
		minioClient: minioClient,
		bucket:      bucket,
	}
}

// UploadProposal 上传提案文档并挂到线索上。
// 对象键带uuid前缀避免同名覆盖；线索记录原始文件名。
func (s *AttachmentService) UploadProposal(ctx context.Context, leadID, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if s.minioClient == nil {
		return "", ErrStorageUnavailable
	}

	lead, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return "", err
	}

	objectKey := fmt.Sprintf("proposals/%s/%s_%s", lead.ID, uuid.New().String()[:8], filepath.Base(filename))
	_, err = s.minioClient.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传附件失败: %w", err)
	}

	name := filepath.Base(filename)
	lead.ProposalDocument = &name
	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return "", fmt.Errorf("更新线索失败: %w", err)
	}

	return objectKey, nil
}

// GetProposalURL 生成提案文档的临时下载链接
func (s *AttachmentService) GetProposalURL(ctx context.Context, objectKey string) (string, error) {
	if s.minioClient == nil {
		return "", ErrStorageUnavailable
	}

	u, err := s.minioClient.PresignedGetObject(ctx, s.bucket, objectKey, 15*time.Minute, nil)
	if err != nil {
		return "", fmt.Errorf("生成下载链接失败: %w", err)
	}
	return u.String(), nil
}
