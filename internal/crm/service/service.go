package service

import (
	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/shared/feishu"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Auth       *AuthService
	Lead       *LeadService
	Contact    *ContactService
	Employee   *EmployeeService
	Dashboard  *DashboardService
	Attachment *AttachmentService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Services {
	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			// Log warning but continue without MinIO
			minioClient = nil
		}
	}

	leadSvc := NewLeadService(repos.Lead, repos.Contact, repos.Employee, db)

	// 配置了飞书应用时启用阶段变更通知
	if cfg.Feishu.AppID != "" && cfg.Feishu.ChatID != "" {
		client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		leadSvc.SetNotifier(NewStageNotifier(client, cfg.Feishu.ChatID))
	}

	return &Services{
		Auth:       NewAuthService(repos.Employee, rdb, cfg),
		Lead:       leadSvc,
		Contact:    NewContactService(repos.Contact, repos.Lead),
		Employee:   NewEmployeeService(repos.Employee),
		Dashboard:  NewDashboardService(db),
		Attachment: NewAttachmentService(repos.Lead, minioClient, cfg.MinIO.Bucket),
	}
}
