package service

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/sse"
	"github.com/google/uuid"
)

// ErrContactReferenced 联系人仍被线索引用，拒绝删除
var ErrContactReferenced = errors.New("contact is referenced by existing leads")

// ContactService 联系人服务
type ContactService struct {
	repo     *repository.ContactRepository
	leadRepo *repository.LeadRepository
}

func NewContactService(repo *repository.ContactRepository, leadRepo *repository.LeadRepository) *ContactService {
	return &ContactService{repo: repo, leadRepo: leadRepo}
}

// CreateContactRequest 创建联系人请求
type CreateContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Website string `json:"website"`
	Notes   string `json:"notes"`
}

// UpdateContactRequest 更新联系人请求
type UpdateContactRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
	Website *string `json:"website"`
	Notes   *string `json:"notes"`
}

// List 获取联系人列表
func (s *ContactService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Contact, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// Get 获取联系人详情
func (s *ContactService) Get(ctx context.Context, id string) (*entity.Contact, error) {
	return s.repo.FindByID(ctx, id)
}

// Create 创建联系人
func (s *ContactService) Create(ctx context.Context, userID string, req *CreateContactRequest) (*entity.Contact, error) {
	contact := &entity.Contact{
		ID:        uuid.New().String()[:32],
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Website:   req.Website,
		Notes:     req.Notes,
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, err
	}

	sse.PublishContactUpdate(contact.ID, "created")
	return contact, nil
}

// Update 更新联系人
func (s *ContactService) Update(ctx context.Context, id string, req *UpdateContactRequest) (*entity.Contact, error) {
	contact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		contact.Name = *req.Name
	}
	if req.Email != nil {
		contact.Email = *req.Email
	}
	if req.Phone != nil {
		contact.Phone = *req.Phone
	}
	if req.Company != nil {
		contact.Company = *req.Company
	}
	if req.Website != nil {
		contact.Website = *req.Website
	}
	if req.Notes != nil {
		contact.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// Delete 删除联系人。被任何线索引用时拒绝，服务端强制校验。
func (s *ContactService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	count, err := s.leadRepo.CountByContactID(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrContactReferenced
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	sse.PublishContactUpdate(id, "deleted")
	return nil
}
