package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"gorm.io/gorm"
)

// ContactRepository 联系人仓库
type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// FindAll 查询联系人列表
func (r *ContactRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Contact, int64, error) {
	var items []entity.Contact
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Contact{})

	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR email ILIKE ? OR company ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}
	if company := filters["company"]; company != "" {
		query = query.Where("company = ?", company)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("name ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找联系人
func (r *ContactRepository) FindByID(ctx context.Context, id string) (*entity.Contact, error) {
	var contact entity.Contact
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &contact, nil
}

// Create 创建联系人
func (r *ContactRepository) Create(ctx context.Context, contact *entity.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

// Update 更新联系人
func (r *ContactRepository) Update(ctx context.Context, contact *entity.Contact) error {
	return r.db.WithContext(ctx).Save(contact).Error
}

// Delete 删除联系人
func (r *ContactRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Contact{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
