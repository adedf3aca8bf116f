package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeadRepository 线索仓库
type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// FindAll 查询线索列表
func (r *LeadRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Lead, int64, error) {
	var items []entity.Lead
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Lead{})

	if search := filters["search"]; search != "" {
		query = query.Where("opportunity_name ILIKE ? OR client_name ILIKE ? OR company ILIKE ? OR code ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%", "%"+search+"%")
	}
	if stage := filters["stage"]; stage != "" {
		query = query.Where("stage = ?", stage)
	}
	if assignedTo := filters["assigned_to"]; assignedTo != "" {
		query = query.Where("assigned_to = ?", assignedTo)
	}
	if source := filters["lead_source"]; source != "" {
		query = query.Where("lead_source = ?", source)
	}
	if contactID := filters["contact_id"]; contactID != "" {
		query = query.Where("contact_id = ?", contactID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// ListBoard 查询全部线索（看板视图，按创建时间升序）
func (r *LeadRepository) ListBoard(ctx context.Context) ([]entity.Lead, error) {
	var items []entity.Lead
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID查找线索，预加载联系记录/历史/备注
func (r *LeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	var lead entity.Lead
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("ContactAttempts", func(db *gorm.DB) *gorm.DB {
			return db.Order("date ASC")
		}).
		Preload("StageHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("StageNotes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lead, nil
}

// Create 创建线索
func (r *LeadRepository) Create(ctx context.Context, lead *entity.Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}

// Update 更新线索（不级联保存关联）
func (r *LeadRepository) Update(ctx context.Context, lead *entity.Lead) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(lead).Error
}

// AddHistory 追加阶段历史
func (r *LeadRepository) AddHistory(ctx context.Context, h *entity.LeadStageHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

// ListHistory 查询阶段历史（插入顺序）
func (r *LeadRepository) ListHistory(ctx context.Context, leadID string) ([]entity.LeadStageHistory, error) {
	var items []entity.LeadStageHistory
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// AddAttempt 追加联系记录
func (r *LeadRepository) AddAttempt(ctx context.Context, a *entity.LeadContactAttempt) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// ListAttempts 查询联系记录
func (r *LeadRepository) ListAttempts(ctx context.Context, leadID string) ([]entity.LeadContactAttempt, error) {
	var items []entity.LeadContactAttempt
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("date ASC").
		Find(&items).Error
	return items, err
}

// AddNote 追加阶段备注
func (r *LeadRepository) AddNote(ctx context.Context, n *entity.LeadStageNote) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// FindNoteByID 根据ID查找阶段备注
func (r *LeadRepository) FindNoteByID(ctx context.Context, id string) (*entity.LeadStageNote, error) {
	var note entity.LeadStageNote
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &note, nil
}

// UpdateNote 更新阶段备注
func (r *LeadRepository) UpdateNote(ctx context.Context, n *entity.LeadStageNote) error {
	return r.db.WithContext(ctx).Save(n).Error
}

// ListNotes 查询线索全部阶段备注
func (r *LeadRepository) ListNotes(ctx context.Context, leadID string) ([]entity.LeadStageNote, error) {
	var items []entity.LeadStageNote
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// CountByContactID 统计引用某联系人的线索数量（删除联系人前校验）
func (r *LeadRepository) CountByContactID(ctx context.Context, contactID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Lead{}).
		Where("contact_id = ?", contactID).
		Count(&count).Error
	return count, err
}

// GenerateCode 生成线索编码 LEAD-{4位}
func (r *LeadRepository) GenerateCode(ctx context.Context) (string, error) {
	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.Lead{}).
		Select("COALESCE(MAX(code), 'LEAD-0000')").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	fmt.Sscanf(maxCode, "LEAD-%04d", &seq)
	seq++
	return fmt.Sprintf("LEAD-%04d", seq), nil
}
