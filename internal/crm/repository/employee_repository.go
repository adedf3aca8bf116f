package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"gorm.io/gorm"
)

// EmployeeRepository 员工仓库
type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindAll 查询员工列表
func (r *EmployeeRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Employee, int64, error) {
	var items []entity.Employee
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Employee{})

	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR email ILIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if department := filters["department"]; department != "" {
		query = query.Where("department = ?", department)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
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

// ListActive 查询全部在职员工（线索分配下拉）
func (r *EmployeeRepository) ListActive(ctx context.Context) ([]entity.Employee, error) {
	var items []entity.Employee
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.EmployeeStatusActive).
		Order("name ASC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID查找员工
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*entity.Employee, error) {
	var employee entity.Employee
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&employee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &employee, nil
}

// FindByEmail 根据邮箱查找员工（登录）
func (r *EmployeeRepository) FindByEmail(ctx context.Context, email string) (*entity.Employee, error) {
	var employee entity.Employee
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&employee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &employee, nil
}

// Create 创建员工
func (r *EmployeeRepository) Create(ctx context.Context, employee *entity.Employee) error {
	return r.db.WithContext(ctx).Create(employee).Error
}

// Update 更新员工
func (r *EmployeeRepository) Update(ctx context.Context, employee *entity.Employee) error {
	return r.db.WithContext(ctx).Save(employee).Error
}

// CountAll 统计员工总数（启动时判断是否初始化管理员）
func (r *EmployeeRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Employee{}).Count(&count).Error
	return count, err
}
