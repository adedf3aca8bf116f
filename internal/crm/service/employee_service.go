package service

import (
	"context"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// EmployeeService 员工服务
type EmployeeService struct {
	repo *repository.EmployeeRepository
}

func NewEmployeeService(repo *repository.EmployeeRepository) *EmployeeService {
	return &EmployeeService{repo: repo}
}

// CreateEmployeeRequest 创建员工请求
type CreateEmployeeRequest struct {
	Name       string   `json:"name" binding:"required"`
	Email      string   `json:"email" binding:"required,email"`
	Department string   `json:"department"`
	Position   string   `json:"position"`
	Password   string   `json:"password" binding:"required,min=8"`
	Roles      []string `json:"roles"`
}

// UpdateEmployeeRequest 更新员工请求
type UpdateEmployeeRequest struct {
	Name       *string   `json:"name"`
	Department *string   `json:"department"`
	Position   *string   `json:"position"`
	Status     *string   `json:"status"`
	Roles      *[]string `json:"roles"`
}

// List 获取员工列表
func (s *EmployeeService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Employee, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// ListActive 获取全部在职员工（线索分配候选）
func (s *EmployeeService) ListActive(ctx context.Context) ([]entity.Employee, error) {
	return s.repo.ListActive(ctx)
}

// Get 获取员工详情
func (s *EmployeeService) Get(ctx context.Context, id string) (*entity.Employee, error) {
	return s.repo.FindByID(ctx, id)
}

// Create 创建员工
func (s *EmployeeService) Create(ctx context.Context, req *CreateEmployeeRequest) (*entity.Employee, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{"crm_user"}
	}

	employee := &entity.Employee{
		ID:           uuid.New().String()[:32],
		Name:         req.Name,
		Email:        req.Email,
		Department:   req.Department,
		Position:     req.Position,
		Status:       entity.EmployeeStatusActive,
		PasswordHash: string(hash),
		Roles:        toRolesArray(roles),
	}

	if err := s.repo.Create(ctx, employee); err != nil {
		return nil, err
	}
	return employee, nil
}

// Update 更新员工
func (s *EmployeeService) Update(ctx context.Context, id string, req *UpdateEmployeeRequest) (*entity.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		employee.Name = *req.Name
	}
	if req.Department != nil {
		employee.Department = *req.Department
	}
	if req.Position != nil {
		employee.Position = *req.Position
	}
	if req.Status != nil {
		employee.Status = *req.Status
	}
	if req.Roles != nil {
		employee.Roles = toRolesArray(*req.Roles)
	}

	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, err
	}
	return employee, nil
}

func toRolesArray(roles []string) entity.JSONBArray {
	arr := make(entity.JSONBArray, len(roles))
	for i, r := range roles {
		arr[i] = r
	}
	return arr
}
