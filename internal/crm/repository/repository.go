package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories CRM仓库集合
type Repositories struct {
	Lead     *LeadRepository
	Contact  *ContactRepository
	Employee *EmployeeRepository
}

// NewRepositories 创建CRM仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Lead:     NewLeadRepository(db),
		Contact:  NewContactRepository(db),
		Employee: NewEmployeeRepository(db),
	}
}
