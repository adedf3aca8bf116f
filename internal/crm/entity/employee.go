package entity

import "time"

// Employee 员工目录（只读查询，用于线索分配）
type Employee struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	Name         string     `json:"name" gorm:"size:100;not null"`
	Email        string     `json:"email" gorm:"size:200;uniqueIndex;not null"`
	Department   string     `json:"department" gorm:"size:100;index"`
	Position     string     `json:"position" gorm:"size:100"`
	Status       string     `json:"status" gorm:"size:20;default:active"`
	PasswordHash string     `json:"-" gorm:"size:100"`
	Roles        JSONBArray `json:"roles" gorm:"type:jsonb"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Employee) TableName() string {
	return "crm_employees"
}

// 员工状态
const (
	EmployeeStatusActive   = "active"
	EmployeeStatusInactive = "inactive"
)
