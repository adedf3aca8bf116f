package entity

import "time"

// Contact 客户通讯录条目（独立于线索）
type Contact struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:200"`
	Phone     string    `json:"phone" gorm:"size:50"`
	Company   string    `json:"company" gorm:"size:200"`
	Website   string    `json:"website" gorm:"size:200"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Contact) TableName() string {
	return "crm_contacts"
}
