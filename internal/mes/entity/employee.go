package entity

import (
	"strings"
	"time"
)

// Employee 员工
type Employee struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	FirstName string    `json:"first_name" gorm:"size:50"`
	LastName  string    `json:"last_name" gorm:"size:50"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
}

func (Employee) TableName() string {
	return "mes_employees"
}

func (e *Employee) DisplayName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// BreakReason 停机原因
type BreakReason struct {
	Code      string    `json:"code" gorm:"primaryKey;size:20"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
}

func (BreakReason) TableName() string {
	return "mes_break_reasons"
}
