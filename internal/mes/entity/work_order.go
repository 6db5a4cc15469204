package entity

import (
	"strings"
	"time"
)

// WorkOrderStatus 生产订单状态（与ERP同步）
const (
	WOStatusPlanned    = "PLANNED"
	WOStatusReleased   = "RELEASED"
	WOStatusInProgress = "IN_PROGRESS"
	WOStatusClosed     = "CLOSED"
	WOStatusCancelled  = "CANCELLED"
)

// WorkOrder 生产订单快照，ERP为权威数据源
type WorkOrder struct {
	ID           int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	DocNum       string     `json:"doc_num" gorm:"size:50;not null;uniqueIndex"`
	ItemCode     string     `json:"item_code" gorm:"size:64;not null;index"`
	ItemName     string     `json:"item_name" gorm:"size:200"`
	Status       string     `json:"status" gorm:"size:20;not null;default:PLANNED"`
	PlannedQty   float64    `json:"planned_qty" gorm:"type:decimal(19,6);not null"`
	CompletedQty float64    `json:"completed_qty" gorm:"type:decimal(19,6);default:0"`
	RejectedQty  float64    `json:"rejected_qty" gorm:"type:decimal(19,6);default:0"`
	Warehouse    string     `json:"warehouse" gorm:"size:20;not null"` // 成品入库仓库
	ResourceCode string     `json:"resource_code" gorm:"size:50"`      // 默认机台
	DueDate      *time.Time `json:"due_date"`
	StartDate    *time.Time `json:"start_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Materials []WorkOrderMaterial `json:"materials,omitempty" gorm:"foreignKey:WorkOrderID"`
}

func (WorkOrder) TableName() string {
	return "mes_work_orders"
}

// RemainingQty 剩余数量 = 计划数量 - 已完成数量
func (wo *WorkOrder) RemainingQty() float64 {
	remaining := wo.PlannedQty - wo.CompletedQty
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsOpen 是否允许报工
func (wo *WorkOrder) IsOpen() bool {
	switch strings.ToUpper(wo.Status) {
	case WOStatusReleased, WOStatusInProgress:
		return true
	}
	return false
}

// WorkOrderMaterial 订单BOM行
type WorkOrderMaterial struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	WorkOrderID  int64     `json:"work_order_id" gorm:"not null;index"`
	LineNum      int       `json:"line_num" gorm:"not null"`
	ItemCode     string    `json:"item_code" gorm:"size:64;not null"`
	ItemName     string    `json:"item_name" gorm:"size:200"`
	Warehouse    string    `json:"warehouse" gorm:"size:20;not null"`
	BaseQty      float64   `json:"base_qty" gorm:"type:decimal(19,6);not null"` // 单位产出耗用量
	BatchManaged bool      `json:"batch_managed" gorm:"default:false"`
	Unit         string    `json:"unit" gorm:"size:20;not null;default:pcs"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (WorkOrderMaterial) TableName() string {
	return "mes_work_order_materials"
}
