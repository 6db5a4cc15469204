package entity

import "time"

// ProcessType 作业动作
const (
	ProcessStart  = "BAS" // 开始
	ProcessStop   = "DUR" // 暂停
	ProcessResume = "DEV" // 继续
	ProcessFinish = "BIT" // 结束
)

// Activity 作业记录，只追加不修改
type Activity struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Code         string    `json:"code" gorm:"size:36;not null;uniqueIndex"`
	WorkOrderID  int64     `json:"work_order_id" gorm:"not null;index:idx_activity_wo_emp"`
	EmployeeID   int64     `json:"employee_id" gorm:"not null;index:idx_activity_wo_emp"`
	ResourceCode string    `json:"resource_code" gorm:"size:50;not null"`
	ProcessType  string    `json:"process_type" gorm:"size:3;not null"`
	StartedAt    time.Time `json:"started_at" gorm:"not null;index"`
	BreakCode    *string   `json:"break_code" gorm:"size:20"`
	Notes        *string   `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Activity) TableName() string {
	return "mes_activities"
}
