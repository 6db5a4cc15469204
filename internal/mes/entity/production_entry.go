package entity

import "time"

// ProductionEntryStatus 报工状态
const (
	EntryStatusPending        = "PENDING"
	EntryStatusMaterialIssued = "MATERIAL_ISSUED"
	EntryStatusCompleted      = "COMPLETED"
	EntryStatusFailed         = "FAILED"
)

// ERP单据步骤
const (
	StepMaterialIssue   = "MATERIAL_ISSUE"
	StepReceiptComplete = "RECEIPT_COMPLETE"
	StepReceiptReject   = "RECEIPT_REJECT"
)

// ERP单据状态
const (
	DocStatusSucceeded = "SUCCEEDED"
	DocStatusFailed    = "FAILED"
)

// ProductionEntry 报工记录，一次报工的各ERP步骤挂在其下
type ProductionEntry struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	RequestKey  string    `json:"request_key" gorm:"size:64;not null;uniqueIndex"`
	WorkOrderID int64     `json:"work_order_id" gorm:"not null;index"`
	EmployeeID  int64     `json:"employee_id" gorm:"not null"`
	AcceptedQty float64   `json:"accepted_qty" gorm:"type:decimal(19,6);default:0"`
	RejectedQty float64   `json:"rejected_qty" gorm:"type:decimal(19,6);default:0"`
	BatchNumber string    `json:"batch_number" gorm:"size:50;index"`
	Status      string    `json:"status" gorm:"size:20;not null;default:PENDING"`
	LastError   string    `json:"last_error" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Documents []ERPDocument `json:"documents,omitempty" gorm:"foreignKey:EntryID"`
}

func (ProductionEntry) TableName() string {
	return "mes_production_entries"
}

// Document 查找某步骤的单据
func (e *ProductionEntry) Document(step string) *ERPDocument {
	for i := range e.Documents {
		if e.Documents[i].Step == step {
			return &e.Documents[i]
		}
	}
	return nil
}

// ERPDocument 报工产生的ERP单据，幂等键 = 批次号:步骤
type ERPDocument struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	IdempotencyKey string    `json:"idempotency_key" gorm:"size:100;not null;uniqueIndex"`
	EntryID        int64     `json:"entry_id" gorm:"not null;index"`
	Step           string    `json:"step" gorm:"size:20;not null"`
	DocEntry       int64     `json:"doc_entry"`
	DocNum         int64     `json:"doc_num"`
	Status         string    `json:"status" gorm:"size:20;not null"`
	Error          string    `json:"error" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (ERPDocument) TableName() string {
	return "mes_erp_documents"
}

// Succeeded 单据是否已成功创建
func (d *ERPDocument) Succeeded() bool {
	return d != nil && d.Status == DocStatusSucceeded
}

// BatchSequence 每日批次流水号
type BatchSequence struct {
	DayKey    string    `json:"day_key" gorm:"primaryKey;size:32"`
	LastSeq   int       `json:"last_seq" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BatchSequence) TableName() string {
	return "mes_batch_sequences"
}
