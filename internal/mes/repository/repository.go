package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Repositories MES 仓库集合
type Repositories struct {
	WorkOrder       *WorkOrderRepository
	Activity        *ActivityRepository
	Employee        *EmployeeRepository
	BreakReason     *BreakReasonRepository
	Stock           *StockRepository
	ProductionEntry *ProductionEntryRepository
	BatchSequence   *BatchSequenceRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		WorkOrder:       NewWorkOrderRepository(db),
		Activity:        NewActivityRepository(db),
		Employee:        NewEmployeeRepository(db),
		BreakReason:     NewBreakReasonRepository(db),
		Stock:           NewStockRepository(db),
		ProductionEntry: NewProductionEntryRepository(db),
		BatchSequence:   NewBatchSequenceRepository(db),
	}
}
