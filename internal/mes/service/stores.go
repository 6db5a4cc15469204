package service

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/erp"
)

// 服务依赖的存储接口，由 repository 包实现

type WorkOrderStore interface {
	FindByID(ctx context.Context, id int64) (*entity.WorkOrder, error)
	GetMaterials(ctx context.Context, woID int64) ([]entity.WorkOrderMaterial, error)
	AddProgress(ctx context.Context, woID int64, accepted, rejected float64) (*entity.WorkOrder, error)
}

type ActivityStore interface {
	Create(ctx context.Context, a *entity.Activity) error
	FindLatest(ctx context.Context, woID, employeeID int64) (*entity.Activity, error)
	FindByWorkOrder(ctx context.Context, woID int64) ([]entity.Activity, error)
	FindLatestPerEmployee(ctx context.Context, woID int64) ([]entity.Activity, error)
}

type EmployeeStore interface {
	FindNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

type BreakReasonStore interface {
	FindByCode(ctx context.Context, code string) (*entity.BreakReason, error)
	ListActive(ctx context.Context) ([]entity.BreakReason, error)
	Search(ctx context.Context, keyword string) ([]entity.BreakReason, error)
}

type StockStore interface {
	GetAvailableQty(ctx context.Context, itemCode, warehouse string) (float64, error)
	GetAvailableBatches(ctx context.Context, itemCode, warehouse string) ([]entity.StockBatch, error)
	MaxBatchSequence(ctx context.Context, dayKey string) (*int, error)
}

type ProductionEntryStore interface {
	Create(ctx context.Context, e *entity.ProductionEntry) error
	FindByRequestKey(ctx context.Context, key string) (*entity.ProductionEntry, error)
	UpdateStatus(ctx context.Context, e *entity.ProductionEntry) error
	SaveDocument(ctx context.Context, d *entity.ERPDocument) error
}

// SequenceCounter 每日流水号计数器，Next 的返回值不小于 floor+1
type SequenceCounter interface {
	Next(ctx context.Context, dayKey string, floor int) (int, error)
}

// DocumentClient ERP 单据接口
type DocumentClient interface {
	CreateMaterialIssue(ctx context.Context, doc *erp.MaterialIssue, idempotencyKey string) (*erp.DocumentRef, error)
	CreateGoodsReceipt(ctx context.Context, doc *erp.GoodsReceipt, idempotencyKey string) (*erp.DocumentRef, error)
}
