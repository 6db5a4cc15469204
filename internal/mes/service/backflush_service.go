package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/erp"
	"github.com/bitfantasy/nimo-mes/internal/metrics"
	"go.uber.org/zap"
)

// BackflushRequest 倒冲请求
type BackflushRequest struct {
	WorkOrder      *entity.WorkOrder
	EntryQty       float64
	EmployeeID     int64
	IdempotencyKey string
	DocDate        time.Time
}

// IssuedMaterial 实际发料明细
type IssuedMaterial struct {
	ItemCode  string           `json:"item_code"`
	ItemName  string           `json:"item_name"`
	Warehouse string           `json:"warehouse"`
	LineNum   int              `json:"line_num"`
	Quantity  float64          `json:"quantity"`
	Batches   []AllocationLine `json:"batches,omitempty"`
}

// BackflushResult 倒冲结果，无BOM时 DocEntry 为0
type BackflushResult struct {
	DocEntry  int64            `json:"doc_entry"`
	DocNum    int64            `json:"doc_num"`
	Materials []IssuedMaterial `json:"materials"`
}

// HasDocument 是否创建了发料单
func (r *BackflushResult) HasDocument() bool {
	return r != nil && r.DocEntry > 0
}

// BackflushService 按报工数量倒冲原材料
type BackflushService struct {
	stock  *StockService
	client DocumentClient
	logger *zap.Logger
}

func NewBackflushService(stock *StockService, client DocumentClient, logger *zap.Logger) *BackflushService {
	return &BackflushService{stock: stock, client: client, logger: logger.Named("backflush")}
}

// Execute 校验库存、分配批次并创建发料单
// 校验和批次分配是两次独立读取，分配阶段会再次确认数量
func (s *BackflushService) Execute(ctx context.Context, req BackflushRequest) (*BackflushResult, error) {
	wo := req.WorkOrder
	log := s.logger.With(
		zap.Int64("work_order_id", wo.ID),
		zap.Float64("entry_qty", req.EntryQty),
		zap.String("idempotency_key", req.IdempotencyKey),
	)

	// 1. 预检
	shortages, err := s.stock.ValidateAvailability(ctx, wo.ID, req.EntryQty)
	if err != nil {
		return nil, err
	}
	if len(shortages) > 0 {
		items := make([]ShortageItem, 0, len(shortages))
		for _, r := range shortages {
			items = append(items, r.ToShortage())
		}
		metrics.RecordShortage("preflight")
		log.Warn("backflush rejected: insufficient stock", zap.Int("shortages", len(items)))
		return nil, InsufficientStockError(items)
	}

	// 2. 需求
	reqs, err := s.stock.ComputeRequirements(ctx, wo.ID, req.EntryQty)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		log.Info("no BOM lines, backflush skipped")
		return &BackflushResult{Materials: []IssuedMaterial{}}, nil
	}

	// 3. 分配
	lines := make([]erp.IssueLine, 0, len(reqs))
	issued := make([]IssuedMaterial, 0, len(reqs))
	for _, r := range reqs {
		line := erp.IssueLine{
			ItemCode:      r.ItemCode,
			Quantity:      r.RequiredQty,
			WarehouseCode: r.Warehouse,
			BaseType:      erp.BaseTypeProductionOrder,
			BaseEntry:     wo.ID,
			BaseLine:      r.LineNum,
		}
		mat := IssuedMaterial{
			ItemCode:  r.ItemCode,
			ItemName:  r.ItemName,
			Warehouse: r.Warehouse,
			LineNum:   r.LineNum,
			Quantity:  r.RequiredQty,
		}

		if r.IsBatchManaged {
			alloc, err := s.stock.SelectBatchesLIFO(ctx, r.ItemCode, r.Warehouse, r.RequiredQty)
			if err != nil {
				return nil, err
			}
			if !alloc.IsSufficient {
				metrics.RecordShortage("allocation")
				log.Warn("batch allocation short after preflight passed",
					zap.String("item_code", r.ItemCode),
					zap.Float64("shortage", alloc.ShortageQty),
				)
				return nil, InsufficientStockError([]ShortageItem{{
					ItemCode:  r.ItemCode,
					ItemName:  r.ItemName,
					Required:  r.RequiredQty,
					Available: alloc.AllocatedQty,
					Shortage:  alloc.ShortageQty,
					Warehouse: r.Warehouse,
				}})
			}
			for _, a := range alloc.Lines {
				line.BatchNumbers = append(line.BatchNumbers, erp.BatchLine{BatchNumber: a.BatchNumber, Quantity: a.Quantity})
			}
			mat.Batches = alloc.Lines
		} else {
			available, err := s.stock.TotalAvailable(ctx, r.ItemCode, r.Warehouse)
			if err != nil {
				return nil, fmt.Errorf("get available qty of %s: %w", r.ItemCode, err)
			}
			if available < r.RequiredQty {
				metrics.RecordShortage("allocation")
				shortage := r
				shortage.AvailableQty = available
				shortage.Shortage = qty(dec(r.RequiredQty).Sub(dec(available)))
				return nil, InsufficientStockError([]ShortageItem{shortage.ToShortage()})
			}
		}
		lines = append(lines, line)
		issued = append(issued, mat)
	}

	// 4. 组单
	docDate := req.DocDate
	if docDate.IsZero() {
		docDate = time.Now()
	}
	doc := &erp.MaterialIssue{
		DocDate:       docDate.Format("2006-01-02"),
		Comments:      fmt.Sprintf("Backflush for production order %s by employee %d", wo.DocNum, req.EmployeeID),
		Reference2:    wo.DocNum,
		DocumentLines: lines,
	}

	// 5. 提交ERP
	ref, err := s.client.CreateMaterialIssue(ctx, doc, req.IdempotencyKey)
	if err != nil {
		log.Error("material issue failed", zap.Error(err))
		return nil, IntegrationError("ERP rejected the material issue document", err)
	}

	log.Info("material issue created", zap.Int64("doc_entry", ref.DocEntry), zap.Int("lines", len(lines)))
	return &BackflushResult{DocEntry: ref.DocEntry, DocNum: ref.DocNum, Materials: issued}, nil
}
