package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// 数量保留6位小数，与ERP一致
const qtyPlaces = 6

var (
	decimal2   = decimal.NewFromInt(2)
	decimal100 = decimal.NewFromInt(100)
)

// finite NaN 和 ±Inf 不能转为 decimal
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func qty(d decimal.Decimal) float64 {
	return d.Round(qtyPlaces).InexactFloat64()
}

// MaterialRequirement 物料需求
type MaterialRequirement struct {
	ItemCode       string  `json:"item_code"`
	ItemName       string  `json:"item_name"`
	Warehouse      string  `json:"warehouse"`
	BaseQtyRatio   float64 `json:"base_qty_ratio"`
	RequiredQty    float64 `json:"required_qty"`
	AvailableQty   float64 `json:"available_qty"`
	Shortage       float64 `json:"shortage"`
	IsBatchManaged bool    `json:"is_batch_managed"`
	LineNum        int     `json:"line_num"`
}

// ToShortage 转为缺料明细
func (r MaterialRequirement) ToShortage() ShortageItem {
	return ShortageItem{
		ItemCode:  r.ItemCode,
		ItemName:  r.ItemName,
		Required:  r.RequiredQty,
		Available: r.AvailableQty,
		Shortage:  r.Shortage,
		Warehouse: r.Warehouse,
	}
}

// BatchInfo 批次可用量，InDate + EntryOrdinal 决定新旧
type BatchInfo struct {
	ItemCode     string    `json:"item_code"`
	BatchNumber  string    `json:"batch_number"`
	InDate       time.Time `json:"in_date"`
	EntryOrdinal int64     `json:"entry_ordinal"`
	Warehouse    string    `json:"warehouse"`
	AvailableQty float64   `json:"available_qty"`
}

// AllocationLine 单批次分配量
type AllocationLine struct {
	BatchNumber string  `json:"batch_number"`
	Quantity    float64 `json:"quantity"`
}

// BatchAllocation 批次分配结果
// 各行数量之和 + ShortageQty = 需求数量
type BatchAllocation struct {
	ItemCode     string           `json:"item_code"`
	Warehouse    string           `json:"warehouse"`
	Lines        []AllocationLine `json:"lines"`
	IsSufficient bool             `json:"is_sufficient"`
	AllocatedQty float64          `json:"allocated_qty"`
	ShortageQty  float64          `json:"shortage_qty"`
}

// StockService 物料需求计算与批次分配
type StockService struct {
	workOrders WorkOrderStore
	stock      StockStore
}

func NewStockService(workOrders WorkOrderStore, stock StockStore) *StockService {
	return &StockService{workOrders: workOrders, stock: stock}
}

// ComputeRequirements 按报工数量计算每个BOM行的需求量和缺口
func (s *StockService) ComputeRequirements(ctx context.Context, orderID int64, entryQty float64) ([]MaterialRequirement, error) {
	if !finite(entryQty) {
		return nil, ValidationError("quantity must be a finite number")
	}
	materials, err := s.workOrders.GetMaterials(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get work order materials: %w", err)
	}

	entry := dec(entryQty)
	reqs := make([]MaterialRequirement, 0, len(materials))
	for _, m := range materials {
		available, err := s.stock.GetAvailableQty(ctx, m.ItemCode, m.Warehouse)
		if err != nil {
			return nil, fmt.Errorf("get available qty of %s: %w", m.ItemCode, err)
		}
		required := dec(m.BaseQty).Mul(entry)
		shortage := required.Sub(dec(available))
		if shortage.IsNegative() {
			shortage = decimal.Zero
		}
		reqs = append(reqs, MaterialRequirement{
			ItemCode:       m.ItemCode,
			ItemName:       m.ItemName,
			Warehouse:      m.Warehouse,
			BaseQtyRatio:   m.BaseQty,
			RequiredQty:    qty(required),
			AvailableQty:   available,
			Shortage:       qty(shortage),
			IsBatchManaged: m.BatchManaged,
			LineNum:        m.LineNum,
		})
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].LineNum < reqs[j].LineNum })
	return reqs, nil
}

// ValidateAvailability 返回有缺口的需求，空列表表示库存充足
func (s *StockService) ValidateAvailability(ctx context.Context, orderID int64, entryQty float64) ([]MaterialRequirement, error) {
	reqs, err := s.ComputeRequirements(ctx, orderID, entryQty)
	if err != nil {
		return nil, err
	}
	var shortages []MaterialRequirement
	for _, r := range reqs {
		if r.Shortage > 0 {
			shortages = append(shortages, r)
		}
	}
	return shortages, nil
}

// TotalAvailable 物料在仓库的可用总量
func (s *StockService) TotalAvailable(ctx context.Context, itemCode, warehouse string) (float64, error) {
	return s.stock.GetAvailableQty(ctx, itemCode, warehouse)
}

// SelectBatchesLIFO 重新读取批次并按后进先出分配
// 与之前的可用量校验相互独立，调用方必须检查 IsSufficient
func (s *StockService) SelectBatchesLIFO(ctx context.Context, itemCode, warehouse string, requiredQty float64) (*BatchAllocation, error) {
	rows, err := s.stock.GetAvailableBatches(ctx, itemCode, warehouse)
	if err != nil {
		return nil, fmt.Errorf("get batches of %s: %w", itemCode, err)
	}
	batches := make([]BatchInfo, 0, len(rows))
	for _, b := range rows {
		batches = append(batches, BatchInfo{
			ItemCode:     b.ItemCode,
			BatchNumber:  b.BatchNumber,
			InDate:       b.InDate,
			EntryOrdinal: b.EntryOrdinal,
			Warehouse:    b.Warehouse,
			AvailableQty: b.Quantity,
		})
	}
	alloc := AllocateLIFO(itemCode, warehouse, batches, requiredQty)
	return &alloc, nil
}

// AllocateLIFO 从最新批次开始依次扣减，需求量非有限数时不分配
func AllocateLIFO(itemCode, warehouse string, batches []BatchInfo, requiredQty float64) BatchAllocation {
	ordered := make([]BatchInfo, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool { return newerThan(ordered[i], ordered[j]) })

	alloc := BatchAllocation{ItemCode: itemCode, Warehouse: warehouse, Lines: []AllocationLine{}}
	if !finite(requiredQty) {
		return alloc
	}
	remaining := dec(requiredQty)
	if !remaining.IsPositive() {
		alloc.IsSufficient = true
		return alloc
	}

	allocated := decimal.Zero
	for _, b := range ordered {
		if !remaining.IsPositive() {
			break
		}
		if !finite(b.AvailableQty) {
			continue
		}
		avail := dec(b.AvailableQty)
		if !avail.IsPositive() {
			continue
		}
		take := decimal.Min(avail, remaining)
		alloc.Lines = append(alloc.Lines, AllocationLine{BatchNumber: b.BatchNumber, Quantity: qty(take)})
		allocated = allocated.Add(take)
		remaining = remaining.Sub(take)
	}

	alloc.AllocatedQty = qty(allocated)
	alloc.ShortageQty = qty(remaining)
	alloc.IsSufficient = !remaining.IsPositive()
	return alloc
}

func newerThan(a, b BatchInfo) bool {
	if !a.InDate.Equal(b.InDate) {
		return a.InDate.After(b.InDate)
	}
	return a.EntryOrdinal > b.EntryOrdinal
}
